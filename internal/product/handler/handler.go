package handler

import (
	"errors"
	"net/http"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/product"
	"github.com/fekuna/omnipos-margin-service/internal/product/dto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ProductHandler struct {
	uc     product.UseCase
	logger logger.ZapLogger
}

func NewProductHandler(uc product.UseCase, log logger.ZapLogger) *ProductHandler {
	return &ProductHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/{id}", h.GetProduct)
		r.Put("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)
	})
	r.Put("/options/{id}/recommended-price", h.SetRecommendedPrice)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input dto.CreateProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.writeError(w, r, apperror.BadRequest(err.Error()))
		return
	}

	p, err := h.uc.CreateProduct(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteCreated(w, p)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.uc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, p)
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := httpx.Page(r)
	q := r.URL.Query()

	products, total, err := h.uc.ListProducts(r.Context(), &dto.ProductFilters{
		SearchQuery: q.Get("q"),
		SortBy:      q.Get("sort_by"),
		SortOrder:   q.Get("sort_order"),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, httpx.NewPageResult(products, total, page, pageSize))
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var input dto.UpdateProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.writeError(w, r, apperror.BadRequest(err.Error()))
		return
	}
	input.ID = chi.URLParam(r, "id")

	p, err := h.uc.UpdateProduct(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, p)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) SetRecommendedPrice(w http.ResponseWriter, r *http.Request) {
	var input dto.SetRecommendedPriceInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.writeError(w, r, apperror.BadRequest(err.Error()))
		return
	}
	input.OptionID = chi.URLParam(r, "id")

	o, err := h.uc.SetRecommendedPrice(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, o)
}

func (h *ProductHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, product.ErrNotFound), errors.Is(err, product.ErrOptionNotFound):
		err = apperror.NotFound(err.Error())
	case errors.Is(err, product.ErrSKUExists):
		err = apperror.Conflict(err.Error())
	}
	apperror.WriteError(w, h.logger, err, middleware.GetReqID(r.Context()))
}
