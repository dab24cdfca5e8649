package handler

import (
	"errors"
	"net/http"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/sale"
	"github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type SaleHandler struct {
	uc     sale.UseCase
	logger logger.ZapLogger
}

func NewSaleHandler(uc sale.UseCase, log logger.ZapLogger) *SaleHandler {
	return &SaleHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.ListSales)
		r.Post("/", h.CreateSale)
		r.Get("/defaults", h.SaleDefaults)
		r.Get("/{id}", h.GetSale)
	})
}

func (h *SaleHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var input dto.CreateSaleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.writeError(w, r, apperror.BadRequest(err.Error()))
		return
	}

	result, err := h.uc.CreateSale(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteCreated(w, result)
}

func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.uc.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, s)
}

func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	page, pageSize := httpx.Page(r)
	q := r.URL.Query()

	from, err := httpx.Date(r, "from")
	if err != nil {
		h.writeError(w, r, apperror.Validation(err.Error()))
		return
	}
	to, err := httpx.Date(r, "to")
	if err != nil {
		h.writeError(w, r, apperror.Validation(err.Error()))
		return
	}

	items, total, err := h.uc.ListSales(r.Context(), &dto.SaleFilters{
		StartDate: from,
		EndDate:   to,
		Channel:   q.Get("channel"),
		ProductID: q.Get("product_id"),
		OptionID:  q.Get("option_id"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, httpx.NewPageResult(items, total, page, pageSize))
}

func (h *SaleHandler) SaleDefaults(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = string(model.ChannelOther)
	}

	defaults, err := h.uc.SaleDefaults(r.Context(), model.Channel(channel))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, defaults)
}

func (h *SaleHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sale.ErrNotFound):
		err = apperror.NotFound(err.Error())
	case errors.Is(err, sale.ErrDuplicate):
		err = apperror.Conflict(err.Error())
	case errors.Is(err, inventory.ErrOptionNotFound):
		err = apperror.Validation(err.Error())
	case errors.Is(err, inventory.ErrBusy):
		err = apperror.Conflict(err.Error())
	}
	apperror.WriteError(w, h.logger, err, middleware.GetReqID(r.Context()))
}
