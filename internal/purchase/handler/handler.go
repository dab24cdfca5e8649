package handler

import (
	"errors"
	"net/http"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/purchase"
	"github.com/fekuna/omnipos-margin-service/internal/purchase/dto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type PurchaseHandler struct {
	uc     purchase.UseCase
	logger logger.ZapLogger
}

func NewPurchaseHandler(uc purchase.UseCase, log logger.ZapLogger) *PurchaseHandler {
	return &PurchaseHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *PurchaseHandler) RegisterRoutes(r chi.Router) {
	r.Route("/purchases", func(r chi.Router) {
		r.Get("/", h.ListPurchases)
		r.Post("/", h.CreatePurchase)
		r.Post("/preview", h.PreviewPurchase)
		r.Get("/{id}", h.GetPurchase)
	})
}

func (h *PurchaseHandler) PreviewPurchase(w http.ResponseWriter, r *http.Request) {
	var input dto.CreatePurchaseInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.writeError(w, r, apperror.BadRequest(err.Error()))
		return
	}

	preview, err := h.uc.PreviewPurchase(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, preview)
}

func (h *PurchaseHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var input dto.CreatePurchaseInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.writeError(w, r, apperror.BadRequest(err.Error()))
		return
	}

	result, err := h.uc.CreatePurchase(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteCreated(w, result)
}

func (h *PurchaseHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	p, err := h.uc.GetPurchase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, p)
}

func (h *PurchaseHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	page, pageSize := httpx.Page(r)

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

	items, total, err := h.uc.ListPurchases(r.Context(), &dto.PurchaseFilters{
		StartDate: from,
		EndDate:   to,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, httpx.NewPageResult(items, total, page, pageSize))
}

func (h *PurchaseHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, purchase.ErrNotFound):
		err = apperror.NotFound(err.Error())
	case errors.Is(err, inventory.ErrOptionNotFound):
		err = apperror.Validation(err.Error())
	case errors.Is(err, inventory.ErrBusy):
		err = apperror.Conflict(err.Error())
	}
	apperror.WriteError(w, h.logger, err, middleware.GetReqID(r.Context()))
}
