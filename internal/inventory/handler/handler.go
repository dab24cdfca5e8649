package handler

import (
	"errors"
	"net/http"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	"github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/inventory/low-stock", h.ListLowStock)
	r.Get("/inventory/options/{id}", h.GetOption)
	r.Get("/inventory/movements", h.ListMovements)
}

func (h *InventoryHandler) GetOption(w http.ResponseWriter, r *http.Request) {
	opt, err := h.uc.GetOption(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, opt)
}

func (h *InventoryHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	page, pageSize := httpx.Page(r)

	items, total, err := h.uc.ListLowStock(r.Context(), page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, httpx.NewPageResult(items, total, page, pageSize))
}

func (h *InventoryHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
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

	movementType := q.Get("type")
	switch model.MovementType(movementType) {
	case "", model.MovementPurchase, model.MovementSale:
	default:
		h.writeError(w, r, apperror.Validation("type must be purchase or sale"))
		return
	}

	items, total, err := h.uc.ListMovements(r.Context(), &dto.MovementFilters{
		ProductID:    q.Get("product_id"),
		OptionID:     q.Get("option_id"),
		MovementType: movementType,
		StartDate:    from,
		EndDate:      to,
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apperror.WriteSuccess(w, httpx.NewPageResult(items, total, page, pageSize))
}

func (h *InventoryHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inventory.ErrOptionNotFound):
		err = apperror.NotFound(err.Error())
	case errors.Is(err, inventory.ErrBusy):
		err = apperror.Conflict(err.Error())
	}
	apperror.WriteError(w, h.logger, err, middleware.GetReqID(r.Context()))
}
