package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/dashboard"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type DashboardHandler struct {
	uc     dashboard.UseCase
	logger logger.ZapLogger
}

func NewDashboardHandler(uc dashboard.UseCase, log logger.ZapLogger) *DashboardHandler {
	return &DashboardHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.GetDashboard)
}

func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.uc.GetDashboard(r.Context())
	if err != nil {
		apperror.WriteError(w, h.logger, err, middleware.GetReqID(r.Context()))
		return
	}
	apperror.WriteSuccess(w, out)
}
