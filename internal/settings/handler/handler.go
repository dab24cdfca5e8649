package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/settings"
	"github.com/fekuna/omnipos-margin-service/internal/settings/dto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type SettingsHandler struct {
	uc     settings.UseCase
	logger logger.ZapLogger
}

func NewSettingsHandler(uc settings.UseCase, log logger.ZapLogger) *SettingsHandler {
	return &SettingsHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.uc.GetSettings(r.Context())
	if err != nil {
		apperror.WriteError(w, h.logger, err, middleware.GetReqID(r.Context()))
		return
	}
	apperror.WriteSuccess(w, s)
}

func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var input dto.UpdateSettingsInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		apperror.WriteError(w, h.logger, apperror.BadRequest(err.Error()), middleware.GetReqID(r.Context()))
		return
	}

	s, err := h.uc.UpdateSettings(r.Context(), &input)
	if err != nil {
		apperror.WriteError(w, h.logger, err, middleware.GetReqID(r.Context()))
		return
	}
	apperror.WriteSuccess(w, s)
}
