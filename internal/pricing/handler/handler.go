package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/pricing"
	"github.com/fekuna/omnipos-margin-service/internal/pricing/dto"
	settingsdto "github.com/fekuna/omnipos-margin-service/internal/settings/dto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChannelDefaults supplies the fee and per-unit costs a channel is pre-filled with.
type ChannelDefaults interface {
	SaleDefaults(ctx context.Context, channel model.Channel) (*settingsdto.SaleDefaults, error)
}

type PricingHandler struct {
	defaults     ChannelDefaults
	exchangeRate decimal.Decimal
	logger       logger.ZapLogger
}

func NewPricingHandler(defaults ChannelDefaults, exchangeRate decimal.Decimal, log logger.ZapLogger) *PricingHandler {
	return &PricingHandler{
		defaults:     defaults,
		exchangeRate: exchangeRate,
		logger:       log,
	}
}

func (h *PricingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/pricing/solve", h.Solve)
}

func (h *PricingHandler) Solve(w http.ResponseWriter, r *http.Request) {
	var input dto.SolveInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.writeError(w, r, apperror.BadRequest(err.Error()))
		return
	}

	channel := model.Channel(input.Channel)
	if channel == "" {
		channel = model.ChannelOther
	}
	defaults, err := h.defaults.SaleDefaults(r.Context(), channel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	applied := dto.Applied{
		Channel:           channel,
		ExchangeRate:      pick(input.ExchangeRate, h.exchangeRate),
		ChannelFeePercent: pick(input.ChannelFeePercent, defaults.FeePercent),
		PackagingCost:     pick(input.PackagingCost, defaults.PackagingCost),
		ShippingCost:      pick(input.ShippingCost, defaults.ShippingCost),
	}
	if !applied.ExchangeRate.IsPositive() {
		h.writeError(w, r, apperror.Validation("exchange_rate must be positive"))
		return
	}

	sol, err := pricing.Solve(costing.NewConverter(applied.ExchangeRate), pricing.Input{
		Mode:            pricing.Mode(input.Mode),
		TargetRate:      input.TargetRate,
		DirectPrice:     input.DirectPrice,
		UnitForeignCost: input.UnitForeignCost,
		Quantity:        input.Quantity,
		AdditionalCosts: costing.AdditionalCosts{
			Shipping: input.PurchaseShippingCost,
			Customs:  input.CustomsFee,
			Other:    input.OtherFee,
		},
		PackagingCost:     applied.PackagingCost,
		ShippingCost:      applied.ShippingCost,
		ChannelFeePercent: applied.ChannelFeePercent,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("Price solved",
		zap.String("mode", input.Mode),
		zap.String("channel", string(channel)),
		zap.String("recommended_price", sol.RecommendedPrice.String()),
	)
	apperror.WriteSuccess(w, dto.SolveResult{Solution: sol.Rounded(), Applied: applied})
}

func (h *PricingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *pricing.InputError
	if errors.As(err, &inputErr) {
		err = apperror.Validation(inputErr.Error()).WithDetails(map[string]string{"field": inputErr.Field})
	}
	apperror.WriteError(w, h.logger, err, middleware.GetReqID(r.Context()))
}

func pick(v decimal.NullDecimal, fallback decimal.Decimal) decimal.Decimal {
	if v.Valid {
		return v.Decimal
	}
	return fallback
}
