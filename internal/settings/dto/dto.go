package dto

import (
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/shopspring/decimal"
)

type UpdateSettingsInput struct {
	DefaultPackagingCost decimal.Decimal `json:"default_packaging_cost"`
	DefaultShippingCost  decimal.Decimal `json:"default_shipping_cost"`
}

type SaleDefaults struct {
	Channel       model.Channel   `json:"channel"`
	FeePercent    decimal.Decimal `json:"fee_percent"`
	PackagingCost decimal.Decimal `json:"packaging_cost"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
}
