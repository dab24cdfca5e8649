package dto

import (
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pricing"
	"github.com/shopspring/decimal"
)

// SolveInput is one pricing question. Null sale-side costs and fee take the channel defaults,
// a null exchange rate takes the configured one.
type SolveInput struct {
	Mode        string          `json:"mode"`
	TargetRate  decimal.Decimal `json:"target_rate"`
	DirectPrice decimal.Decimal `json:"direct_price"`

	UnitForeignCost decimal.Decimal     `json:"unit_foreign_cost"`
	Quantity        int                 `json:"quantity"`
	ExchangeRate    decimal.NullDecimal `json:"exchange_rate"`

	PurchaseShippingCost decimal.Decimal `json:"purchase_shipping_cost"`
	CustomsFee           decimal.Decimal `json:"customs_fee"`
	OtherFee             decimal.Decimal `json:"other_fee"`

	Channel           string              `json:"channel"`
	ChannelFeePercent decimal.NullDecimal `json:"channel_fee_percent"`
	PackagingCost     decimal.NullDecimal `json:"packaging_cost"`
	ShippingCost      decimal.NullDecimal `json:"shipping_cost"`
}

// Applied echoes the values the solver actually ran with after defaults were filled in.
type Applied struct {
	Channel           model.Channel   `json:"channel"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	ChannelFeePercent decimal.Decimal `json:"channel_fee_percent"`
	PackagingCost     decimal.Decimal `json:"packaging_cost"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
}

type SolveResult struct {
	pricing.Solution
	Applied Applied `json:"applied"`
}
