package dto

import (
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/shopspring/decimal"
)

type SaleFilters struct {
	StartDate *time.Time
	EndDate   *time.Time
	Channel   string
	ProductID string
	OptionID  string
	Page      int
	PageSize  int
}

// CreateSaleInput leaves fee, packaging and shipping null to take the channel and
// settings defaults.
type CreateSaleInput struct {
	SaleDate      string              `json:"sale_date"` // yyyy-mm-dd, today when empty
	ProductID     string              `json:"product_id"`
	OptionID      string              `json:"option_id"`
	Quantity      int                 `json:"quantity"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	Channel       string              `json:"channel"`
	FeePercent    decimal.NullDecimal `json:"fee_percent"`
	PackagingCost decimal.NullDecimal `json:"packaging_cost"`
	ShippingCost  decimal.NullDecimal `json:"shipping_cost"`
	ExternalRef   string              `json:"external_ref"`
}

type SaleResult struct {
	Sale       *model.Sale         `json:"sale"`
	Profit     costing.SaleProfit  `json:"profit"`
	Oversold   bool                `json:"oversold"`
	StockAfter int                 `json:"stock_after"`
	Status     costing.StockStatus `json:"stock_status"`
}

type SaleDetail struct {
	model.Sale
	Profit costing.SaleProfit `json:"profit"`
}

func NewSaleDetail(s model.Sale) SaleDetail {
	return SaleDetail{Sale: s, Profit: s.Profit()}
}
