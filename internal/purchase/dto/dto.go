package dto

import (
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	invdto "github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/shopspring/decimal"
)

type PurchaseFilters struct {
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

type ItemInput struct {
	ProductID       string          `json:"product_id"`
	OptionID        string          `json:"option_id"`
	Quantity        int             `json:"quantity"`
	UnitForeignCost decimal.Decimal `json:"unit_foreign_cost"`
}

type CreatePurchaseInput struct {
	PurchaseDate string          `json:"purchase_date"` // yyyy-mm-dd, today when empty
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	CustomsFee   decimal.Decimal `json:"customs_fee"`
	OtherFee     decimal.Decimal `json:"other_fee"`
	// ExchangeRate and AllocationPolicy fall back to the configured defaults.
	ExchangeRate     decimal.NullDecimal `json:"exchange_rate"`
	AllocationPolicy string              `json:"allocation_policy"`
	Notes            string              `json:"notes"`
	Items            []ItemInput         `json:"items"`
}

type PreviewLine struct {
	ProductID       string          `json:"product_id"`
	OptionID        string          `json:"option_id"`
	Quantity        int             `json:"quantity"`
	UnitForeignCost decimal.Decimal `json:"unit_foreign_cost"`
	// LandedUnitCost is the cost the selected policy would apply to the option.
	LandedUnitCost decimal.Decimal `json:"landed_unit_cost"`
	// ValueShare breaks the line down by its share of the order value, whatever the policy.
	ValueShare costing.ItemAllocation `json:"value_share"`
}

type PurchasePreview struct {
	ExchangeRate     decimal.Decimal          `json:"exchange_rate"`
	AllocationPolicy costing.AllocationPolicy `json:"allocation_policy"`
	Totals           costing.LandedCost       `json:"totals"`
	Lines            []PreviewLine            `json:"lines"`
}

type PurchaseResult struct {
	Purchase *model.Purchase      `json:"purchase"`
	Totals   costing.LandedCost   `json:"totals"`
	Changes  []invdto.StockChange `json:"changes"`
}

// PurchaseDetail is a stored purchase with its totals recomputed at its own rate.
type PurchaseDetail struct {
	model.Purchase
	Totals costing.LandedCost `json:"totals"`
}

func NewPurchaseDetail(p model.Purchase) PurchaseDetail {
	return PurchaseDetail{Purchase: p, Totals: p.LandedCost()}
}
