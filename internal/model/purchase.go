package model

import (
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/shopspring/decimal"
)

type Purchase struct {
	ID               string          `db:"id" json:"id"`
	PurchaseDate     time.Time       `db:"purchase_date" json:"purchase_date"`
	ShippingCost     decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	CustomsFee       decimal.Decimal `db:"customs_fee" json:"customs_fee"`
	OtherFee         decimal.Decimal `db:"other_fee" json:"other_fee"`
	ExchangeRate     decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`
	AllocationPolicy string          `db:"allocation_policy" json:"allocation_policy"`
	Notes            string          `db:"notes" json:"notes"`
	CreatedBy        *string         `db:"created_by" json:"created_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	Items            []PurchaseItem  `db:"-" json:"items"`
}

type PurchaseItem struct {
	ID              string          `db:"id" json:"id"`
	PurchaseID      string          `db:"purchase_id" json:"purchase_id"`
	LineNo          int             `db:"line_no" json:"line_no"`
	ProductID       string          `db:"product_id" json:"product_id"`
	OptionID        string          `db:"option_id" json:"option_id"`
	Quantity        int             `db:"quantity" json:"quantity"`
	UnitForeignCost decimal.Decimal `db:"unit_foreign_cost" json:"unit_foreign_cost"`
	LandedUnitCost  decimal.Decimal `db:"landed_unit_cost" json:"landed_unit_cost"`
}

func (p *Purchase) AdditionalCosts() costing.AdditionalCosts {
	return costing.AdditionalCosts{
		Shipping: p.ShippingCost,
		Customs:  p.CustomsFee,
		Other:    p.OtherFee,
	}
}

func (p *Purchase) Lines() []costing.PurchaseLine {
	lines := make([]costing.PurchaseLine, len(p.Items))
	for i, it := range p.Items {
		lines[i] = costing.PurchaseLine{Quantity: it.Quantity, UnitForeignCost: it.UnitForeignCost}
	}
	return lines
}

// LandedCost recomputes the order totals at the rate the purchase was recorded with.
func (p *Purchase) LandedCost() costing.LandedCost {
	return costing.AllocateLandedCost(costing.NewConverter(p.ExchangeRate), p.Lines(), p.AdditionalCosts())
}
