package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementPurchase MovementType = "purchase"
	MovementSale     MovementType = "sale"
)

// OptionMovement records one application of a purchase or sale to an option.
type OptionMovement struct {
	ID             string          `db:"id" json:"id"`
	ProductID      string          `db:"product_id" json:"product_id"`
	OptionID       string          `db:"option_id" json:"option_id"`
	MovementType   MovementType    `db:"movement_type" json:"movement_type"`
	QuantityChange int             `db:"quantity_change" json:"quantity_change"`
	StockBefore    int             `db:"stock_before" json:"stock_before"`
	StockAfter     int             `db:"stock_after" json:"stock_after"`
	CostBefore     decimal.Decimal `db:"cost_before" json:"cost_before"`
	CostAfter      decimal.Decimal `db:"cost_after" json:"cost_after"`
	UnitCost       decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ReferenceType  *string         `db:"reference_type" json:"reference_type"`
	ReferenceID    *string         `db:"reference_id" json:"reference_id"`
	CreatedBy      *string         `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
