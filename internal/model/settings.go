package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppSettings is a single-row table of defaults used to pre-fill new sales.
type AppSettings struct {
	DefaultPackagingCost decimal.Decimal `db:"default_packaging_cost" json:"default_packaging_cost"`
	DefaultShippingCost  decimal.Decimal `db:"default_shipping_cost" json:"default_shipping_cost"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}
