package model

import (
	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/shopspring/decimal"
)

type Product struct {
	BaseModel
	Name            string          `db:"name" json:"name"`
	ImageURL        string          `db:"image_url" json:"image_url"`
	BaseForeignCost decimal.Decimal `db:"base_foreign_cost" json:"base_foreign_cost"` // informational default for purchases
	Options         []ProductOption `db:"-" json:"options"`
}

// FindOption returns the option with id, or nil.
func (p *Product) FindOption(id string) *ProductOption {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i]
		}
	}
	return nil
}

type ProductOption struct {
	BaseModel
	ProductID        string              `db:"product_id" json:"product_id"`
	Name             string              `db:"name" json:"name"`
	SKU              string              `db:"sku" json:"sku"`
	Stock            int                 `db:"stock" json:"stock"` // may be negative after overselling
	CostOfGoods      decimal.Decimal     `db:"cost_of_goods" json:"cost_of_goods"`
	RecommendedPrice decimal.NullDecimal `db:"recommended_price" json:"recommended_price"`
}

func (o *ProductOption) State() costing.OptionState {
	return costing.OptionState{Stock: o.Stock, CostOfGoods: o.CostOfGoods}
}

// InventoryValue is the option's stock valued at its current moving-average cost.
// Negative stock contributes nothing.
func (o *ProductOption) InventoryValue() decimal.Decimal {
	if o.Stock <= 0 {
		return decimal.Zero
	}
	return o.CostOfGoods.Mul(decimal.NewFromInt(int64(o.Stock)))
}
