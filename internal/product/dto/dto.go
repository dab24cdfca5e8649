package dto

import "github.com/shopspring/decimal"

type ProductFilters struct {
	SearchQuery string `json:"q"`          // name, option name or sku
	SortBy      string `json:"sort_by"`    // name, created_at
	SortOrder   string `json:"sort_order"` // asc, desc
	Page        int    `json:"page"`
	PageSize    int    `json:"page_size"`
}

// OptionInput describes one option. On update, an empty ID adds a new option and
// existing options missing from the list are removed.
type OptionInput struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

type CreateProductInput struct {
	Name            string          `json:"name"`
	ImageURL        string          `json:"image_url"`
	BaseForeignCost decimal.Decimal `json:"base_foreign_cost"`
	Options         []OptionInput   `json:"options"`
}

type UpdateProductInput struct {
	ID              string          `json:"-"`
	Name            string          `json:"name"`
	ImageURL        string          `json:"image_url"`
	BaseForeignCost decimal.Decimal `json:"base_foreign_cost"`
	Options         []OptionInput   `json:"options"`
}

type SetRecommendedPriceInput struct {
	OptionID string              `json:"-"`
	Price    decimal.NullDecimal `json:"price"`
}
