package dto

import (
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/shopspring/decimal"
)

type MovementFilters struct {
	ProductID    string
	OptionID     string
	MovementType string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

// OptionRow is an option joined with its product's name.
type OptionRow struct {
	model.ProductOption
	ProductName string `db:"product_name"`
}

type OptionStock struct {
	ProductID        string              `json:"product_id"`
	ProductName      string              `json:"product_name"`
	OptionID         string              `json:"option_id"`
	OptionName       string              `json:"option_name"`
	SKU              string              `json:"sku"`
	Stock            int                 `json:"stock"`
	CostOfGoods      decimal.Decimal     `json:"cost_of_goods"`
	RecommendedPrice decimal.NullDecimal `json:"recommended_price"`
	InventoryValue   decimal.Decimal     `json:"inventory_value"`
	Status           costing.StockStatus `json:"status"`
}

func NewOptionStock(row *OptionRow, th costing.StockThresholds) OptionStock {
	return OptionStock{
		ProductID:        row.ProductID,
		ProductName:      row.ProductName,
		OptionID:         row.ID,
		OptionName:       row.Name,
		SKU:              row.SKU,
		Stock:            row.Stock,
		CostOfGoods:      row.CostOfGoods,
		RecommendedPrice: row.RecommendedPrice,
		InventoryValue:   costing.RoundCurrency(row.InventoryValue()),
		Status:           costing.ClassifyStock(row.Stock, th),
	}
}

type ReceiptLine struct {
	ProductID string
	OptionID  string
	Quantity  int
	UnitCost  decimal.Decimal // landed, local currency
}

type ReceiveStockInput struct {
	PurchaseID string
	Lines      []ReceiptLine
	UserID     *string
}

type ReleaseStockInput struct {
	SaleID    string
	ProductID string
	OptionID  string
	Quantity  int
	UserID    *string
}

// StockChange is the before/after of one application to one option.
type StockChange struct {
	ProductID string              `json:"product_id"`
	OptionID  string              `json:"option_id"`
	Before    costing.OptionState `json:"before"`
	After     costing.OptionState `json:"after"`
	Oversold  bool                `json:"oversold"`
	Status    costing.StockStatus `json:"status"`
}
