package model

import (
	"fmt"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/shopspring/decimal"
)

type Channel string

const (
	ChannelSmartStore    Channel = "smart_store"
	ChannelMarketplaceA  Channel = "marketplace_a"
	ChannelOwnStorefront Channel = "own_storefront"
	ChannelOther         Channel = "other"
)

var Channels = []Channel{ChannelSmartStore, ChannelMarketplaceA, ChannelOwnStorefront, ChannelOther}

func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown sales channel %q", s)
}

type Sale struct {
	ID            string          `db:"id" json:"id"`
	SaleDate      time.Time       `db:"sale_date" json:"sale_date"`
	ProductID     string          `db:"product_id" json:"product_id"`
	OptionID      string          `db:"option_id" json:"option_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	Channel       Channel         `db:"channel" json:"channel"`
	FeePercent    decimal.Decimal `db:"fee_percent" json:"fee_percent"`
	PackagingCost decimal.Decimal `db:"packaging_cost" json:"packaging_cost"` // per unit
	ShippingCost  decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`   // per unit
	// CostOfGoodsAtSale is the option's cost when the sale was recorded. Historical profit
	// is always computed from it, never from the option's current cost.
	CostOfGoodsAtSale decimal.Decimal `db:"cost_of_goods_at_sale" json:"cost_of_goods_at_sale"`
	ExternalRef       *string         `db:"external_ref" json:"external_ref"`
	CreatedBy         *string         `db:"created_by" json:"created_by"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

func (s *Sale) Input() costing.SaleInput {
	return costing.SaleInput{
		Quantity:      s.Quantity,
		UnitPrice:     s.UnitPrice,
		FeePercent:    s.FeePercent,
		PackagingCost: s.PackagingCost,
		ShippingCost:  s.ShippingCost,
	}
}

func (s *Sale) Profit() costing.SaleProfit {
	return costing.ComputeSaleProfit(s.Input(), s.CostOfGoodsAtSale)
}
