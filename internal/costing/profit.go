package costing

import "github.com/shopspring/decimal"

type SaleInput struct {
	Quantity      int
	UnitPrice     decimal.Decimal
	FeePercent    decimal.Decimal
	PackagingCost decimal.Decimal // per unit
	ShippingCost  decimal.Decimal // per unit
}

type SaleProfit struct {
	Revenue         decimal.Decimal `json:"revenue"`
	CostOfGoodsSold decimal.Decimal `json:"cost_of_goods_sold"`
	ChannelFee      decimal.Decimal `json:"channel_fee"`
	TotalPackaging  decimal.Decimal `json:"total_packaging"`
	TotalShipping   decimal.Decimal `json:"total_shipping"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Profit          decimal.Decimal `json:"profit"`
	MarginRate      decimal.Decimal `json:"margin_rate"`
	// Missing marks a sale whose product or option no longer exists; all figures are zero.
	Missing bool `json:"missing"`
}

// ComputeSaleProfit derives the profitability of one sale from the cost of goods that
// applied when it was made.
func ComputeSaleProfit(in SaleInput, costOfGoods decimal.Decimal) SaleProfit {
	q := qty(in.Quantity)

	p := SaleProfit{
		Revenue:         q.Mul(in.UnitPrice),
		CostOfGoodsSold: q.Mul(costOfGoods),
		TotalPackaging:  in.PackagingCost.Mul(q),
		TotalShipping:   in.ShippingCost.Mul(q),
	}
	p.ChannelFee = p.Revenue.Mul(in.FeePercent).Div(hundred)
	p.TotalCost = p.CostOfGoodsSold.Add(p.ChannelFee).Add(p.TotalPackaging).Add(p.TotalShipping)
	p.Profit = p.Revenue.Sub(p.TotalCost)
	p.MarginRate = Percent(p.Profit, p.Revenue)
	return p
}

func MissingSaleProfit() SaleProfit {
	return SaleProfit{Missing: true}
}
