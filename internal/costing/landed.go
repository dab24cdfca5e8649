package costing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type AllocationPolicy string

const (
	// PolicyBlended gives every unit of a purchase the same landed cost.
	PolicyBlended AllocationPolicy = "blended"
	// PolicyValueShare spreads shared costs over lines by their share of item value.
	PolicyValueShare AllocationPolicy = "value_share"
)

func ParseAllocationPolicy(s string) (AllocationPolicy, error) {
	switch AllocationPolicy(s) {
	case PolicyBlended, "":
		return PolicyBlended, nil
	case PolicyValueShare:
		return PolicyValueShare, nil
	default:
		return "", fmt.Errorf("unknown allocation policy %q", s)
	}
}

// PurchaseLine is one received line: a quantity at a foreign-currency unit cost.
type PurchaseLine struct {
	Quantity        int
	UnitForeignCost decimal.Decimal
}

// AdditionalCosts are order-level costs in local currency shared by every line.
type AdditionalCosts struct {
	Shipping decimal.Decimal
	Customs  decimal.Decimal
	Other    decimal.Decimal
}

func (a AdditionalCosts) Total() decimal.Decimal {
	return a.Shipping.Add(a.Customs).Add(a.Other)
}

type LandedCost struct {
	ItemsForeignTotal decimal.Decimal `json:"items_foreign_total"`
	ItemsLocalTotal   decimal.Decimal `json:"items_local_total"`
	AdditionalTotal   decimal.Decimal `json:"additional_total"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	TotalQuantity     int             `json:"total_quantity"`
	// BlendedUnitCost is zero when TotalQuantity is zero.
	BlendedUnitCost decimal.Decimal `json:"blended_unit_cost"`
}

// AllocateLandedCost computes the order-level landed cost of a purchase. Lines with a
// non-positive quantity are ignored.
func AllocateLandedCost(conv Converter, lines []PurchaseLine, extra AdditionalCosts) LandedCost {
	foreign := decimal.Zero
	total := 0
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		foreign = foreign.Add(qty(l.Quantity).Mul(l.UnitForeignCost))
		total += l.Quantity
	}

	lc := LandedCost{
		ItemsForeignTotal: foreign,
		ItemsLocalTotal:   conv.ToLocal(foreign),
		AdditionalTotal:   extra.Total(),
		TotalQuantity:     total,
	}
	lc.GrandTotal = lc.ItemsLocalTotal.Add(lc.AdditionalTotal)
	if total > 0 {
		lc.BlendedUnitCost = lc.GrandTotal.Div(qty(total))
	}
	return lc
}

type ItemAllocation struct {
	LocalValue     decimal.Decimal `json:"local_value"`
	Share          decimal.Decimal `json:"share"` // fraction of the order's item value, 0..1
	AdditionalCost decimal.Decimal `json:"additional_cost"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
}

// AllocateByValue spreads the additional costs over lines proportionally to each line's
// local value. When the items carry no value at all, the split falls back to quantity
// share so shipping and customs are still accounted for. The result is index-aligned
// with lines; skipped lines get a zero allocation.
func AllocateByValue(conv Converter, lines []PurchaseLine, extra AdditionalCosts) []ItemAllocation {
	lc := AllocateLandedCost(conv, lines, extra)
	out := make([]ItemAllocation, len(lines))

	for i, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		value := conv.ToLocal(qty(l.Quantity).Mul(l.UnitForeignCost))

		var share decimal.Decimal
		switch {
		case lc.ItemsLocalTotal.IsPositive():
			share = value.Div(lc.ItemsLocalTotal)
		case lc.TotalQuantity > 0:
			share = qty(l.Quantity).Div(qty(lc.TotalQuantity))
		}

		additional := lc.AdditionalTotal.Mul(share)
		out[i] = ItemAllocation{
			LocalValue:     value,
			Share:          share,
			AdditionalCost: additional,
			UnitCost:       value.Add(additional).Div(qty(l.Quantity)),
		}
	}
	return out
}

// UnitCosts returns, index-aligned with lines, the landed unit cost that the given policy
// assigns to each line. This single number is what gets stored and displayed.
func UnitCosts(policy AllocationPolicy, conv Converter, lines []PurchaseLine, extra AdditionalCosts) []decimal.Decimal {
	out := make([]decimal.Decimal, len(lines))

	if policy == PolicyValueShare {
		for i, a := range AllocateByValue(conv, lines, extra) {
			out[i] = a.UnitCost
		}
		return out
	}

	blended := AllocateLandedCost(conv, lines, extra).BlendedUnitCost
	for i, l := range lines {
		if l.Quantity > 0 {
			out[i] = blended
		}
	}
	return out
}
