// Package pricing solves for a sale price that hits a target margin or profit rate, and runs
// the same cost model forward for a price chosen by hand.
package pricing

import (
	"fmt"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeMargin Mode = "margin"
	ModeProfit Mode = "profit"
	ModeDirect Mode = "direct"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeMargin, ModeProfit, ModeDirect:
		return m, nil
	default:
		return "", &InputError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

var (
	hundred      = decimal.NewFromInt(100)
	minusHundred = decimal.NewFromInt(-100)
)

// Input describes one product batch as it would be bought and sold.
type Input struct {
	Mode Mode
	// TargetRate is a margin rate in margin mode and a profit rate in profit mode, in percent.
	TargetRate  decimal.Decimal
	DirectPrice decimal.Decimal

	UnitForeignCost decimal.Decimal
	Quantity        int
	AdditionalCosts costing.AdditionalCosts

	PackagingCost     decimal.Decimal
	ShippingCost      decimal.Decimal
	ChannelFeePercent decimal.Decimal
}

type Solution struct {
	RecommendedPrice decimal.Decimal `json:"recommended_price"`
	PriceBeforeFee   decimal.Decimal `json:"price_before_fee"`
	ChannelFee       decimal.Decimal `json:"channel_fee"`
	NetRevenue       decimal.Decimal `json:"net_revenue"`

	ActualCostPerItem decimal.Decimal `json:"actual_cost_per_item"`
	TotalCostPerItem  decimal.Decimal `json:"total_cost_per_item"`
	NetProfit         decimal.Decimal `json:"net_profit"`

	// ActualMarginRate is net profit over revenue after the channel fee.
	ActualMarginRate decimal.Decimal `json:"actual_margin_rate"`
	// GrossMarginRate treats the channel fee as a cost, the way a recorded sale does.
	GrossMarginRate  decimal.Decimal `json:"gross_margin_rate"`
	ActualProfitRate decimal.Decimal `json:"actual_profit_rate"`

	TotalInvestment decimal.Decimal `json:"total_investment"`
	// BreakEvenQuantity is invalid when a unit sold does not bring in positive net revenue.
	BreakEvenQuantity decimal.NullDecimal `json:"break_even_quantity"`
	BatchProfit       decimal.Decimal     `json:"batch_profit"`
	ROI               decimal.Decimal     `json:"roi"`
}

// Rounded returns the solution for display: money in whole currency units, rates and the
// break-even quantity to two places.
func (s Solution) Rounded() Solution {
	out := Solution{
		RecommendedPrice:  costing.RoundCurrency(s.RecommendedPrice),
		PriceBeforeFee:    costing.RoundCurrency(s.PriceBeforeFee),
		ChannelFee:        costing.RoundCurrency(s.ChannelFee),
		NetRevenue:        costing.RoundCurrency(s.NetRevenue),
		ActualCostPerItem: costing.RoundCurrency(s.ActualCostPerItem),
		TotalCostPerItem:  costing.RoundCurrency(s.TotalCostPerItem),
		NetProfit:         costing.RoundCurrency(s.NetProfit),
		ActualMarginRate:  s.ActualMarginRate.Round(2),
		GrossMarginRate:   s.GrossMarginRate.Round(2),
		ActualProfitRate:  s.ActualProfitRate.Round(2),
		TotalInvestment:   costing.RoundCurrency(s.TotalInvestment),
		BatchProfit:       costing.RoundCurrency(s.BatchProfit),
		ROI:               s.ROI.Round(2),
	}
	if s.BreakEvenQuantity.Valid {
		out.BreakEvenQuantity = decimal.NewNullDecimal(s.BreakEvenQuantity.Decimal.Round(2))
	}
	return out
}

// InputError reports a rate or amount the solver cannot work with.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Solve computes the recommended price for in and every figure derived from it.
func Solve(conv costing.Converter, in Input) (Solution, error) {
	if err := validate(in); err != nil {
		return Solution{}, err
	}

	var sol Solution
	sol.ActualCostPerItem = actualCostPerItem(conv, in)
	sol.TotalCostPerItem = sol.ActualCostPerItem.Add(in.PackagingCost).Add(in.ShippingCost)

	feeFactor := decimal.NewFromInt(1).Sub(in.ChannelFeePercent.Div(hundred))

	switch in.Mode {
	case ModeMargin:
		keep := decimal.NewFromInt(1).Sub(in.TargetRate.Div(hundred))
		sol.PriceBeforeFee = sol.TotalCostPerItem.Div(keep)
		sol.RecommendedPrice = sol.PriceBeforeFee.Div(feeFactor)
	case ModeProfit:
		markup := decimal.NewFromInt(1).Add(in.TargetRate.Div(hundred))
		sol.PriceBeforeFee = sol.TotalCostPerItem.Mul(markup)
		sol.RecommendedPrice = sol.PriceBeforeFee.Div(feeFactor)
	case ModeDirect:
		sol.RecommendedPrice = in.DirectPrice
		sol.PriceBeforeFee = in.DirectPrice.Mul(feeFactor)
	}

	sol.ChannelFee = sol.RecommendedPrice.Mul(in.ChannelFeePercent).Div(hundred)
	sol.NetRevenue = sol.RecommendedPrice.Sub(sol.ChannelFee)
	sol.NetProfit = sol.NetRevenue.Sub(sol.TotalCostPerItem)
	sol.ActualMarginRate = costing.Percent(sol.NetProfit, sol.NetRevenue)
	sol.ActualProfitRate = costing.Percent(sol.NetProfit, sol.TotalCostPerItem)

	unit := costing.ComputeSaleProfit(costing.SaleInput{
		Quantity:      1,
		UnitPrice:     sol.RecommendedPrice,
		FeePercent:    in.ChannelFeePercent,
		PackagingCost: in.PackagingCost,
		ShippingCost:  in.ShippingCost,
	}, sol.ActualCostPerItem)
	sol.GrossMarginRate = unit.MarginRate

	sol.TotalInvestment = costing.AllocateLandedCost(conv, lines(in), in.AdditionalCosts).GrandTotal
	if sol.NetRevenue.IsPositive() {
		sol.BreakEvenQuantity = decimal.NewNullDecimal(sol.TotalInvestment.Div(sol.NetRevenue))
	}
	sol.BatchProfit = sol.NetProfit.Mul(decimal.NewFromInt(int64(max(in.Quantity, 0))))
	sol.ROI = costing.Percent(sol.BatchProfit, sol.TotalInvestment)

	return sol, nil
}

// actualCostPerItem is the landed cost of one unit. Without a batch quantity there is nothing
// to spread the additional costs over, so only the converted item cost counts.
func actualCostPerItem(conv costing.Converter, in Input) decimal.Decimal {
	if in.Quantity <= 0 {
		return conv.ToLocal(in.UnitForeignCost)
	}
	return costing.AllocateLandedCost(conv, lines(in), in.AdditionalCosts).BlendedUnitCost
}

func lines(in Input) []costing.PurchaseLine {
	return []costing.PurchaseLine{{Quantity: in.Quantity, UnitForeignCost: in.UnitForeignCost}}
}

func validate(in Input) error {
	if _, err := ParseMode(string(in.Mode)); err != nil {
		return err
	}
	if err := percentRange("channel_fee_percent", in.ChannelFeePercent); err != nil {
		return err
	}

	switch in.Mode {
	case ModeMargin:
		if err := percentRange("target_rate", in.TargetRate); err != nil {
			return err
		}
	case ModeProfit:
		if !in.TargetRate.GreaterThan(minusHundred) {
			return &InputError{Field: "target_rate", Reason: "profit rate must be greater than -100"}
		}
	case ModeDirect:
		if in.DirectPrice.IsNegative() {
			return &InputError{Field: "direct_price", Reason: "must not be negative"}
		}
	}

	switch {
	case in.Quantity < 0:
		return &InputError{Field: "quantity", Reason: "must not be negative"}
	case in.UnitForeignCost.IsNegative():
		return &InputError{Field: "unit_foreign_cost", Reason: "must not be negative"}
	case in.PackagingCost.IsNegative():
		return &InputError{Field: "packaging_cost", Reason: "must not be negative"}
	case in.ShippingCost.IsNegative():
		return &InputError{Field: "shipping_cost", Reason: "must not be negative"}
	}
	return nil
}

// percentRange accepts [0, 100).
func percentRange(field string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThanOrEqual(hundred) {
		return &InputError{Field: field, Reason: "must be in [0, 100)"}
	}
	return nil
}
