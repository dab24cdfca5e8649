package pricing

import (
	"errors"
	"testing"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nearlyEqual(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(d("0.000001")) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

var conv190 = costing.NewConverter(d("190"))

// batchCosting5000 lands at 4300 per unit; with 300 packaging and 400 shipping the total
// cost per item is 5000.
func batchCosting5000() Input {
	return Input{
		UnitForeignCost:   d("20"),
		Quantity:          2,
		AdditionalCosts:   costing.AdditionalCosts{Shipping: d("1000")},
		PackagingCost:     d("300"),
		ShippingCost:      d("400"),
		ChannelFeePercent: d("10"),
	}
}

func TestSolve_MarginMode(t *testing.T) {
	in := batchCosting5000()
	in.Mode = ModeMargin
	in.TargetRate = d("50")

	sol, err := Solve(conv190, in)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	nearlyEqual(t, "actualCostPerItem", sol.ActualCostPerItem, d("4300"))
	nearlyEqual(t, "totalCostPerItem", sol.TotalCostPerItem, d("5000"))
	nearlyEqual(t, "priceBeforeFee", sol.PriceBeforeFee, d("10000"))
	nearlyEqual(t, "recommendedPrice", sol.RecommendedPrice, d("11111.111111111"))
	nearlyEqual(t, "netRevenue", sol.NetRevenue, d("10000"))
	nearlyEqual(t, "netProfit", sol.NetProfit, d("5000"))
	nearlyEqual(t, "actualMarginRate", sol.ActualMarginRate, d("50"))
	nearlyEqual(t, "grossMarginRate", sol.GrossMarginRate, d("45"))
	nearlyEqual(t, "actualProfitRate", sol.ActualProfitRate, d("100"))
	nearlyEqual(t, "totalInvestment", sol.TotalInvestment, d("8600"))
	nearlyEqual(t, "batchProfit", sol.BatchProfit, d("10000"))

	if !sol.BreakEvenQuantity.Valid {
		t.Fatalf("expected a break-even quantity")
	}
	nearlyEqual(t, "breakEven", sol.BreakEvenQuantity.Decimal, d("0.86"))
}

func TestSolve_MarginRoundTrip(t *testing.T) {
	margins := []string{"0", "12.5", "30", "50", "99"}
	fees := []string{"0", "3.3", "5.5", "10.8", "99"}

	for _, m := range margins {
		for _, f := range fees {
			in := batchCosting5000()
			in.Mode = ModeMargin
			in.TargetRate = d(m)
			in.ChannelFeePercent = d(f)

			sol, err := Solve(conv190, in)
			if err != nil {
				t.Fatalf("margin %s fee %s: %v", m, f, err)
			}
			nearlyEqual(t, "actualMarginRate", sol.ActualMarginRate, d(m))

			// A recorded sale at that price books the fee as a cost.
			sale := costing.ComputeSaleProfit(costing.SaleInput{
				Quantity:      1,
				UnitPrice:     sol.RecommendedPrice,
				FeePercent:    d(f),
				PackagingCost: in.PackagingCost,
				ShippingCost:  in.ShippingCost,
			}, sol.ActualCostPerItem)
			want := d(m).Mul(decimal.NewFromInt(1).Sub(d(f).Div(hundred)))
			nearlyEqual(t, "sale margin", sale.MarginRate, want)
			nearlyEqual(t, "grossMarginRate", sol.GrossMarginRate, want)
		}
	}
}

func TestSolve_ProfitMode(t *testing.T) {
	in := batchCosting5000()
	in.Mode = ModeProfit
	in.TargetRate = d("20")
	in.ChannelFeePercent = decimal.Zero

	sol, err := Solve(conv190, in)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	nearlyEqual(t, "priceBeforeFee", sol.PriceBeforeFee, d("6000"))
	nearlyEqual(t, "recommendedPrice", sol.RecommendedPrice, d("6000"))
	nearlyEqual(t, "netProfit", sol.NetProfit, d("1000"))
	nearlyEqual(t, "actualProfitRate", sol.ActualProfitRate, d("20"))
}

func TestSolve_DirectMode(t *testing.T) {
	in := batchCosting5000()
	in.Mode = ModeDirect
	in.DirectPrice = d("8000")

	sol, err := Solve(conv190, in)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	nearlyEqual(t, "recommendedPrice", sol.RecommendedPrice, d("8000"))
	nearlyEqual(t, "channelFee", sol.ChannelFee, d("800"))
	nearlyEqual(t, "netRevenue", sol.NetRevenue, d("7200"))
	nearlyEqual(t, "netProfit", sol.NetProfit, d("2200"))
	nearlyEqual(t, "grossMarginRate", sol.GrossMarginRate, d("27.5"))
	nearlyEqual(t, "actualProfitRate", sol.ActualProfitRate, d("44"))
}

func TestSolve_BreakEvenUndefinedWithoutNetRevenue(t *testing.T) {
	in := batchCosting5000()
	in.Mode = ModeDirect
	in.DirectPrice = decimal.Zero

	sol, err := Solve(conv190, in)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.BreakEvenQuantity.Valid {
		t.Fatalf("break-even = %s, want invalid", sol.BreakEvenQuantity.Decimal)
	}
	if !sol.ActualMarginRate.IsZero() || !sol.GrossMarginRate.IsZero() {
		t.Fatalf("margins should be zero without revenue: %s / %s", sol.ActualMarginRate, sol.GrossMarginRate)
	}
}

func TestSolve_WithoutQuantityUsesConvertedItemCost(t *testing.T) {
	in := Input{
		Mode:            ModeMargin,
		TargetRate:      d("20"),
		UnitForeignCost: d("10"),
		AdditionalCosts: costing.AdditionalCosts{Shipping: d("5000")},
	}

	sol, err := Solve(conv190, in)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	nearlyEqual(t, "actualCostPerItem", sol.ActualCostPerItem, d("1900"))
	nearlyEqual(t, "recommendedPrice", sol.RecommendedPrice, d("2375"))
	nearlyEqual(t, "batchProfit", sol.BatchProfit, decimal.Zero)
}

func TestSolve_RejectsDegenerateRates(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*Input)
		field string
	}{
		{"margin at 100", func(in *Input) { in.Mode = ModeMargin; in.TargetRate = d("100") }, "target_rate"},
		{"negative margin", func(in *Input) { in.Mode = ModeMargin; in.TargetRate = d("-1") }, "target_rate"},
		{"fee at 100", func(in *Input) { in.Mode = ModeMargin; in.ChannelFeePercent = d("100") }, "channel_fee_percent"},
		{"profit at -100", func(in *Input) { in.Mode = ModeProfit; in.TargetRate = d("-100") }, "target_rate"},
		{"negative direct price", func(in *Input) { in.Mode = ModeDirect; in.DirectPrice = d("-1") }, "direct_price"},
		{"negative quantity", func(in *Input) { in.Mode = ModeDirect; in.Quantity = -3 }, "quantity"},
		{"unknown mode", func(in *Input) { in.Mode = "markup" }, "mode"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := batchCosting5000()
			tc.mut(&in)

			_, err := Solve(conv190, in)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected *InputError, got %v", err)
			}
			if inputErr.Field != tc.field {
				t.Fatalf("field = %q, want %q", inputErr.Field, tc.field)
			}
		})
	}
}

func TestSolution_Rounded(t *testing.T) {
	in := batchCosting5000()
	in.Mode = ModeMargin
	in.TargetRate = d("50")

	sol, err := Solve(conv190, in)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	r := sol.Rounded()

	if !r.RecommendedPrice.Equal(d("11111")) {
		t.Fatalf("recommendedPrice = %s", r.RecommendedPrice)
	}
	if !r.BreakEvenQuantity.Valid || !r.BreakEvenQuantity.Decimal.Equal(d("0.86")) {
		t.Fatalf("breakEven = %v", r.BreakEvenQuantity)
	}
	if !r.GrossMarginRate.Equal(d("45")) {
		t.Fatalf("grossMarginRate = %s", r.GrossMarginRate)
	}
}
