package costing

import "github.com/shopspring/decimal"

// RoundCurrency rounds to whole local currency units. Never apply it to a value that
// will be averaged again.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Percent returns part/whole*100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

func qty(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
