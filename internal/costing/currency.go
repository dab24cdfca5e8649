// Package costing holds the cost engine: currency conversion, landed-cost allocation,
// the moving-average cost of an option, and per-sale profitability.
//
// Everything here is a pure function of its inputs. Callers own persistence and the
// per-option serialization that the read-modify-write in ApplyPurchase/ApplySale requires.
package costing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Converter turns foreign-currency amounts into local currency at a fixed rate.
type Converter struct {
	Rate decimal.Decimal
}

func NewConverter(rate decimal.Decimal) Converter {
	return Converter{Rate: rate}
}

// ToLocal is not rounded; rounding happens only when figures are displayed or aggregated.
func (c Converter) ToLocal(foreign decimal.Decimal) decimal.Decimal {
	return foreign.Mul(c.Rate)
}
