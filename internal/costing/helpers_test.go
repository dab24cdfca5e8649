package costing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

// assertNear compares with a relative tolerance of 1e-6.
func assertNear(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	diff := got.Sub(want).Abs()
	tol := want.Abs().Mul(d("0.000001"))
	if tol.LessThan(d("0.000001")) {
		tol = d("0.000001")
	}
	if diff.GreaterThan(tol) {
		t.Fatalf("%s = %s, want %s (diff %s)", name, got, want, diff)
	}
}
