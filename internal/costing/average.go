package costing

import "github.com/shopspring/decimal"

// OptionState is the mutable pair the engine maintains per product option.
type OptionState struct {
	Stock       int             `json:"stock"`
	CostOfGoods decimal.Decimal `json:"cost_of_goods"`
}

// ApplyPurchase folds a received batch into the option's moving-average cost.
// A batch with a non-positive unit cost only adds stock.
func ApplyPurchase(s OptionState, received int, unitCost decimal.Decimal) OptionState {
	if received <= 0 {
		return s
	}

	newStock := s.Stock + received
	if !unitCost.IsPositive() {
		return OptionState{Stock: newStock, CostOfGoods: s.CostOfGoods}
	}
	if newStock <= 0 {
		return OptionState{Stock: newStock, CostOfGoods: unitCost}
	}

	oldValue := s.CostOfGoods.Mul(qty(s.Stock))
	batchValue := unitCost.Mul(qty(received))

	return OptionState{
		Stock:       newStock,
		CostOfGoods: oldValue.Add(batchValue).Div(qty(newStock)),
	}
}

type SaleOutcome struct {
	State OptionState
	// Oversold reports that more units were sold than were in stock.
	Oversold bool
}

// ApplySale removes quantity from stock. Cost is untouched and stock may go negative.
func ApplySale(s OptionState, quantity int) SaleOutcome {
	return SaleOutcome{
		State:    OptionState{Stock: s.Stock - quantity, CostOfGoods: s.CostOfGoods},
		Oversold: quantity > s.Stock,
	}
}
