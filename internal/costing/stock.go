package costing

type StockStatus string

const (
	StockOutOfStock StockStatus = "out_of_stock"
	StockCritical   StockStatus = "critical"
	StockLow        StockStatus = "low"
	StockGood       StockStatus = "good"
)

// StockThresholds are inclusive upper bounds for the critical and low states.
type StockThresholds struct {
	Critical int
	Low      int
}

var DefaultStockThresholds = StockThresholds{Critical: 5, Low: 10}

func ClassifyStock(stock int, t StockThresholds) StockStatus {
	switch {
	case stock <= 0:
		return StockOutOfStock
	case stock <= t.Critical:
		return StockCritical
	case stock <= t.Low:
		return StockLow
	default:
		return StockGood
	}
}

// NeedsAttention is true for every state except good.
func (s StockStatus) NeedsAttention() bool {
	return s != StockGood
}
