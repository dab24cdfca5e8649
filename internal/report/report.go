// Package report folds products, sales and purchases into dashboard statistics.
//
// Aggregate is a pure function: it never reads the clock, never iterates a map to build its
// output, and returns identical results for identical inputs, so callers may memoize it.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

type Dataset struct {
	Products  []model.Product
	Sales     []model.Sale
	Purchases []model.Purchase
}

type Options struct {
	TopN int
	// RecentPerKind is how many of the latest sales and of the latest purchases enter the feed.
	RecentPerKind int
	RecentLimit   int
	Thresholds    costing.StockThresholds
}

func DefaultOptions() Options {
	return Options{
		TopN:          5,
		RecentPerKind: 5,
		RecentLimit:   10,
		Thresholds:    costing.DefaultStockThresholds,
	}
}

type Dashboard struct {
	KPIs        KPIs           `json:"kpis"`
	Monthly     []MonthlyPoint `json:"monthly"`
	Channels    []ChannelShare `json:"channels"`
	TopProducts []ProductRank  `json:"top_products"`
	LowStock    []LowStockItem `json:"low_stock"`
	Recent      []Activity     `json:"recent"`
}

type KPIs struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	TotalInvestment decimal.Decimal `json:"total_investment"`
	MarginRate      decimal.Decimal `json:"margin_rate"`
	RecoveryRate    decimal.Decimal `json:"recovery_rate"`
	InventoryValue  decimal.Decimal `json:"inventory_value"`
	UnitsSold       int             `json:"units_sold"`
	SaleCount       int             `json:"sale_count"`
	PurchaseCount   int             `json:"purchase_count"`
	ProductCount    int             `json:"product_count"`
	OptionCount     int             `json:"option_count"`
	LowStockCount   int             `json:"low_stock_count"`
}

type MonthlyPoint struct {
	Month             string          `json:"month"`
	Revenue           decimal.Decimal `json:"revenue"`
	Profit            decimal.Decimal `json:"profit"`
	PurchaseCost      decimal.Decimal `json:"purchase_cost"`
	PurchasedQuantity int             `json:"purchased_quantity"`
	SoldQuantity      int             `json:"sold_quantity"`

	CumulativeRevenue    decimal.Decimal `json:"cumulative_revenue"`
	CumulativeProfit     decimal.Decimal `json:"cumulative_profit"`
	CumulativeInvestment decimal.Decimal `json:"cumulative_investment"`
	// RecoveryRate is cumulative revenue over cumulative investment, in percent.
	RecoveryRate decimal.Decimal `json:"recovery_rate"`
}

type ChannelShare struct {
	Channel model.Channel   `json:"channel"`
	Sales   int             `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
	Share   decimal.Decimal `json:"share"`
}

type ProductRank struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
	Profit    decimal.Decimal `json:"profit"`
}

type LowStockItem struct {
	ProductID   string              `json:"product_id"`
	ProductName string              `json:"product_name"`
	OptionID    string              `json:"option_id"`
	OptionName  string              `json:"option_name"`
	Stock       int                 `json:"stock"`
	Status      costing.StockStatus `json:"status"`
}

type ActivityType string

const (
	ActivitySale     ActivityType = "sale"
	ActivityPurchase ActivityType = "purchase"
)

type Activity struct {
	Type        ActivityType `json:"type"`
	ID          string       `json:"id"`
	Date        time.Time    `json:"date"`
	Description string       `json:"description"`
	// Amount is positive for money coming in (sale revenue) and negative for money going
	// out (purchase grand total).
	Amount  decimal.Decimal `json:"amount"`
	Deleted bool            `json:"deleted"`

	createdAt time.Time
}

// Aggregate computes every dashboard figure from the given history.
func Aggregate(ds Dataset, opts Options) Dashboard {
	idx := newCatalogIndex(ds.Products)

	profits := make([]costing.SaleProfit, len(ds.Sales))
	for i := range ds.Sales {
		profits[i] = idx.saleProfit(&ds.Sales[i])
	}
	spend := make([]purchaseSpend, len(ds.Purchases))
	for i := range ds.Purchases {
		spend[i] = idx.purchaseSpend(&ds.Purchases[i])
	}

	dash := Dashboard{
		Monthly:     monthly(ds, profits, spend),
		Channels:    channels(ds.Sales, profits),
		TopProducts: topProducts(ds.Sales, profits, idx, opts.TopN),
		LowStock:    lowStock(ds.Products, opts.Thresholds),
		Recent:      recent(ds, profits, spend, idx, opts),
	}
	dash.KPIs = kpis(ds, profits, spend, len(dash.LowStock))
	return dash
}

type catalogIndex struct {
	products map[string]*model.Product
}

func newCatalogIndex(products []model.Product) catalogIndex {
	idx := catalogIndex{products: make(map[string]*model.Product, len(products))}
	for i := range products {
		idx.products[products[i].ID] = &products[i]
	}
	return idx
}

func (idx catalogIndex) lookup(productID, optionID string) (*model.Product, *model.ProductOption) {
	p, ok := idx.products[productID]
	if !ok {
		return nil, nil
	}
	return p, p.FindOption(optionID)
}

// saleProfit zeroes every figure of a sale whose product or option is gone.
func (idx catalogIndex) saleProfit(s *model.Sale) costing.SaleProfit {
	p, o := idx.lookup(s.ProductID, s.OptionID)
	if p == nil || o == nil {
		return costing.MissingSaleProfit()
	}
	return s.Profit()
}

// purchaseSpend is what a purchase still counts for once lines whose product or option is gone
// are zeroed.
type purchaseSpend struct {
	Cost         decimal.Decimal
	Quantity     int
	DeletedLines int
}

func (idx catalogIndex) purchaseSpend(p *model.Purchase) purchaseSpend {
	landed := p.LandedCost()

	var missing []bool
	deleted := 0
	for i, it := range p.Items {
		if prod, opt := idx.lookup(it.ProductID, it.OptionID); prod == nil || opt == nil {
			if missing == nil {
				missing = make([]bool, len(p.Items))
			}
			missing[i] = true
			deleted++
		}
	}
	if deleted == 0 {
		return purchaseSpend{Cost: landed.GrandTotal, Quantity: landed.TotalQuantity}
	}

	// Shared costs follow the lines they were allocated to under the purchase's own policy.
	policy, err := costing.ParseAllocationPolicy(p.AllocationPolicy)
	if err != nil {
		policy = costing.PolicyBlended
	}
	units := costing.UnitCosts(policy, costing.NewConverter(p.ExchangeRate), p.Lines(), p.AdditionalCosts())

	out := purchaseSpend{Cost: decimal.Zero, DeletedLines: deleted}
	for i, it := range p.Items {
		if missing[i] || it.Quantity <= 0 {
			continue
		}
		out.Cost = out.Cost.Add(units[i].Mul(decimal.NewFromInt(int64(it.Quantity))))
		out.Quantity += it.Quantity
	}
	return out
}

func monthly(ds Dataset, profits []costing.SaleProfit, spend []purchaseSpend) []MonthlyPoint {
	byMonth := make(map[string]*MonthlyPoint)
	point := func(t time.Time) *MonthlyPoint {
		key := t.Format(monthLayout)
		mp, ok := byMonth[key]
		if !ok {
			mp = &MonthlyPoint{Month: key}
			byMonth[key] = mp
		}
		return mp
	}

	for i := range ds.Sales {
		mp := point(ds.Sales[i].SaleDate)
		mp.Revenue = mp.Revenue.Add(profits[i].Revenue)
		mp.Profit = mp.Profit.Add(profits[i].Profit)
		if !profits[i].Missing {
			mp.SoldQuantity += ds.Sales[i].Quantity
		}
	}
	for i := range ds.Purchases {
		mp := point(ds.Purchases[i].PurchaseDate)
		mp.PurchaseCost = mp.PurchaseCost.Add(spend[i].Cost)
		mp.PurchasedQuantity += spend[i].Quantity
	}

	out := make([]MonthlyPoint, 0, len(byMonth))
	for _, mp := range byMonth {
		out = append(out, *mp)
	}
	slices.SortFunc(out, func(a, b MonthlyPoint) int { return cmp.Compare(a.Month, b.Month) })

	var revenue, profit, investment decimal.Decimal
	for i := range out {
		revenue = revenue.Add(out[i].Revenue)
		profit = profit.Add(out[i].Profit)
		investment = investment.Add(out[i].PurchaseCost)

		out[i].CumulativeRevenue = costing.RoundCurrency(revenue)
		out[i].CumulativeProfit = costing.RoundCurrency(profit)
		out[i].CumulativeInvestment = costing.RoundCurrency(investment)
		out[i].RecoveryRate = rate(revenue, investment)

		out[i].Revenue = costing.RoundCurrency(out[i].Revenue)
		out[i].Profit = costing.RoundCurrency(out[i].Profit)
		out[i].PurchaseCost = costing.RoundCurrency(out[i].PurchaseCost)
	}
	return out
}

func channels(sales []model.Sale, profits []costing.SaleProfit) []ChannelShare {
	var order []model.Channel
	byChannel := make(map[model.Channel]*ChannelShare)
	total := decimal.Zero

	for i := range sales {
		if profits[i].Missing {
			continue
		}
		ch := sales[i].Channel
		cs, ok := byChannel[ch]
		if !ok {
			cs = &ChannelShare{Channel: ch}
			byChannel[ch] = cs
			order = append(order, ch)
		}
		cs.Sales++
		cs.Revenue = cs.Revenue.Add(profits[i].Revenue)
		total = total.Add(profits[i].Revenue)
	}

	slices.SortFunc(order, func(a, b model.Channel) int {
		return cmp.Or(cmp.Compare(channelRank(a), channelRank(b)), cmp.Compare(a, b))
	})

	out := make([]ChannelShare, 0, len(order))
	for _, ch := range order {
		cs := *byChannel[ch]
		cs.Share = rate(cs.Revenue, total)
		cs.Revenue = costing.RoundCurrency(cs.Revenue)
		out = append(out, cs)
	}
	return out
}

func channelRank(c model.Channel) int {
	if i := slices.Index(model.Channels, c); i >= 0 {
		return i
	}
	return len(model.Channels)
}

func topProducts(sales []model.Sale, profits []costing.SaleProfit, idx catalogIndex, n int) []ProductRank {
	var ranks []ProductRank
	pos := make(map[string]int)

	for i := range sales {
		if profits[i].Missing {
			continue
		}
		id := sales[i].ProductID
		j, ok := pos[id]
		if !ok {
			j = len(ranks)
			pos[id] = j
			ranks = append(ranks, ProductRank{ProductID: id, Name: idx.products[id].Name})
		}
		ranks[j].Quantity += sales[i].Quantity
		ranks[j].Revenue = ranks[j].Revenue.Add(profits[i].Revenue)
		ranks[j].Profit = ranks[j].Profit.Add(profits[i].Profit)
	}

	slices.SortStableFunc(ranks, func(a, b ProductRank) int { return b.Revenue.Cmp(a.Revenue) })
	if n >= 0 && len(ranks) > n {
		ranks = ranks[:n]
	}
	for i := range ranks {
		ranks[i].Revenue = costing.RoundCurrency(ranks[i].Revenue)
		ranks[i].Profit = costing.RoundCurrency(ranks[i].Profit)
	}
	return ranks
}

func lowStock(products []model.Product, th costing.StockThresholds) []LowStockItem {
	var out []LowStockItem
	for _, p := range products {
		for _, o := range p.Options {
			status := costing.ClassifyStock(o.Stock, th)
			if !status.NeedsAttention() {
				continue
			}
			out = append(out, LowStockItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				OptionID:    o.ID,
				OptionName:  o.Name,
				Stock:       o.Stock,
				Status:      status,
			})
		}
	}

	slices.SortFunc(out, func(a, b LowStockItem) int {
		return cmp.Or(
			cmp.Compare(a.Stock, b.Stock),
			cmp.Compare(a.ProductName, b.ProductName),
			cmp.Compare(a.OptionName, b.OptionName),
			cmp.Compare(a.OptionID, b.OptionID),
		)
	})
	return out
}

func recent(ds Dataset, profits []costing.SaleProfit, spend []purchaseSpend, idx catalogIndex, opts Options) []Activity {
	sales := make([]Activity, 0, len(ds.Sales))
	for i := range ds.Sales {
		s := &ds.Sales[i]
		sales = append(sales, Activity{
			Type:        ActivitySale,
			ID:          s.ID,
			Date:        s.SaleDate,
			Description: idx.describeSale(s),
			Amount:      costing.RoundCurrency(profits[i].Revenue),
			Deleted:     profits[i].Missing,
			createdAt:   s.CreatedAt,
		})
	}

	purchases := make([]Activity, 0, len(ds.Purchases))
	for i := range ds.Purchases {
		p := &ds.Purchases[i]
		purchases = append(purchases, Activity{
			Type:        ActivityPurchase,
			ID:          p.ID,
			Date:        p.PurchaseDate,
			Description: describePurchase(p, spend[i]),
			Amount:      costing.RoundCurrency(spend[i].Cost).Neg(),
			Deleted:     spend[i].DeletedLines > 0,
			createdAt:   p.CreatedAt,
		})
	}

	slices.SortFunc(sales, newestFirst)
	slices.SortFunc(purchases, newestFirst)

	feed := append(head(sales, opts.RecentPerKind), head(purchases, opts.RecentPerKind)...)
	slices.SortStableFunc(feed, newestFirst)
	return head(feed, opts.RecentLimit)
}

func (idx catalogIndex) describeSale(s *model.Sale) string {
	p, o := idx.lookup(s.ProductID, s.OptionID)
	switch {
	case p == nil:
		return fmt.Sprintf("Deleted item x%d", s.Quantity)
	case o == nil:
		return fmt.Sprintf("%s (deleted option) x%d", p.Name, s.Quantity)
	default:
		return fmt.Sprintf("%s / %s x%d", p.Name, o.Name, s.Quantity)
	}
}

func describePurchase(p *model.Purchase, s purchaseSpend) string {
	switch {
	case s.DeletedLines == 0:
		return fmt.Sprintf("Purchase of %d units in %d lines", s.Quantity, len(p.Items))
	case s.DeletedLines == len(p.Items):
		return "Purchase of deleted items"
	default:
		return fmt.Sprintf("Purchase of %d units in %d lines (%d deleted)", s.Quantity, len(p.Items), s.DeletedLines)
	}
}

func newestFirst(a, b Activity) int {
	return cmp.Or(
		b.Date.Compare(a.Date),
		b.createdAt.Compare(a.createdAt),
		cmp.Compare(a.ID, b.ID),
	)
}

func head(a []Activity, n int) []Activity {
	if n >= 0 && len(a) > n {
		return a[:n:n]
	}
	return a
}

func kpis(ds Dataset, profits []costing.SaleProfit, spend []purchaseSpend, lowStockCount int) KPIs {
	k := KPIs{
		SaleCount:     len(ds.Sales),
		PurchaseCount: len(ds.Purchases),
		ProductCount:  len(ds.Products),
		LowStockCount: lowStockCount,
	}

	var revenue, profit, investment, inventory decimal.Decimal
	for i := range profits {
		revenue = revenue.Add(profits[i].Revenue)
		profit = profit.Add(profits[i].Profit)
		if !profits[i].Missing {
			k.UnitsSold += ds.Sales[i].Quantity
		}
	}
	for i := range spend {
		investment = investment.Add(spend[i].Cost)
	}
	for _, p := range ds.Products {
		k.OptionCount += len(p.Options)
		for i := range p.Options {
			inventory = inventory.Add(p.Options[i].InventoryValue())
		}
	}

	k.TotalRevenue = costing.RoundCurrency(revenue)
	k.TotalProfit = costing.RoundCurrency(profit)
	k.TotalInvestment = costing.RoundCurrency(investment)
	k.InventoryValue = costing.RoundCurrency(inventory)
	k.MarginRate = rate(profit, revenue)
	k.RecoveryRate = rate(revenue, investment)
	return k
}

// rate is a percentage rounded to two decimals for display.
func rate(part, whole decimal.Decimal) decimal.Decimal {
	return costing.Percent(part, whole).Round(2)
}
