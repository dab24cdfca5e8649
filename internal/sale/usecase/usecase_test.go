package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/event"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	invdto "github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/sale"
	"github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	"github.com/fekuna/omnipos-margin-service/internal/settings"
	settingsdto "github.com/fekuna/omnipos-margin-service/internal/settings/dto"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type txMarker struct{}

type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, txMarker{}, true))
}

type fakeRepo struct {
	t     *testing.T
	sales map[string]model.Sale
}

func (r *fakeRepo) Create(ctx context.Context, s *model.Sale) error {
	if ctx.Value(txMarker{}) == nil {
		r.t.Errorf("sale inserted outside a transaction")
	}
	r.sales[s.ID] = *s
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, sale.ErrNotFound
	}
	return &s, nil
}

func (r *fakeRepo) FindByExternalRef(ctx context.Context, ref string) (*model.Sale, error) {
	for _, s := range r.sales {
		if s.ExternalRef != nil && *s.ExternalRef == ref {
			return &s, nil
		}
	}
	return nil, sale.ErrNotFound
}

func (r *fakeRepo) FindAll(ctx context.Context, f *dto.SaleFilters) ([]model.Sale, int, error) {
	var out []model.Sale
	for _, s := range r.sales {
		out = append(out, s)
	}
	return out, len(out), nil
}

// stubInventory holds a single option and applies sales to it.
type stubInventory struct {
	inventory.UseCase
	state    costing.OptionState
	releases []*invdto.ReleaseStockInput
	err      error
}

func (s *stubInventory) WithOptionLocks(ctx context.Context, ids []string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *stubInventory) ReleaseStock(ctx context.Context, in *invdto.ReleaseStockInput) (*invdto.StockChange, error) {
	s.releases = append(s.releases, in)
	if s.err != nil {
		return nil, s.err
	}
	before := s.state
	outcome := costing.ApplySale(before, in.Quantity)
	s.state = outcome.State
	return &invdto.StockChange{
		ProductID: in.ProductID,
		OptionID:  in.OptionID,
		Before:    before,
		After:     outcome.State,
		Oversold:  outcome.Oversold,
		Status:    costing.ClassifyStock(outcome.State.Stock, costing.DefaultStockThresholds),
	}, nil
}

type stubSettings struct {
	settings.UseCase
}

func (stubSettings) SaleDefaults(ctx context.Context, channel model.Channel) (*settingsdto.SaleDefaults, error) {
	fees := map[model.Channel]decimal.Decimal{
		model.ChannelSmartStore:    d("5.5"),
		model.ChannelMarketplaceA:  d("10.8"),
		model.ChannelOwnStorefront: d("3.3"),
		model.ChannelOther:         decimal.Zero,
	}
	return &settingsdto.SaleDefaults{
		Channel:       channel,
		FeePercent:    fees[channel],
		PackagingCost: d("100"),
		ShippingCost:  d("200"),
	}, nil
}

type fakePublisher struct {
	events []event.Envelope
}

func (p *fakePublisher) PublishJSON(ctx context.Context, key string, value any) error {
	p.events = append(p.events, value.(event.Envelope))
	return nil
}

type fixture struct {
	uc   sale.UseCase
	repo *fakeRepo
	inv  *stubInventory
	pub  *fakePublisher
}

func newFixture(t *testing.T, state costing.OptionState) *fixture {
	f := &fixture{
		repo: &fakeRepo{t: t, sales: make(map[string]model.Sale)},
		inv:  &stubInventory{state: state},
		pub:  &fakePublisher{},
	}
	uc := NewSaleUseCase(f.repo, f.inv, stubSettings{}, fakeTx{}, cache.NewMemory(), f.pub, logger.NewNop())
	uc.(*saleUseCase).now = func() time.Time { return time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC) }
	f.uc = uc
	return f
}

func fiveUnits() *dto.CreateSaleInput {
	return &dto.CreateSaleInput{
		SaleDate:   "2024-02-01",
		ProductID:  "p1",
		OptionID:   "o1",
		Quantity:   5,
		UnitPrice:  d("3000"),
		Channel:    "marketplace_a",
		FeePercent: decimal.NewNullDecimal(d("10")),
	}
}

func TestCreateSale_ProfitFromCostAtSale(t *testing.T) {
	f := newFixture(t, costing.OptionState{Stock: 20, CostOfGoods: d("1500")})

	res, err := f.uc.CreateSale(context.Background(), fiveUnits())
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	if !res.Sale.CostOfGoodsAtSale.Equal(d("1500")) {
		t.Fatalf("cost at sale = %s, want 1500", res.Sale.CostOfGoodsAtSale)
	}
	if !res.Profit.Profit.Equal(d("4500")) || !res.Profit.MarginRate.Equal(d("30")) {
		t.Fatalf("profit = %+v", res.Profit)
	}
	if res.Oversold || res.StockAfter != 15 || res.Status != costing.StockGood {
		t.Fatalf("result = %+v", res)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].EventType != event.TypeSaleRecorded {
		t.Fatalf("events = %+v", f.pub.events)
	}
	if f.inv.releases[0].SaleID != res.Sale.ID {
		t.Fatalf("movement not referenced to the sale")
	}
}

func TestCreateSale_HistoricalProfitIgnoresLaterCostChanges(t *testing.T) {
	f := newFixture(t, costing.OptionState{Stock: 20, CostOfGoods: d("1500")})
	res, err := f.uc.CreateSale(context.Background(), fiveUnits())
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	// A later purchase moves the option's cost.
	f.inv.state = costing.ApplyPurchase(f.inv.state, 15, d("2500"))

	detail, err := f.uc.GetSale(context.Background(), res.Sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if !detail.Profit.Profit.Equal(d("4500")) {
		t.Fatalf("profit after cost change = %s, want 4500", detail.Profit.Profit)
	}
}

func TestCreateSale_FillsDefaults(t *testing.T) {
	f := newFixture(t, costing.OptionState{Stock: 3, CostOfGoods: d("1000")})
	in := fiveUnits()
	in.SaleDate = ""
	in.Channel = "smart_store"
	in.FeePercent = decimal.NullDecimal{}

	res, err := f.uc.CreateSale(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	s := res.Sale
	if !s.FeePercent.Equal(d("5.5")) || !s.PackagingCost.Equal(d("100")) || !s.ShippingCost.Equal(d("200")) {
		t.Fatalf("defaults not applied: %+v", s)
	}
	if got := s.SaleDate.Format(model.DateLayout); got != "2024-02-03" {
		t.Fatalf("date = %s", got)
	}
	if !res.Oversold || res.StockAfter != -2 || res.Status != costing.StockOutOfStock {
		t.Fatalf("oversell not reported: %+v", res)
	}
}

func TestCreateSale_ExplicitZeroOverridesDefault(t *testing.T) {
	f := newFixture(t, costing.OptionState{Stock: 10, CostOfGoods: d("1000")})
	in := fiveUnits()
	in.PackagingCost = decimal.NewNullDecimal(decimal.Zero)

	res, err := f.uc.CreateSale(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if !res.Sale.PackagingCost.IsZero() {
		t.Fatalf("packaging = %s, want 0", res.Sale.PackagingCost)
	}
}

func TestCreateSale_DuplicateExternalRef(t *testing.T) {
	f := newFixture(t, costing.OptionState{Stock: 10, CostOfGoods: d("1000")})
	in := fiveUnits()
	in.ExternalRef = "order-1:1"

	if _, err := f.uc.CreateSale(context.Background(), in); err != nil {
		t.Fatalf("first CreateSale: %v", err)
	}
	_, err := f.uc.CreateSale(context.Background(), in)
	if !errors.Is(err, sale.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if len(f.inv.releases) != 1 {
		t.Fatalf("stock released %d times, want 1", len(f.inv.releases))
	}
}

func TestCreateSale_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *dto.CreateSaleInput)
	}{
		{"zero quantity", func(in *dto.CreateSaleInput) { in.Quantity = 0 }},
		{"negative price", func(in *dto.CreateSaleInput) { in.UnitPrice = d("-1") }},
		{"unknown channel", func(in *dto.CreateSaleInput) { in.Channel = "flea_market" }},
		{"fee of 100", func(in *dto.CreateSaleInput) { in.FeePercent = decimal.NewNullDecimal(d("100")) }},
		{"negative shipping", func(in *dto.CreateSaleInput) { in.ShippingCost = decimal.NewNullDecimal(d("-5")) }},
		{"missing option", func(in *dto.CreateSaleInput) { in.OptionID = "" }},
		{"bad date", func(in *dto.CreateSaleInput) { in.SaleDate = "yesterday" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, costing.OptionState{Stock: 10})
			in := fiveUnits()
			tt.mutate(in)

			_, err := f.uc.CreateSale(context.Background(), in)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || appErr.StatusCode != http.StatusBadRequest {
				t.Fatalf("err = %v, want validation error", err)
			}
			if len(f.inv.releases) != 0 {
				t.Fatalf("invalid sale touched stock")
			}
		})
	}
}

func TestCreateSale_InventoryErrorIsReturned(t *testing.T) {
	f := newFixture(t, costing.OptionState{})
	f.inv.err = inventory.ErrBusy

	if _, err := f.uc.CreateSale(context.Background(), fiveUnits()); !errors.Is(err, inventory.ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if len(f.repo.sales) != 0 || len(f.pub.events) != 0 {
		t.Fatalf("failed sale was recorded")
	}
}

func TestListSales_RejectsUnknownChannel(t *testing.T) {
	f := newFixture(t, costing.OptionState{})
	_, _, err := f.uc.ListSales(context.Background(), &dto.SaleFilters{Channel: "flea_market"})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
}
