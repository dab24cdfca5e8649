package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/search"
	"github.com/fekuna/omnipos-margin-service/internal/product"
	"github.com/fekuna/omnipos-margin-service/internal/product/dto"
	"github.com/shopspring/decimal"
)

type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type fakeRepo struct {
	mu       sync.Mutex
	products map[string]model.Product
	findAll  int
}

func newFakeRepo(products ...model.Product) *fakeRepo {
	r := &fakeRepo{products: make(map[string]model.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeRepo) Create(ctx context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	cp.Options = append([]model.ProductOption(nil), p.Options...)
	r.products[p.ID] = cp
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.Options = append([]model.ProductOption(nil), p.Options...)
	return &p, nil
}

func (r *fakeRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	var out []model.Product
	for _, id := range ids {
		if p, err := r.FindByID(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindAll(ctx context.Context, f *dto.ProductFilters) ([]model.Product, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findAll++
	var out []model.Product
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Update(ctx context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.products[p.ID]
	cur.Name, cur.ImageURL, cur.BaseForeignCost = p.Name, p.ImageURL, p.BaseForeignCost
	r.products[p.ID] = cur
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *fakeRepo) InsertOption(ctx context.Context, o *model.ProductOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.products[o.ProductID]
	p.Options = append(p.Options, *o)
	r.products[o.ProductID] = p
	return nil
}

func (r *fakeRepo) UpdateOptionLabels(ctx context.Context, o *model.ProductOption) error {
	return r.editOption(o.ID, func(cur *model.ProductOption) {
		cur.Name, cur.SKU = o.Name, o.SKU
	})
}

func (r *fakeRepo) DeleteOption(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, p := range r.products {
		for i, o := range p.Options {
			if o.ID == id {
				p.Options = append(p.Options[:i:i], p.Options[i+1:]...)
				r.products[pid] = p
				return nil
			}
		}
	}
	return nil
}

func (r *fakeRepo) IsSKUTaken(ctx context.Context, sku string, exclude []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sku == "" {
		return false, nil
	}
	for _, p := range r.products {
		for _, o := range p.Options {
			if o.SKU != sku {
				continue
			}
			excluded := false
			for _, id := range exclude {
				excluded = excluded || id == o.ID
			}
			if !excluded {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakeRepo) SetRecommendedPrice(ctx context.Context, optionID string, price decimal.NullDecimal) (*model.ProductOption, error) {
	var out model.ProductOption
	err := r.editOption(optionID, func(cur *model.ProductOption) {
		cur.RecommendedPrice = price
		out = *cur
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *fakeRepo) editOption(id string, fn func(*model.ProductOption)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		for i := range p.Options {
			if p.Options[i].ID == id {
				fn(&p.Options[i])
				return nil
			}
		}
	}
	return product.ErrOptionNotFound
}

type fakeSearcher struct {
	mu    sync.Mutex
	ids   []string
	total int
	err   error
	index string
}

func (s *fakeSearcher) CreateIndex(ctx context.Context, index, mapping string) error { return nil }
func (s *fakeSearcher) Index(ctx context.Context, index, id string, doc any) error { return nil }
func (s *fakeSearcher) Delete(ctx context.Context, index, id string) error { return nil }

func (s *fakeSearcher) Search(ctx context.Context, index string, query map[string]interface{}) (*search.SearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
	if s.err != nil {
		return nil, s.err
	}
	res := &search.SearchResponse{}
	res.Hits.Total.Value = s.total
	for _, id := range s.ids {
		res.Hits.Hits = append(res.Hits.Hits, struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		}{ID: id})
	}
	return res, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newUseCase(repo product.Repository, c cache.Cache, es product.Searcher) product.UseCase {
	return NewProductUseCase(repo, fakeTx{}, c, es, "products", logger.NewNop())
}

func appErrorStatus(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an AppError", err)
	}
	return appErr.StatusCode
}

func TestCreateProduct_OptionsStartEmpty(t *testing.T) {
	repo := newFakeRepo()
	uc := newUseCase(repo, cache.NewMemory(), nil)

	p, err := uc.CreateProduct(context.Background(), &dto.CreateProductInput{
		Name:            "  Ceramic Mug ",
		BaseForeignCost: d("12.5"),
		Options:         []dto.OptionInput{{Name: "Red", SKU: "MUG-R"}, {Name: "Blue"}},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if p.Name != "Ceramic Mug" || len(p.Options) != 2 {
		t.Fatalf("product = %+v", p)
	}
	for _, o := range p.Options {
		if o.Stock != 0 || !o.CostOfGoods.IsZero() || o.ProductID != p.ID {
			t.Fatalf("new option = %+v, want zero stock and cost", o)
		}
	}
	if _, err := repo.FindByID(context.Background(), p.ID); err != nil {
		t.Fatalf("product not persisted: %v", err)
	}
}

func TestCreateProduct_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input dto.CreateProductInput
	}{
		{"missing name", dto.CreateProductInput{Options: []dto.OptionInput{{Name: "A"}}}},
		{"no options", dto.CreateProductInput{Name: "Mug"}},
		{"blank option", dto.CreateProductInput{Name: "Mug", Options: []dto.OptionInput{{Name: " "}}}},
		{"duplicate option", dto.CreateProductInput{Name: "Mug", Options: []dto.OptionInput{{Name: "Red"}, {Name: "red"}}}},
		{"duplicate sku", dto.CreateProductInput{Name: "Mug", Options: []dto.OptionInput{{Name: "A", SKU: "X"}, {Name: "B", SKU: "X"}}}},
		{"negative cost", dto.CreateProductInput{Name: "Mug", BaseForeignCost: d("-1"), Options: []dto.OptionInput{{Name: "A"}}}},
	}

	uc := newUseCase(newFakeRepo(), cache.NewMemory(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.CreateProduct(context.Background(), &tt.input)
			if status := appErrorStatus(t, err); status != http.StatusBadRequest {
				t.Fatalf("status = %d", status)
			}
		})
	}
}

func TestCreateProduct_SKUTakenByAnotherProduct(t *testing.T) {
	existing := model.Product{BaseModel: model.BaseModel{ID: "p1"}, Name: "Mug",
		Options: []model.ProductOption{{BaseModel: model.BaseModel{ID: "o1"}, ProductID: "p1", Name: "Red", SKU: "MUG-R"}}}
	uc := newUseCase(newFakeRepo(existing), cache.NewMemory(), nil)

	_, err := uc.CreateProduct(context.Background(), &dto.CreateProductInput{
		Name: "Cup", Options: []dto.OptionInput{{Name: "Red", SKU: "MUG-R"}},
	})
	if status := appErrorStatus(t, err); status != http.StatusConflict {
		t.Fatalf("status = %d, want 409", status)
	}
}

func TestUpdateProduct_KeepsStockAndCost(t *testing.T) {
	existing := model.Product{
		BaseModel: model.BaseModel{ID: "p1"},
		Name:      "Mug",
		Options: []model.ProductOption{
			{BaseModel: model.BaseModel{ID: "o1"}, ProductID: "p1", Name: "Red", SKU: "MUG-R", Stock: 7, CostOfGoods: d("1500")},
			{BaseModel: model.BaseModel{ID: "o2"}, ProductID: "p1", Name: "Blue", Stock: 0},
		},
	}
	repo := newFakeRepo(existing)
	uc := newUseCase(repo, cache.NewMemory(), nil)

	p, err := uc.UpdateProduct(context.Background(), &dto.UpdateProductInput{
		ID:   "p1",
		Name: "Big Mug",
		Options: []dto.OptionInput{
			{ID: "o1", Name: "Crimson", SKU: "MUG-R"},
			{Name: "Green"},
		},
	})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if p.Name != "Big Mug" || len(p.Options) != 2 {
		t.Fatalf("product = %+v", p)
	}

	red := p.FindOption("o1")
	if red == nil || red.Name != "Crimson" || red.Stock != 7 || !red.CostOfGoods.Equal(d("1500")) {
		t.Fatalf("o1 = %+v, want renamed with stock 7 @ 1500", red)
	}
	if p.FindOption("o2") != nil {
		t.Fatalf("o2 should have been removed")
	}
	if p.Options[1].Name != "Green" || p.Options[1].Stock != 0 {
		t.Fatalf("new option = %+v", p.Options[1])
	}
}

func TestUpdateProduct_ForeignOptionRejected(t *testing.T) {
	existing := model.Product{BaseModel: model.BaseModel{ID: "p1"}, Name: "Mug",
		Options: []model.ProductOption{{BaseModel: model.BaseModel{ID: "o1"}, ProductID: "p1", Name: "Red"}}}
	uc := newUseCase(newFakeRepo(existing), cache.NewMemory(), nil)

	_, err := uc.UpdateProduct(context.Background(), &dto.UpdateProductInput{
		ID: "p1", Name: "Mug", Options: []dto.OptionInput{{ID: "other", Name: "Red"}},
	})
	if status := appErrorStatus(t, err); status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	uc := newUseCase(newFakeRepo(), cache.NewMemory(), nil)
	_, err := uc.UpdateProduct(context.Background(), &dto.UpdateProductInput{
		ID: "missing", Name: "Mug", Options: []dto.OptionInput{{Name: "A"}},
	})
	if !errors.Is(err, product.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListProducts_CachedUntilWrite(t *testing.T) {
	repo := newFakeRepo(model.Product{BaseModel: model.BaseModel{ID: "p1"}, Name: "Mug"})
	mem := cache.NewMemory()
	uc := newUseCase(repo, mem, nil)
	ctx := context.Background()
	filters := &dto.ProductFilters{Page: 1, PageSize: 20}

	mem.SetJSON(ctx, "dashboard:summary", 1, 0)

	for i := 0; i < 2; i++ {
		if _, n, err := uc.ListProducts(ctx, filters); err != nil || n != 1 {
			t.Fatalf("ListProducts = %d, %v", n, err)
		}
	}
	if repo.findAll != 1 {
		t.Fatalf("repository queried %d times, want 1", repo.findAll)
	}

	if err := uc.DeleteProduct(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if _, n, _ := uc.ListProducts(ctx, filters); n != 0 || repo.findAll != 2 {
		t.Fatalf("after delete: count = %d, queries = %d", n, repo.findAll)
	}

	var v int
	if err := mem.GetJSON(ctx, "dashboard:summary", &v); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("dashboard cache survived a product write")
	}
}

func TestListProducts_SearchUsesIndexOrder(t *testing.T) {
	repo := newFakeRepo(
		model.Product{BaseModel: model.BaseModel{ID: "p1"}, Name: "Mug"},
		model.Product{BaseModel: model.BaseModel{ID: "p2"}, Name: "Mug Lid"},
	)
	es := &fakeSearcher{ids: []string{"p2", "p1"}, total: 2}
	uc := newUseCase(repo, cache.NewMemory(), es)

	products, total, err := uc.ListProducts(context.Background(), &dto.ProductFilters{SearchQuery: "mug", Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if total != 2 || products[0].ID != "p2" || products[1].ID != "p1" {
		t.Fatalf("products = %+v, total = %d", products, total)
	}
	if repo.findAll != 0 {
		t.Fatalf("database list used despite a working index")
	}
	if es.index != "products" {
		t.Fatalf("searched index %q", es.index)
	}
}

func TestListProducts_SearchFallsBackToDatabase(t *testing.T) {
	repo := newFakeRepo(model.Product{BaseModel: model.BaseModel{ID: "p1"}, Name: "Mug"})
	uc := newUseCase(repo, cache.NewMemory(), &fakeSearcher{err: errors.New("cluster down")})

	_, total, err := uc.ListProducts(context.Background(), &dto.ProductFilters{SearchQuery: "mug", Page: 1, PageSize: 20})
	if err != nil || total != 1 || repo.findAll != 1 {
		t.Fatalf("fallback: total = %d, err = %v, queries = %d", total, err, repo.findAll)
	}
}

func TestSetRecommendedPrice(t *testing.T) {
	existing := model.Product{BaseModel: model.BaseModel{ID: "p1"}, Name: "Mug",
		Options: []model.ProductOption{{BaseModel: model.BaseModel{ID: "o1"}, ProductID: "p1", Name: "Red"}}}
	uc := newUseCase(newFakeRepo(existing), cache.NewMemory(), nil)
	ctx := context.Background()

	o, err := uc.SetRecommendedPrice(ctx, &dto.SetRecommendedPriceInput{
		OptionID: "o1", Price: decimal.NewNullDecimal(d("11111")),
	})
	if err != nil || !o.RecommendedPrice.Valid || !o.RecommendedPrice.Decimal.Equal(d("11111")) {
		t.Fatalf("SetRecommendedPrice = %+v, %v", o, err)
	}

	o, err = uc.SetRecommendedPrice(ctx, &dto.SetRecommendedPriceInput{OptionID: "o1"})
	if err != nil || o.RecommendedPrice.Valid {
		t.Fatalf("clearing price = %+v, %v", o, err)
	}

	_, err = uc.SetRecommendedPrice(ctx, &dto.SetRecommendedPriceInput{
		OptionID: "o1", Price: decimal.NewNullDecimal(d("-1")),
	})
	appErrorStatus(t, err)

	_, err = uc.SetRecommendedPrice(ctx, &dto.SetRecommendedPriceInput{OptionID: "nope"})
	if !errors.Is(err, product.ErrOptionNotFound) {
		t.Fatalf("err = %v, want ErrOptionNotFound", err)
	}
}
