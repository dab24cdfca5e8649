package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-margin-service/internal/product"
	"github.com/fekuna/omnipos-margin-service/internal/product/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	listCacheTTL     = 5 * time.Minute
	listCachePattern = "products:list:*"
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"name": { "type": "text" },
			"options": { "type": "text" },
			"skus": { "type": "keyword" },
			"created_at": { "type": "date" }
		}
	}
}`

type productDocument struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Options   []string  `json:"options"`
	SKUs      []string  `json:"skus"`
	CreatedAt time.Time `json:"created_at"`
}

type cachedList struct {
	Products []model.Product
	Count    int
}

type productUseCase struct {
	repo   product.Repository
	tx     postgres.TxManager
	cache  cache.Cache
	es     product.Searcher
	index  string
	logger logger.ZapLogger
}

// NewProductUseCase wires the product usecase. es may be nil when search is disabled.
func NewProductUseCase(repo product.Repository, tx postgres.TxManager, c cache.Cache, es product.Searcher, index string, log logger.ZapLogger) product.UseCase {
	return &productUseCase{
		repo:   repo,
		tx:     tx,
		cache:  c,
		es:     es,
		index:  index,
		logger: log,
	}
}

func (uc *productUseCase) CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error) {
	if err := validateProduct(input.Name, input.BaseForeignCost, input.Options); err != nil {
		return nil, err
	}
	if err := uc.checkSKUs(ctx, input.Options, nil); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &model.Product{
		BaseModel:       model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		Name:            strings.TrimSpace(input.Name),
		ImageURL:        input.ImageURL,
		BaseForeignCost: input.BaseForeignCost,
	}
	for _, in := range input.Options {
		p.Options = append(p.Options, newOption(p.ID, in, now))
	}

	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		return uc.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	uc.invalidateCache(ctx)
	go uc.syncToElastic(context.Background(), p)

	return p, nil
}

func (uc *productUseCase) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return uc.repo.FindByID(ctx, id)
}

func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	cacheKey, err := generateCacheKey(filters)
	if err == nil {
		var hit cachedList
		if err := uc.cache.GetJSON(ctx, cacheKey, &hit); err == nil {
			return hit.Products, hit.Count, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			uc.logger.Warn("product list cache read failed", zap.Error(err))
		}
	}

	var (
		products []model.Product
		count    int
		searched bool
	)
	if filters.SearchQuery != "" && uc.es != nil {
		products, count, err = uc.searchElastic(ctx, filters)
		if err == nil {
			searched = true
		} else {
			uc.logger.Error("elastic search failed, falling back to database", zap.Error(err))
		}
	}

	if !searched {
		products, count, err = uc.repo.FindAll(ctx, filters)
		if err != nil {
			return nil, 0, err
		}
	}

	if cacheKey != "" {
		if err := uc.cache.SetJSON(ctx, cacheKey, cachedList{Products: products, Count: count}, listCacheTTL); err != nil {
			uc.logger.Warn("product list cache write failed", zap.Error(err))
		}
	}
	return products, count, nil
}

// searchElastic resolves the matching ids in the index and loads the rows from the
// database, so stock and cost are never served stale from the index.
func (uc *productUseCase) searchElastic(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  filters.SearchQuery,
				"type":   "phrase_prefix",
				"fields": []string{"name^3", "options", "skus"},
			},
		},
	}
	if filters.PageSize > 0 {
		q["from"] = (filters.Page - 1) * filters.PageSize
		q["size"] = filters.PageSize
	}

	res, err := uc.es.Search(ctx, uc.index, q)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	products, err := uc.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return products, res.Hits.Total.Value, nil
}

func (uc *productUseCase) UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.Product, error) {
	if err := validateProduct(input.Name, input.BaseForeignCost, input.Options); err != nil {
		return nil, err
	}

	var updated *model.Product
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := uc.repo.FindByID(ctx, input.ID)
		if err != nil {
			return err
		}

		var keep []string
		for _, in := range input.Options {
			if in.ID == "" {
				continue
			}
			if p.FindOption(in.ID) == nil {
				return apperror.Validation(fmt.Sprintf("option %s does not belong to this product", in.ID))
			}
			keep = append(keep, in.ID)
		}
		existing := make([]string, len(p.Options))
		for i, o := range p.Options {
			existing[i] = o.ID
		}
		if err := uc.checkSKUs(ctx, input.Options, existing); err != nil {
			return err
		}

		now := time.Now()
		p.Name = strings.TrimSpace(input.Name)
		p.ImageURL = input.ImageURL
		p.BaseForeignCost = input.BaseForeignCost
		p.UpdatedAt = now
		if err := uc.repo.Update(ctx, p); err != nil {
			return err
		}

		for _, in := range input.Options {
			if in.ID == "" {
				o := newOption(p.ID, in, now)
				if err := uc.repo.InsertOption(ctx, &o); err != nil {
					return err
				}
				continue
			}
			o := p.FindOption(in.ID)
			o.Name = strings.TrimSpace(in.Name)
			o.SKU = strings.TrimSpace(in.SKU)
			o.UpdatedAt = now
			if err := uc.repo.UpdateOptionLabels(ctx, o); err != nil {
				return err
			}
		}

		for _, o := range p.Options {
			if slices.Contains(keep, o.ID) {
				continue
			}
			if o.Stock != 0 {
				uc.logger.Warn("removing option with stock on hand",
					zap.String("option_id", o.ID), zap.Int("stock", o.Stock))
			}
			if err := uc.repo.DeleteOption(ctx, o.ID); err != nil {
				return err
			}
		}

		updated, err = uc.repo.FindByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.invalidateCache(ctx)
	go uc.syncToElastic(context.Background(), updated)

	return updated, nil
}

func (uc *productUseCase) DeleteProduct(ctx context.Context, id string) error {
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}

	uc.invalidateCache(ctx)
	if uc.es != nil {
		go func() {
			if err := uc.es.Delete(context.Background(), uc.index, id); err != nil {
				uc.logger.Error("failed to delete product from elastic", zap.String("product_id", id), zap.Error(err))
			}
		}()
	}
	return nil
}

func (uc *productUseCase) SetRecommendedPrice(ctx context.Context, input *dto.SetRecommendedPriceInput) (*model.ProductOption, error) {
	if input.Price.Valid && input.Price.Decimal.IsNegative() {
		return nil, apperror.Validation("price must not be negative")
	}

	o, err := uc.repo.SetRecommendedPrice(ctx, input.OptionID, input.Price)
	if err != nil {
		return nil, err
	}

	uc.invalidateCache(ctx)
	return o, nil
}

func (uc *productUseCase) checkSKUs(ctx context.Context, options []dto.OptionInput, exclude []string) error {
	for _, in := range options {
		taken, err := uc.repo.IsSKUTaken(ctx, strings.TrimSpace(in.SKU), exclude)
		if err != nil {
			return err
		}
		if taken {
			return apperror.Conflict(fmt.Sprintf("%s: %s", product.ErrSKUExists.Error(), in.SKU))
		}
	}
	return nil
}

// invalidateCache drops every cached product list and the dashboard, which embeds
// product names and option states.
func (uc *productUseCase) invalidateCache(ctx context.Context) {
	for _, pattern := range []string{listCachePattern, cache.DashboardPattern} {
		if err := uc.cache.DeletePattern(ctx, pattern); err != nil {
			uc.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (uc *productUseCase) syncToElastic(ctx context.Context, p *model.Product) {
	if uc.es == nil || p == nil {
		return
	}
	if err := uc.es.CreateIndex(ctx, uc.index, indexMapping); err != nil {
		uc.logger.Warn("failed to ensure product index", zap.Error(err))
	}

	doc := productDocument{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
	for _, o := range p.Options {
		doc.Options = append(doc.Options, o.Name)
		if o.SKU != "" {
			doc.SKUs = append(doc.SKUs, o.SKU)
		}
	}
	if err := uc.es.Index(ctx, uc.index, p.ID, doc); err != nil {
		uc.logger.Error("failed to index product", zap.String("product_id", p.ID), zap.Error(err))
	}
}

func generateCacheKey(filters *dto.ProductFilters) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("products:list:%x", md5.Sum(data)), nil
}

func validateProduct(name string, baseCost decimal.Decimal, options []dto.OptionInput) error {
	if strings.TrimSpace(name) == "" {
		return apperror.Validation("name is required")
	}
	if baseCost.IsNegative() {
		return apperror.Validation("base_foreign_cost must not be negative")
	}
	if len(options) == 0 {
		return apperror.Validation("at least one option is required")
	}

	names := make(map[string]bool, len(options))
	skus := make(map[string]bool, len(options))
	for _, o := range options {
		n := strings.ToLower(strings.TrimSpace(o.Name))
		if n == "" {
			return apperror.Validation("option name is required")
		}
		if names[n] {
			return apperror.Validation(fmt.Sprintf("duplicate option name %q", o.Name))
		}
		names[n] = true

		sku := strings.TrimSpace(o.SKU)
		if sku == "" {
			continue
		}
		if skus[sku] {
			return apperror.Validation(fmt.Sprintf("duplicate sku %q", o.SKU))
		}
		skus[sku] = true
	}
	return nil
}

// newOption starts an option with no stock and no cost; only purchases change either.
func newOption(productID string, in dto.OptionInput, now time.Time) model.ProductOption {
	return model.ProductOption{
		BaseModel: model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		ProductID: productID,
		Name:      strings.TrimSpace(in.Name),
		SKU:       strings.TrimSpace(in.SKU),
	}
}
