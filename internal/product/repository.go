package product

import (
	"context"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/product/dto"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create inserts the product and its options.
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id string) (*model.Product, error)
	// FindByIDs returns the products in the order of ids, skipping unknown ones.
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	FindAll(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	// Update writes the descriptive product fields only.
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id string) error

	InsertOption(ctx context.Context, o *model.ProductOption) error
	// UpdateOptionLabels writes name and sku. Stock and cost are owned by inventory.
	UpdateOptionLabels(ctx context.Context, o *model.ProductOption) error
	DeleteOption(ctx context.Context, id string) error
	IsSKUTaken(ctx context.Context, sku string, excludeOptionIDs []string) (bool, error)
	SetRecommendedPrice(ctx context.Context, optionID string, price decimal.NullDecimal) (*model.ProductOption, error)
}
