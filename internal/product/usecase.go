package product

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/search"
	"github.com/fekuna/omnipos-margin-service/internal/product/dto"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrOptionNotFound = errors.New("product option not found")
	ErrSKUExists      = errors.New("SKU already exists")
)

// Searcher is the subset of the search client the product usecase needs.
type Searcher interface {
	CreateIndex(ctx context.Context, index, mapping string) error
	Index(ctx context.Context, index, id string, doc any) error
	Delete(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, query map[string]interface{}) (*search.SearchResponse, error)
}

type UseCase interface {
	CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// SetRecommendedPrice stores a price accepted from the pricing solver. An invalid
	// price clears it.
	SetRecommendedPrice(ctx context.Context, input *dto.SetRecommendedPriceInput) (*model.ProductOption, error)
}
