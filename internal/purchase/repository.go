package purchase

import (
	"context"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/purchase/dto"
)

type Repository interface {
	// Create inserts the purchase and its items.
	Create(ctx context.Context, p *model.Purchase) error
	FindByID(ctx context.Context, id string) (*model.Purchase, error)
	FindAll(ctx context.Context, filters *dto.PurchaseFilters) ([]model.Purchase, int, error)
}
