package purchase

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/purchase/dto"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("purchase not found")

// Defaults are applied to purchases that do not carry their own rate or policy.
type Defaults struct {
	ExchangeRate     decimal.Decimal
	AllocationPolicy costing.AllocationPolicy
}

type UseCase interface {
	// PreviewPurchase computes the landed cost of a purchase without recording it.
	PreviewPurchase(ctx context.Context, input *dto.CreatePurchaseInput) (*dto.PurchasePreview, error)
	// CreatePurchase records the purchase and receives its items into stock atomically.
	CreatePurchase(ctx context.Context, input *dto.CreatePurchaseInput) (*dto.PurchaseResult, error)
	GetPurchase(ctx context.Context, id string) (*dto.PurchaseDetail, error)
	ListPurchases(ctx context.Context, filters *dto.PurchaseFilters) ([]dto.PurchaseDetail, int, error)
}
