package dashboard

import (
	"context"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	productdto "github.com/fekuna/omnipos-margin-service/internal/product/dto"
	purchasedto "github.com/fekuna/omnipos-margin-service/internal/purchase/dto"
	"github.com/fekuna/omnipos-margin-service/internal/report"
	saledto "github.com/fekuna/omnipos-margin-service/internal/sale/dto"
)

// The dashboard reads through the domain repositories. A zero page size lists everything.
type (
	ProductSource interface {
		FindAll(ctx context.Context, filters *productdto.ProductFilters) ([]model.Product, int, error)
	}
	SaleSource interface {
		FindAll(ctx context.Context, filters *saledto.SaleFilters) ([]model.Sale, int, error)
	}
	PurchaseSource interface {
		FindAll(ctx context.Context, filters *purchasedto.PurchaseFilters) ([]model.Purchase, int, error)
	}
)

type UseCase interface {
	GetDashboard(ctx context.Context) (*report.Dashboard, error)
}
