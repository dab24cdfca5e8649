package sale

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	settingsdto "github.com/fekuna/omnipos-margin-service/internal/settings/dto"
)

var (
	ErrNotFound = errors.New("sale not found")
	// ErrDuplicate is returned when a sale with the same external reference exists.
	ErrDuplicate = errors.New("sale already recorded")
)

type UseCase interface {
	// CreateSale records the sale, releases its units from stock and snapshots the
	// option's cost of goods at that instant.
	CreateSale(ctx context.Context, input *dto.CreateSaleInput) (*dto.SaleResult, error)
	GetSale(ctx context.Context, id string) (*dto.SaleDetail, error)
	ListSales(ctx context.Context, filters *dto.SaleFilters) ([]dto.SaleDetail, int, error)
	SaleDefaults(ctx context.Context, channel model.Channel) (*settingsdto.SaleDefaults, error)
}
