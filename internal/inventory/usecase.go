package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-margin-service/internal/model"
)

var (
	ErrOptionNotFound = errors.New("product option not found")
	ErrBusy           = errors.New("option is being updated, please try again")
)

// Locker is a distributed mutex keyed by string. *cache.RedisClient satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type UseCase interface {
	// WithOptionLocks runs fn while holding the write lock of every listed option. Locks
	// already held by ctx are reused, so calls nest.
	WithOptionLocks(ctx context.Context, optionIDs []string, fn func(ctx context.Context) error) error

	// ReceiveStock folds purchased batches into the options' moving-average cost.
	ReceiveStock(ctx context.Context, input *dto.ReceiveStockInput) ([]dto.StockChange, error)
	// ReleaseStock removes sold units. The returned change carries the cost of goods at
	// the moment of the sale.
	ReleaseStock(ctx context.Context, input *dto.ReleaseStockInput) (*dto.StockChange, error)

	GetOption(ctx context.Context, optionID string) (*dto.OptionStock, error)
	ListLowStock(ctx context.Context, page, pageSize int) ([]dto.OptionStock, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.OptionMovement, int, error)
}
