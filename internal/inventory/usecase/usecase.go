package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	"github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The Redis lock is not extended and may expire under a slow transaction. The stock
// read-modify-write stays serialized by the row lock GetOptionForUpdate takes inside the
// transaction; the Redis lock only queues writers before they reach the database.
const (
	lockTTL      = 5 * time.Second
	lockAttempts = 3
	lockBackoff  = 100 * time.Millisecond

	referencePurchase = "purchase"
	referenceSale     = "sale"
)

type heldLocksKey struct{}

type inventoryUseCase struct {
	repo       inventory.Repository
	tx         postgres.TxManager
	locker     inventory.Locker
	thresholds costing.StockThresholds
	logger     logger.ZapLogger
}

func NewInventoryUseCase(repo inventory.Repository, tx postgres.TxManager, locker inventory.Locker, thresholds costing.StockThresholds, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:       repo,
		tx:         tx,
		locker:     locker,
		thresholds: thresholds,
		logger:     log,
	}
}

func (uc *inventoryUseCase) WithOptionLocks(ctx context.Context, optionIDs []string, fn func(ctx context.Context) error) error {
	held, _ := ctx.Value(heldLocksKey{}).(map[string]bool)

	// Always acquire in id order.
	ids := slices.Clone(optionIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var toLock []string
	for _, id := range ids {
		if !held[id] {
			toLock = append(toLock, id)
		}
	}
	if len(toLock) == 0 {
		return fn(ctx)
	}

	lockValue := uuid.New().String()
	var acquired []string
	defer func() {
		for _, id := range acquired {
			if err := uc.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey(id), lockValue); err != nil {
				uc.logger.Warn("failed to release option lock", zap.String("option_id", id), zap.Error(err))
			}
		}
	}()

	for _, id := range toLock {
		if err := uc.acquire(ctx, lockKey(id), lockValue); err != nil {
			return err
		}
		acquired = append(acquired, id)
	}

	next := make(map[string]bool, len(held)+len(acquired))
	for id := range held {
		next[id] = true
	}
	for _, id := range acquired {
		next[id] = true
	}
	return fn(context.WithValue(ctx, heldLocksKey{}, next))
}

func (uc *inventoryUseCase) acquire(ctx context.Context, key, value string) error {
	for i := 0; i < lockAttempts; i++ {
		ok, err := uc.locker.AcquireLock(ctx, key, value, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return inventory.ErrBusy
}

func lockKey(optionID string) string {
	return "lock:option:" + optionID
}

func (uc *inventoryUseCase) ReceiveStock(ctx context.Context, input *dto.ReceiveStockInput) ([]dto.StockChange, error) {
	ids := make([]string, len(input.Lines))
	for i, l := range input.Lines {
		ids[i] = l.OptionID
	}

	var changes []dto.StockChange
	err := uc.WithOptionLocks(ctx, ids, func(ctx context.Context) error {
		return uc.tx.WithinTx(ctx, func(ctx context.Context) error {
			changes = changes[:0]
			for _, line := range input.Lines {
				if line.Quantity <= 0 {
					continue
				}

				opt, err := uc.loadOption(ctx, line.ProductID, line.OptionID)
				if err != nil {
					return err
				}

				before := opt.State()
				after := costing.ApplyPurchase(before, line.Quantity, line.UnitCost)

				change, err := uc.apply(ctx, opt, before, after, model.MovementPurchase, line.Quantity, line.UnitCost, referencePurchase, input.PurchaseID, input.UserID)
				if err != nil {
					return err
				}
				changes = append(changes, *change)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Stock received",
		zap.String("purchase_id", input.PurchaseID),
		zap.Int("lines", len(changes)),
	)
	return changes, nil
}

func (uc *inventoryUseCase) ReleaseStock(ctx context.Context, input *dto.ReleaseStockInput) (*dto.StockChange, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("release quantity must be positive, got %d", input.Quantity)
	}

	var change *dto.StockChange
	err := uc.WithOptionLocks(ctx, []string{input.OptionID}, func(ctx context.Context) error {
		return uc.tx.WithinTx(ctx, func(ctx context.Context) error {
			opt, err := uc.loadOption(ctx, input.ProductID, input.OptionID)
			if err != nil {
				return err
			}

			before := opt.State()
			outcome := costing.ApplySale(before, input.Quantity)

			change, err = uc.apply(ctx, opt, before, outcome.State, model.MovementSale, -input.Quantity, before.CostOfGoods, referenceSale, input.SaleID, input.UserID)
			if err != nil {
				return err
			}
			change.Oversold = outcome.Oversold
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if change.Oversold {
		uc.logger.Warn("Option oversold",
			zap.String("option_id", input.OptionID),
			zap.Int("stock", change.After.Stock),
			zap.String("sale_id", input.SaleID),
		)
	}
	return change, nil
}

// loadOption row-locks the option and checks that it belongs to productID.
func (uc *inventoryUseCase) loadOption(ctx context.Context, productID, optionID string) (*model.ProductOption, error) {
	opt, err := uc.repo.GetOptionForUpdate(ctx, optionID)
	if err != nil {
		return nil, err
	}
	if productID != "" && opt.ProductID != productID {
		return nil, inventory.ErrOptionNotFound
	}
	return opt, nil
}

func (uc *inventoryUseCase) apply(
	ctx context.Context,
	opt *model.ProductOption,
	before, after costing.OptionState,
	movementType model.MovementType,
	quantityChange int,
	unitCost decimal.Decimal,
	refType, refID string,
	userID *string,
) (*dto.StockChange, error) {
	if err := uc.repo.UpdateOptionState(ctx, opt.ID, after); err != nil {
		return nil, err
	}

	movement := &model.OptionMovement{
		ID:             uuid.New().String(),
		ProductID:      opt.ProductID,
		OptionID:       opt.ID,
		MovementType:   movementType,
		QuantityChange: quantityChange,
		StockBefore:    before.Stock,
		StockAfter:     after.Stock,
		CostBefore:     before.CostOfGoods,
		CostAfter:      after.CostOfGoods,
		UnitCost:       unitCost,
		ReferenceType:  &refType,
		CreatedBy:      userID,
		CreatedAt:      time.Now(),
	}
	if refID != "" {
		movement.ReferenceID = &refID
	}
	if err := uc.repo.LogMovement(ctx, movement); err != nil {
		return nil, err
	}

	opt.Stock, opt.CostOfGoods = after.Stock, after.CostOfGoods
	return &dto.StockChange{
		ProductID: opt.ProductID,
		OptionID:  opt.ID,
		Before:    before,
		After:     after,
		Status:    costing.ClassifyStock(after.Stock, uc.thresholds),
	}, nil
}

func (uc *inventoryUseCase) GetOption(ctx context.Context, optionID string) (*dto.OptionStock, error) {
	row, err := uc.repo.GetOption(ctx, optionID)
	if err != nil {
		return nil, err
	}
	stock := dto.NewOptionStock(row, uc.thresholds)
	return &stock, nil
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, page, pageSize int) ([]dto.OptionStock, int, error) {
	rows, total, err := uc.repo.ListByMaxStock(ctx, uc.thresholds.Low, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.OptionStock, len(rows))
	for i := range rows {
		items[i] = dto.NewOptionStock(&rows[i], uc.thresholds)
	}
	return items, total, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.OptionMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}
