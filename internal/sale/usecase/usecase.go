package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/auth"
	"github.com/fekuna/omnipos-margin-service/internal/event"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	invdto "github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-margin-service/internal/sale"
	"github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	"github.com/fekuna/omnipos-margin-service/internal/settings"
	settingsdto "github.com/fekuna/omnipos-margin-service/internal/settings/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

type saleUseCase struct {
	repo      sale.Repository
	inv       inventory.UseCase
	settings  settings.UseCase
	tx        postgres.TxManager
	cache     cache.Cache
	publisher event.Publisher
	logger    logger.ZapLogger
	now       func() time.Time
}

func NewSaleUseCase(
	repo sale.Repository,
	inv inventory.UseCase,
	settingsUC settings.UseCase,
	tx postgres.TxManager,
	c cache.Cache,
	pub event.Publisher,
	log logger.ZapLogger,
) sale.UseCase {
	return &saleUseCase{
		repo:      repo,
		inv:       inv,
		settings:  settingsUC,
		tx:        tx,
		cache:     c,
		publisher: pub,
		logger:    log,
		now:       time.Now,
	}
}

func (uc *saleUseCase) SaleDefaults(ctx context.Context, channel model.Channel) (*settingsdto.SaleDefaults, error) {
	return uc.settings.SaleDefaults(ctx, channel)
}

func (uc *saleUseCase) CreateSale(ctx context.Context, input *dto.CreateSaleInput) (*dto.SaleResult, error) {
	s, err := uc.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	if s.ExternalRef != nil {
		_, err := uc.repo.FindByExternalRef(ctx, *s.ExternalRef)
		if err == nil {
			return nil, sale.ErrDuplicate
		}
		if !errors.Is(err, sale.ErrNotFound) {
			return nil, err
		}
	}

	var change *invdto.StockChange
	err = uc.inv.WithOptionLocks(ctx, []string{s.OptionID}, func(ctx context.Context) error {
		return uc.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			change, err = uc.inv.ReleaseStock(ctx, &invdto.ReleaseStockInput{
				SaleID:    s.ID,
				ProductID: s.ProductID,
				OptionID:  s.OptionID,
				Quantity:  s.Quantity,
				UserID:    s.CreatedBy,
			})
			if err != nil {
				return err
			}
			s.CostOfGoodsAtSale = change.Before.CostOfGoods
			return uc.repo.Create(ctx, s)
		})
	})
	if err != nil {
		return nil, err
	}

	profit := s.Profit()
	uc.logger.Info("Sale recorded",
		zap.String("sale_id", s.ID),
		zap.String("option_id", s.OptionID),
		zap.Int("quantity", s.Quantity),
		zap.String("profit", profit.Profit.String()),
	)

	if err := uc.cache.DeletePattern(ctx, cache.DashboardPattern); err != nil {
		uc.logger.Warn("cache invalidation failed", zap.Error(err))
	}
	event.Publish(ctx, uc.publisher, uc.logger, s.ID, event.New(event.TypeSaleRecorded, event.SaleRecorded{
		SaleID:   s.ID,
		SaleDate: s.SaleDate.Format(model.DateLayout),
		Channel:  string(s.Channel),
		Revenue:  profit.Revenue,
		Profit:   profit.Profit,
		Oversold: change.Oversold,
		Change: event.StockChange{
			ProductID:   change.ProductID,
			OptionID:    change.OptionID,
			Quantity:    -s.Quantity,
			StockAfter:  change.After.Stock,
			CostOfGoods: change.After.CostOfGoods,
			Status:      change.Status,
		},
	}))

	return &dto.SaleResult{
		Sale:       s,
		Profit:     profit,
		Oversold:   change.Oversold,
		StockAfter: change.After.Stock,
		Status:     change.Status,
	}, nil
}

// prepare validates input and resolves the channel and settings defaults.
func (uc *saleUseCase) prepare(ctx context.Context, input *dto.CreateSaleInput) (*model.Sale, error) {
	switch {
	case input.ProductID == "" || input.OptionID == "":
		return nil, apperror.Validation("product_id and option_id are required")
	case input.Quantity <= 0:
		return nil, apperror.Validation("quantity must be positive")
	case input.UnitPrice.IsNegative():
		return nil, apperror.Validation("unit_price must not be negative")
	}

	channel, err := model.ParseChannel(input.Channel)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	date := uc.now().UTC().Truncate(24 * time.Hour)
	if input.SaleDate != "" {
		if date, err = time.Parse(model.DateLayout, input.SaleDate); err != nil {
			return nil, apperror.Validation("sale_date must be a date in yyyy-mm-dd form")
		}
	}

	defaults, err := uc.settings.SaleDefaults(ctx, channel)
	if err != nil {
		return nil, err
	}

	fee := pick(input.FeePercent, defaults.FeePercent)
	if fee.IsNegative() || fee.GreaterThanOrEqual(hundred) {
		return nil, apperror.Validation("fee_percent must be in [0, 100)")
	}
	packaging := pick(input.PackagingCost, defaults.PackagingCost)
	shipping := pick(input.ShippingCost, defaults.ShippingCost)
	if packaging.IsNegative() || shipping.IsNegative() {
		return nil, apperror.Validation("packaging_cost and shipping_cost must not be negative")
	}

	s := &model.Sale{
		ID:            uuid.New().String(),
		SaleDate:      date,
		ProductID:     input.ProductID,
		OptionID:      input.OptionID,
		Quantity:      input.Quantity,
		UnitPrice:     input.UnitPrice,
		Channel:       channel,
		FeePercent:    fee,
		PackagingCost: packaging,
		ShippingCost:  shipping,
		CreatedBy:     auth.CreatedBy(ctx),
		CreatedAt:     uc.now(),
	}
	if input.ExternalRef != "" {
		ref := input.ExternalRef
		s.ExternalRef = &ref
	}
	return s, nil
}

func pick(v decimal.NullDecimal, fallback decimal.Decimal) decimal.Decimal {
	if v.Valid {
		return v.Decimal
	}
	return fallback
}

func (uc *saleUseCase) GetSale(ctx context.Context, id string) (*dto.SaleDetail, error) {
	s, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := dto.NewSaleDetail(*s)
	return &detail, nil
}

func (uc *saleUseCase) ListSales(ctx context.Context, filters *dto.SaleFilters) ([]dto.SaleDetail, int, error) {
	if filters.StartDate != nil && filters.EndDate != nil && filters.EndDate.Before(*filters.StartDate) {
		return nil, 0, apperror.Validation("to must not be before from")
	}
	if filters.Channel != "" {
		if _, err := model.ParseChannel(filters.Channel); err != nil {
			return nil, 0, apperror.Validation(err.Error())
		}
	}

	sales, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	out := make([]dto.SaleDetail, len(sales))
	for i, s := range sales {
		out[i] = dto.NewSaleDetail(s)
	}
	return out, count, nil
}
