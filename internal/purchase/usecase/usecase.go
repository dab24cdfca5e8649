package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/auth"
	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/event"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	invdto "github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-margin-service/internal/purchase"
	"github.com/fekuna/omnipos-margin-service/internal/purchase/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type purchaseUseCase struct {
	repo      purchase.Repository
	inv       inventory.UseCase
	tx        postgres.TxManager
	cache     cache.Cache
	publisher event.Publisher
	defaults  purchase.Defaults
	logger    logger.ZapLogger
	now       func() time.Time
}

func NewPurchaseUseCase(
	repo purchase.Repository,
	inv inventory.UseCase,
	tx postgres.TxManager,
	c cache.Cache,
	pub event.Publisher,
	defaults purchase.Defaults,
	log logger.ZapLogger,
) purchase.UseCase {
	return &purchaseUseCase{
		repo:      repo,
		inv:       inv,
		tx:        tx,
		cache:     c,
		publisher: pub,
		defaults:  defaults,
		logger:    log,
		now:       time.Now,
	}
}

// draft is a validated purchase with its costs resolved but nothing persisted.
type draft struct {
	purchase *model.Purchase
	policy   costing.AllocationPolicy
	totals   costing.LandedCost
}

func (uc *purchaseUseCase) prepare(input *dto.CreatePurchaseInput) (*draft, error) {
	if len(input.Items) == 0 {
		return nil, apperror.Validation("at least one item is required")
	}
	for i, it := range input.Items {
		switch {
		case it.ProductID == "" || it.OptionID == "":
			return nil, apperror.Validation(fmt.Sprintf("item %d: product_id and option_id are required", i+1))
		case it.Quantity <= 0:
			return nil, apperror.Validation(fmt.Sprintf("item %d: quantity must be positive", i+1))
		case it.UnitForeignCost.IsNegative():
			return nil, apperror.Validation(fmt.Sprintf("item %d: unit_foreign_cost must not be negative", i+1))
		}
	}
	for _, c := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"shipping_cost", input.ShippingCost},
		{"customs_fee", input.CustomsFee},
		{"other_fee", input.OtherFee},
	} {
		if c.value.IsNegative() {
			return nil, apperror.Validation(c.name + " must not be negative")
		}
	}

	rate := uc.defaults.ExchangeRate
	if input.ExchangeRate.Valid {
		if !input.ExchangeRate.Decimal.IsPositive() {
			return nil, apperror.Validation("exchange_rate must be positive")
		}
		rate = input.ExchangeRate.Decimal
	}

	policy := uc.defaults.AllocationPolicy
	if input.AllocationPolicy != "" {
		var err error
		if policy, err = costing.ParseAllocationPolicy(input.AllocationPolicy); err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}

	date := uc.now().UTC().Truncate(24 * time.Hour)
	if input.PurchaseDate != "" {
		var err error
		if date, err = time.Parse(model.DateLayout, input.PurchaseDate); err != nil {
			return nil, apperror.Validation("purchase_date must be a date in yyyy-mm-dd form")
		}
	}

	p := &model.Purchase{
		ID:               uuid.New().String(),
		PurchaseDate:     date,
		ShippingCost:     input.ShippingCost,
		CustomsFee:       input.CustomsFee,
		OtherFee:         input.OtherFee,
		ExchangeRate:     rate,
		AllocationPolicy: string(policy),
		Notes:            strings.TrimSpace(input.Notes),
		CreatedAt:        uc.now(),
	}
	for i, it := range input.Items {
		p.Items = append(p.Items, model.PurchaseItem{
			ID:              uuid.New().String(),
			PurchaseID:      p.ID,
			LineNo:          i + 1,
			ProductID:       it.ProductID,
			OptionID:        it.OptionID,
			Quantity:        it.Quantity,
			UnitForeignCost: it.UnitForeignCost,
		})
	}

	conv := costing.NewConverter(rate)
	unitCosts := costing.UnitCosts(policy, conv, p.Lines(), p.AdditionalCosts())
	for i := range p.Items {
		p.Items[i].LandedUnitCost = unitCosts[i]
	}

	return &draft{
		purchase: p,
		policy:   policy,
		totals:   p.LandedCost(),
	}, nil
}

func (uc *purchaseUseCase) PreviewPurchase(ctx context.Context, input *dto.CreatePurchaseInput) (*dto.PurchasePreview, error) {
	dr, err := uc.prepare(input)
	if err != nil {
		return nil, err
	}
	p := dr.purchase

	shares := costing.AllocateByValue(costing.NewConverter(p.ExchangeRate), p.Lines(), p.AdditionalCosts())
	preview := &dto.PurchasePreview{
		ExchangeRate:     p.ExchangeRate,
		AllocationPolicy: dr.policy,
		Totals:           dr.totals,
		Lines:            make([]dto.PreviewLine, len(p.Items)),
	}
	for i, it := range p.Items {
		preview.Lines[i] = dto.PreviewLine{
			ProductID:       it.ProductID,
			OptionID:        it.OptionID,
			Quantity:        it.Quantity,
			UnitForeignCost: it.UnitForeignCost,
			LandedUnitCost:  it.LandedUnitCost,
			ValueShare:      shares[i],
		}
	}
	return preview, nil
}

func (uc *purchaseUseCase) CreatePurchase(ctx context.Context, input *dto.CreatePurchaseInput) (*dto.PurchaseResult, error) {
	dr, err := uc.prepare(input)
	if err != nil {
		return nil, err
	}
	p := dr.purchase
	p.CreatedBy = auth.CreatedBy(ctx)

	receipt := &invdto.ReceiveStockInput{PurchaseID: p.ID, UserID: p.CreatedBy}
	optionIDs := make([]string, len(p.Items))
	for i, it := range p.Items {
		optionIDs[i] = it.OptionID
		receipt.Lines = append(receipt.Lines, invdto.ReceiptLine{
			ProductID: it.ProductID,
			OptionID:  it.OptionID,
			Quantity:  it.Quantity,
			UnitCost:  it.LandedUnitCost,
		})
	}

	var changes []invdto.StockChange
	err = uc.inv.WithOptionLocks(ctx, optionIDs, func(ctx context.Context) error {
		return uc.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := uc.repo.Create(ctx, p); err != nil {
				return err
			}
			var err error
			changes, err = uc.inv.ReceiveStock(ctx, receipt)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Purchase recorded",
		zap.String("purchase_id", p.ID),
		zap.Int("items", len(p.Items)),
		zap.String("grand_total", dr.totals.GrandTotal.String()),
		zap.String("policy", string(dr.policy)),
	)

	if err := uc.cache.DeletePattern(ctx, cache.DashboardPattern); err != nil {
		uc.logger.Warn("cache invalidation failed", zap.Error(err))
	}
	event.Publish(ctx, uc.publisher, uc.logger, p.ID, event.New(event.TypePurchaseReceived, event.PurchaseReceived{
		PurchaseID:   p.ID,
		PurchaseDate: p.PurchaseDate.Format(model.DateLayout),
		GrandTotal:   dr.totals.GrandTotal,
		Changes:      stockEvents(changes),
	}))

	return &dto.PurchaseResult{Purchase: p, Totals: dr.totals, Changes: changes}, nil
}

func stockEvents(changes []invdto.StockChange) []event.StockChange {
	out := make([]event.StockChange, len(changes))
	for i, c := range changes {
		out[i] = event.StockChange{
			ProductID:   c.ProductID,
			OptionID:    c.OptionID,
			Quantity:    c.After.Stock - c.Before.Stock,
			StockAfter:  c.After.Stock,
			CostOfGoods: c.After.CostOfGoods,
			Status:      c.Status,
		}
	}
	return out
}

func (uc *purchaseUseCase) GetPurchase(ctx context.Context, id string) (*dto.PurchaseDetail, error) {
	p, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := dto.NewPurchaseDetail(*p)
	return &detail, nil
}

func (uc *purchaseUseCase) ListPurchases(ctx context.Context, filters *dto.PurchaseFilters) ([]dto.PurchaseDetail, int, error) {
	if filters.StartDate != nil && filters.EndDate != nil && filters.EndDate.Before(*filters.StartDate) {
		return nil, 0, apperror.Validation("to must not be before from")
	}

	purchases, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.PurchaseDetail, len(purchases))
	for i, p := range purchases {
		out[i] = dto.NewPurchaseDetail(p)
	}
	return out, count, nil
}
