package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/dashboard"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	productdto "github.com/fekuna/omnipos-margin-service/internal/product/dto"
	purchasedto "github.com/fekuna/omnipos-margin-service/internal/purchase/dto"
	"github.com/fekuna/omnipos-margin-service/internal/report"
	saledto "github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// cacheKey falls under cache.DashboardPattern, which every writer deletes.
const cacheKey = "dashboard:summary"

type dashboardUseCase struct {
	products  dashboard.ProductSource
	sales     dashboard.SaleSource
	purchases dashboard.PurchaseSource
	cache     cache.Cache
	ttl       time.Duration
	opts      report.Options
	logger    logger.ZapLogger
}

func NewDashboardUseCase(
	products dashboard.ProductSource,
	sales dashboard.SaleSource,
	purchases dashboard.PurchaseSource,
	c cache.Cache,
	ttl time.Duration,
	opts report.Options,
	log logger.ZapLogger,
) dashboard.UseCase {
	return &dashboardUseCase{
		products:  products,
		sales:     sales,
		purchases: purchases,
		cache:     c,
		ttl:       ttl,
		opts:      opts,
		logger:    log,
	}
}

func (uc *dashboardUseCase) GetDashboard(ctx context.Context) (*report.Dashboard, error) {
	var cached report.Dashboard
	err := uc.cache.GetJSON(ctx, cacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		uc.logger.Warn("dashboard cache read failed", zap.Error(err))
	}

	var ds report.Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ds.Products, _, err = uc.products.FindAll(gctx, &productdto.ProductFilters{})
		return err
	})
	g.Go(func() error {
		var err error
		ds.Sales, _, err = uc.sales.FindAll(gctx, &saledto.SaleFilters{})
		return err
	})
	g.Go(func() error {
		var err error
		ds.Purchases, _, err = uc.purchases.FindAll(gctx, &purchasedto.PurchaseFilters{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start := time.Now()
	out := report.Aggregate(ds, uc.opts)
	uc.logger.Debug("dashboard aggregated",
		zap.Int("products", len(ds.Products)),
		zap.Int("sales", len(ds.Sales)),
		zap.Int("purchases", len(ds.Purchases)),
		zap.Duration("took", time.Since(start)),
	)

	if uc.ttl > 0 {
		if err := uc.cache.SetJSON(ctx, cacheKey, out, uc.ttl); err != nil {
			uc.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return &out, nil
}

