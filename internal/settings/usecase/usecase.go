package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/apperror"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/settings"
	"github.com/fekuna/omnipos-margin-service/internal/settings/dto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	cacheKey = "settings:app"
	cacheTTL = time.Hour
)

type settingsUseCase struct {
	repo     settings.Repository
	cache    cache.Cache
	fees     map[string]decimal.Decimal
	defaults model.AppSettings
	logger   logger.ZapLogger
}

// NewSettingsUseCase takes the configured channel fees and the values the settings row is
// seeded with.
func NewSettingsUseCase(repo settings.Repository, c cache.Cache, fees map[string]decimal.Decimal, defaults model.AppSettings, log logger.ZapLogger) settings.UseCase {
	return &settingsUseCase{
		repo:     repo,
		cache:    c,
		fees:     fees,
		defaults: defaults,
		logger:   log,
	}
}

func (uc *settingsUseCase) GetSettings(ctx context.Context) (*model.AppSettings, error) {
	var cached model.AppSettings
	err := uc.cache.GetJSON(ctx, cacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		uc.logger.Warn("settings cache read failed", zap.Error(err))
	}

	s, err := uc.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := uc.cache.SetJSON(ctx, cacheKey, s, cacheTTL); err != nil {
		uc.logger.Warn("settings cache write failed", zap.Error(err))
	}
	return s, nil
}

func (uc *settingsUseCase) UpdateSettings(ctx context.Context, input *dto.UpdateSettingsInput) (*model.AppSettings, error) {
	if input.DefaultPackagingCost.IsNegative() || input.DefaultShippingCost.IsNegative() {
		return nil, apperror.Validation("default costs must not be negative")
	}

	s := &model.AppSettings{
		DefaultPackagingCost: input.DefaultPackagingCost,
		DefaultShippingCost:  input.DefaultShippingCost,
		UpdatedAt:            time.Now(),
	}
	if err := uc.repo.Save(ctx, s); err != nil {
		return nil, err
	}
	if err := uc.cache.DeletePattern(ctx, cacheKey); err != nil {
		uc.logger.Warn("settings cache invalidation failed", zap.Error(err))
	}
	return s, nil
}

func (uc *settingsUseCase) EnsureDefaults(ctx context.Context) error {
	s := uc.defaults
	s.UpdatedAt = time.Now()
	return uc.repo.Seed(ctx, &s)
}

func (uc *settingsUseCase) SaleDefaults(ctx context.Context, channel model.Channel) (*dto.SaleDefaults, error) {
	if _, err := model.ParseChannel(string(channel)); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	s, err := uc.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SaleDefaults{
		Channel:       channel,
		FeePercent:    uc.fees[string(channel)],
		PackagingCost: s.DefaultPackagingCost,
		ShippingCost:  s.DefaultShippingCost,
	}, nil
}
