package settings

import (
	"context"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/settings/dto"
)

type UseCase interface {
	GetSettings(ctx context.Context) (*model.AppSettings, error)
	UpdateSettings(ctx context.Context, input *dto.UpdateSettingsInput) (*model.AppSettings, error)
	// EnsureDefaults seeds the settings row. It is safe to call on every start.
	EnsureDefaults(ctx context.Context) error
	// SaleDefaults returns the values a new sale on channel is pre-filled with.
	SaleDefaults(ctx context.Context, channel model.Channel) (*dto.SaleDefaults, error)
}
