package settings

import (
	"context"

	"github.com/fekuna/omnipos-margin-service/internal/model"
)

type Repository interface {
	// Get returns the settings row, or zero defaults when it was never written.
	Get(ctx context.Context) (*model.AppSettings, error)
	Save(ctx context.Context, s *model.AppSettings) error
	// Seed writes s only when no settings row exists yet.
	Seed(ctx context.Context, s *model.AppSettings) error
}
