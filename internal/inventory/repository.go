package inventory

import (
	"context"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-margin-service/internal/model"
)

type Repository interface {
	// Option state
	GetOption(ctx context.Context, optionID string) (*dto.OptionRow, error)
	// GetOptionForUpdate row-locks the option until the surrounding transaction ends.
	GetOptionForUpdate(ctx context.Context, optionID string) (*model.ProductOption, error)
	UpdateOptionState(ctx context.Context, optionID string, state costing.OptionState) error
	ListByMaxStock(ctx context.Context, maxStock, page, pageSize int) ([]dto.OptionRow, int, error)

	// Movements / Audit
	LogMovement(ctx context.Context, movement *model.OptionMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.OptionMovement, int, error)
}
