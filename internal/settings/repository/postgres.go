package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Get(ctx context.Context) (*model.AppSettings, error) {
	var s model.AppSettings
	err := postgres.Conn(ctx, r.DB).GetContext(ctx, &s, `
        SELECT default_packaging_cost, default_shipping_cost, updated_at
        FROM app_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.AppSettings{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGRepository) Save(ctx context.Context, s *model.AppSettings) error {
	query := `
        INSERT INTO app_settings (id, default_packaging_cost, default_shipping_cost, updated_at)
        VALUES (1, :default_packaging_cost, :default_shipping_cost, :updated_at)
        ON CONFLICT (id) DO UPDATE
        SET default_packaging_cost = EXCLUDED.default_packaging_cost,
            default_shipping_cost = EXCLUDED.default_shipping_cost,
            updated_at = EXCLUDED.updated_at
    `
	_, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, s)
	return err
}

func (r *PGRepository) Seed(ctx context.Context, s *model.AppSettings) error {
	query := `
        INSERT INTO app_settings (id, default_packaging_cost, default_shipping_cost, updated_at)
        VALUES (1, :default_packaging_cost, :default_shipping_cost, :updated_at)
        ON CONFLICT (id) DO NOTHING
    `
	_, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, s)
	return err
}
