package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	"github.com/fekuna/omnipos-margin-service/internal/inventory/dto"
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

const optionRowSelect = `
        SELECT o.id, o.product_id, o.name, o.sku, o.stock, o.cost_of_goods,
               o.recommended_price, o.created_at, o.updated_at, p.name AS product_name
        FROM product_options o
        JOIN products p ON p.id = o.product_id`

func (r *PGRepository) GetOption(ctx context.Context, optionID string) (*dto.OptionRow, error) {
	var row dto.OptionRow
	err := postgres.Conn(ctx, r.DB).GetContext(ctx, &row, optionRowSelect+` WHERE o.id = $1`, optionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrOptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *PGRepository) GetOptionForUpdate(ctx context.Context, optionID string) (*model.ProductOption, error) {
	var opt model.ProductOption
	err := postgres.Conn(ctx, r.DB).GetContext(ctx, &opt,
		`SELECT * FROM product_options WHERE id = $1 FOR UPDATE`, optionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrOptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &opt, nil
}

func (r *PGRepository) UpdateOptionState(ctx context.Context, optionID string, state costing.OptionState) error {
	res, err := postgres.Conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE product_options SET stock = $1, cost_of_goods = $2, updated_at = $3 WHERE id = $4`,
		state.Stock, state.CostOfGoods, time.Now(), optionID)
	if err != nil {
		return fmt.Errorf("failed to update option state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return inventory.ErrOptionNotFound
	}
	return nil
}

func (r *PGRepository) ListByMaxStock(ctx context.Context, maxStock, page, pageSize int) ([]dto.OptionRow, int, error) {
	db := postgres.Conn(ctx, r.DB)

	var count int
	if err := db.GetContext(ctx, &count, `SELECT count(*) FROM product_options WHERE stock <= $1`, maxStock); err != nil {
		return nil, 0, err
	}

	query := optionRowSelect + ` WHERE o.stock <= $1 ORDER BY o.stock ASC, p.name ASC, o.name ASC`
	if pageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	}

	var rows []dto.OptionRow
	err := db.SelectContext(ctx, &rows, query, maxStock)
	return rows, count, err
}

func (r *PGRepository) LogMovement(ctx context.Context, m *model.OptionMovement) error {
	query := `
        INSERT INTO option_movements (
            id, product_id, option_id, movement_type, quantity_change,
            stock_before, stock_after, cost_before, cost_after, unit_cost,
            reference_type, reference_id, created_by, created_at
        )
        VALUES (
            :id, :product_id, :option_id, :movement_type, :quantity_change,
            :stock_before, :stock_after, :cost_before, :cost_after, :unit_cost,
            :reference_type, :reference_id, :created_by, :created_at
        )
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.OptionMovement, int, error) {
	var items []model.OptionMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.OptionID != "" {
		conditions = append(conditions, "option_id = :option_id")
		args["option_id"] = f.OptionID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at < :end_date")
		args["end_date"] = f.EndDate.AddDate(0, 0, 1)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	db := postgres.Conn(ctx, r.DB)

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM option_movements"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := db.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM option_movements" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	query, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	err = db.SelectContext(ctx, &items, r.DB.Rebind(query), listArgs...)
	return items, count, err
}
