package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-margin-service/internal/sale"
	"github.com/fekuna/omnipos-margin-service/internal/sale/dto"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const uniqueViolation = "23505"

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, s *model.Sale) error {
	query := `
        INSERT INTO sales (
            id, sale_date, product_id, option_id, quantity, unit_price, channel, fee_percent,
            packaging_cost, shipping_cost, cost_of_goods_at_sale, external_ref, created_by, created_at
        )
        VALUES (
            :id, :sale_date, :product_id, :option_id, :quantity, :unit_price, :channel, :fee_percent,
            :packaging_cost, :shipping_cost, :cost_of_goods_at_sale, :external_ref, :created_by, :created_at
        )
    `
	_, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, s)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sale.ErrDuplicate
	}
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Sale, error) {
	return r.findOne(ctx, `SELECT * FROM sales WHERE id = $1`, id)
}

func (r *PGRepository) FindByExternalRef(ctx context.Context, ref string) (*model.Sale, error) {
	return r.findOne(ctx, `SELECT * FROM sales WHERE external_ref = $1`, ref)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg string) (*model.Sale, error) {
	var s model.Sale
	err := postgres.Conn(ctx, r.DB).GetContext(ctx, &s, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sale.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.SaleFilters) ([]model.Sale, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.StartDate != nil {
		conditions = append(conditions, "sale_date >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "sale_date <= :end_date")
		args["end_date"] = *f.EndDate
	}
	if f.Channel != "" {
		conditions = append(conditions, "channel = :channel")
		args["channel"] = f.Channel
	}
	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.OptionID != "" {
		conditions = append(conditions, "option_id = :option_id")
		args["option_id"] = f.OptionID
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	db := postgres.Conn(ctx, r.DB)

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM sales"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	var count int
	if err := db.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM sales" + whereClause + " ORDER BY sale_date DESC, created_at DESC, id"
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (f.Page-1)*f.PageSize)
	}
	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}

	var sales []model.Sale
	if err := db.SelectContext(ctx, &sales, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	return sales, count, nil
}
