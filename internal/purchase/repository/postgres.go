package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-margin-service/internal/purchase"
	"github.com/fekuna/omnipos-margin-service/internal/purchase/dto"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, p *model.Purchase) error {
	db := postgres.Conn(ctx, r.DB)

	query := `
        INSERT INTO purchases (
            id, purchase_date, shipping_cost, customs_fee, other_fee,
            exchange_rate, allocation_policy, notes, created_by, created_at
        )
        VALUES (
            :id, :purchase_date, :shipping_cost, :customs_fee, :other_fee,
            :exchange_rate, :allocation_policy, :notes, :created_by, :created_at
        )
    `
	if _, err := db.NamedExecContext(ctx, query, p); err != nil {
		return err
	}

	itemQuery := `
        INSERT INTO purchase_items (
            id, purchase_id, line_no, product_id, option_id, quantity, unit_foreign_cost, landed_unit_cost
        )
        VALUES (
            :id, :purchase_id, :line_no, :product_id, :option_id, :quantity, :unit_foreign_cost, :landed_unit_cost
        )
    `
	for i := range p.Items {
		if _, err := db.NamedExecContext(ctx, itemQuery, &p.Items[i]); err != nil {
			return fmt.Errorf("insert purchase item %d: %w", p.Items[i].LineNo, err)
		}
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Purchase, error) {
	var p model.Purchase
	err := postgres.Conn(ctx, r.DB).GetContext(ctx, &p, `SELECT * FROM purchases WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, purchase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	purchases := []model.Purchase{p}
	if err := r.loadItems(ctx, purchases); err != nil {
		return nil, err
	}
	return &purchases[0], nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.PurchaseFilters) ([]model.Purchase, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.StartDate != nil {
		conditions = append(conditions, "purchase_date >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "purchase_date <= :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	db := postgres.Conn(ctx, r.DB)

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM purchases"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	var count int
	if err := db.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM purchases" + whereClause + " ORDER BY purchase_date DESC, created_at DESC, id"
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (f.Page-1)*f.PageSize)
	}
	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}

	var purchases []model.Purchase
	if err := db.SelectContext(ctx, &purchases, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	if err := r.loadItems(ctx, purchases); err != nil {
		return nil, 0, err
	}
	return purchases, count, nil
}

func (r *PGRepository) loadItems(ctx context.Context, purchases []model.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	ids := make([]string, len(purchases))
	index := make(map[string]int, len(purchases))
	for i := range purchases {
		ids[i] = purchases[i].ID
		index[purchases[i].ID] = i
		purchases[i].Items = []model.PurchaseItem{}
	}

	query, args, err := sqlx.In(
		`SELECT * FROM purchase_items WHERE purchase_id IN (?) ORDER BY purchase_id, line_no`, ids)
	if err != nil {
		return err
	}
	var items []model.PurchaseItem
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &items, r.DB.Rebind(query), args...); err != nil {
		return err
	}

	for _, it := range items {
		i := index[it.PurchaseID]
		purchases[i].Items = append(purchases[i].Items, it)
	}
	return nil
}
