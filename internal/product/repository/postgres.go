package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-margin-service/internal/product"
	"github.com/fekuna/omnipos-margin-service/internal/product/dto"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, p *model.Product) error {
	query := `
        INSERT INTO products (id, name, image_url, base_foreign_cost, created_at, updated_at)
        VALUES (:id, :name, :image_url, :base_foreign_cost, :created_at, :updated_at)
    `
	if _, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, p); err != nil {
		return err
	}
	for i := range p.Options {
		if err := r.InsertOption(ctx, &p.Options[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGRepository) InsertOption(ctx context.Context, o *model.ProductOption) error {
	query := `
        INSERT INTO product_options (
            id, product_id, name, sku, stock, cost_of_goods, recommended_price, created_at, updated_at
        )
        VALUES (
            :id, :product_id, :name, :sku, :stock, :cost_of_goods, :recommended_price, :created_at, :updated_at
        )
    `
	_, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, o)
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := postgres.Conn(ctx, r.DB).GetContext(ctx, &p, `SELECT * FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	products := []model.Product{p}
	if err := r.loadOptions(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func (r *PGRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var found []model.Product
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &found, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}

	byID := make(map[string]model.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	products := make([]model.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
		}
	}

	if err := r.loadOptions(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ProductFilters) ([]model.Product, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.SearchQuery != "" {
		conditions = append(conditions, `(p.name ILIKE :search OR EXISTS (
            SELECT 1 FROM product_options o
            WHERE o.product_id = p.id AND (o.name ILIKE :search OR o.sku ILIKE :search)))`)
		args["search"] = "%" + f.SearchQuery + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	db := postgres.Conn(ctx, r.DB)

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM products p"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	var count int
	if err := db.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	// Whitelisted to keep user input out of ORDER BY.
	orderBy := "p.created_at DESC"
	if f.SortBy != "" {
		switch f.SortBy {
		case "name":
			orderBy = "p.name"
		default:
			orderBy = "p.created_at"
		}
		if strings.ToLower(f.SortOrder) == "asc" {
			orderBy += " ASC"
		} else {
			orderBy += " DESC"
		}
	}

	query := fmt.Sprintf("SELECT p.* FROM products p%s ORDER BY %s, p.id", whereClause, orderBy)
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	var products []model.Product
	if err := db.SelectContext(ctx, &products, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}

	if err := r.loadOptions(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, count, nil
}

// loadOptions fills Options on every product with a single query.
func (r *PGRepository) loadOptions(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		products[i].Options = []model.ProductOption{}
	}

	query, args, err := sqlx.In(
		`SELECT * FROM product_options WHERE product_id IN (?) ORDER BY created_at, name, id`, ids)
	if err != nil {
		return err
	}
	var options []model.ProductOption
	if err := postgres.Conn(ctx, r.DB).SelectContext(ctx, &options, r.DB.Rebind(query), args...); err != nil {
		return err
	}

	for _, o := range options {
		i := index[o.ProductID]
		products[i].Options = append(products[i].Options, o)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, p *model.Product) error {
	query := `
        UPDATE products
        SET name = :name,
            image_url = :image_url,
            base_foreign_cost = :base_foreign_cost,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, p)
	if err != nil {
		return err
	}
	return expectRow(res, product.ErrNotFound)
}

func (r *PGRepository) UpdateOptionLabels(ctx context.Context, o *model.ProductOption) error {
	query := `
        UPDATE product_options
        SET name = :name, sku = :sku, updated_at = :updated_at
        WHERE id = :id AND product_id = :product_id
    `
	res, err := postgres.Conn(ctx, r.DB).NamedExecContext(ctx, query, o)
	if err != nil {
		return err
	}
	return expectRow(res, product.ErrOptionNotFound)
}

func (r *PGRepository) DeleteOption(ctx context.Context, id string) error {
	_, err := postgres.Conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM product_options WHERE id = $1`, id)
	return err
}

// Delete removes the product. Options go with it through the foreign key; purchases and
// sales keep their references.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	res, err := postgres.Conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, product.ErrNotFound)
}

func (r *PGRepository) IsSKUTaken(ctx context.Context, sku string, excludeOptionIDs []string) (bool, error) {
	if sku == "" {
		return false, nil
	}
	query := `SELECT count(*) FROM product_options WHERE sku = ?`
	args := []interface{}{sku}
	if len(excludeOptionIDs) > 0 {
		var err error
		query, args, err = sqlx.In(query+` AND id NOT IN (?)`, sku, excludeOptionIDs)
		if err != nil {
			return false, err
		}
	}

	var count int
	if err := postgres.Conn(ctx, r.DB).GetContext(ctx, &count, r.DB.Rebind(query), args...); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PGRepository) SetRecommendedPrice(ctx context.Context, optionID string, price decimal.NullDecimal) (*model.ProductOption, error) {
	var o model.ProductOption
	err := postgres.Conn(ctx, r.DB).GetContext(ctx, &o, `
        UPDATE product_options
        SET recommended_price = $1, updated_at = $2
        WHERE id = $3
        RETURNING *`, price, time.Now(), optionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrOptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
