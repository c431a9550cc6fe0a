package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurumlabs/aurum/internal/domain/catalog"
)

const (
	getItemSQL = `SELECT id, name, category, purity, net_weight, carat_weight, clarity, stock, active, created_at
		FROM catalog_items WHERE id = $1`

	getItemsSQL = `SELECT id, name, category, purity, net_weight, carat_weight, clarity, stock, active, created_at
		FROM catalog_items WHERE id = ANY($1)`

	listItemsSQL = `SELECT id, name, category, purity, net_weight, carat_weight, clarity, stock, active, created_at
		FROM catalog_items WHERE active ORDER BY id`

	upsertItemSQL = `INSERT INTO catalog_items (id, name, category, purity, net_weight, carat_weight, clarity, stock, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, purity = EXCLUDED.purity,
			net_weight = EXCLUDED.net_weight, carat_weight = EXCLUDED.carat_weight,
			clarity = EXCLUDED.clarity, stock = EXCLUDED.stock, active = EXCLUDED.active`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetItem returns a single catalog item by its identifier.
func (r *CatalogRepository) GetItem(ctx context.Context, id string) (*catalog.Item, error) {
	rows, err := exec(ctx, r.pool).Query(ctx, getItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &catalog.ItemNotFoundError{ItemID: id}
		}
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}
	return &it, nil
}

// GetItems returns items matching any of the given IDs.
func (r *CatalogRepository) GetItems(ctx context.Context, ids []string) ([]catalog.Item, error) {
	rows, err := exec(ctx, r.pool).Query(ctx, getItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// List returns all active catalog items ordered by ID.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := exec(ctx, r.pool).Query(ctx, listItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// Upsert inserts or fully replaces a catalog item.
func (r *CatalogRepository) Upsert(ctx context.Context, it catalog.Item) error {
	_, err := exec(ctx, r.pool).Exec(ctx, upsertItemSQL,
		it.ID, it.Name, it.Category, it.Purity,
		it.NetWeight, it.CaratWeight, it.Clarity, it.Stock, it.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting item %q: %w", it.ID, err)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(
		&it.ID, &it.Name, &it.Category, &it.Purity,
		&it.NetWeight, &it.CaratWeight, &it.Clarity,
		&it.Stock, &it.Active, &it.CreatedAt,
	)
	return it, err
}
