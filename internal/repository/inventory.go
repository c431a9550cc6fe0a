package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurumlabs/aurum/internal/domain/catalog"
	"github.com/aurumlabs/aurum/internal/domain/inventory"
)

const (
	adjustStockSQL = `UPDATE catalog_items SET stock = stock + $2 WHERE id = $1 RETURNING stock`

	appendInventoryEntrySQL = `INSERT INTO inventory_log (id, item_id, delta, action, reason, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listInventoryEntriesSQL = `SELECT id, item_id, delta, action, reason, actor_id, created_at
		FROM inventory_log WHERE item_id = $1 ORDER BY created_at DESC LIMIT $2`
)

var _ inventory.Repository = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Repository backed by PostgreSQL.
// Stock lives on the catalog row; the log is append-only.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository over the pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// AdjustStock applies a signed delta and returns the resulting count.
func (r *InventoryRepository) AdjustStock(ctx context.Context, itemID string, delta int) (int, error) {
	var stock int
	err := exec(ctx, r.pool).QueryRow(ctx, adjustStockSQL, itemID, delta).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &catalog.ItemNotFoundError{ItemID: itemID}
		}
		return 0, fmt.Errorf("adjusting stock for item %q: %w", itemID, err)
	}
	return stock, nil
}

// AppendEntry records one audit entry.
func (r *InventoryRepository) AppendEntry(ctx context.Context, e *inventory.Entry) error {
	_, err := exec(ctx, r.pool).Exec(ctx, appendInventoryEntrySQL,
		e.ID, e.ItemID, e.Delta, e.Action, e.Reason, e.ActorID,
	)
	if err != nil {
		return fmt.Errorf("appending inventory entry: %w", err)
	}
	return nil
}

// ListEntries returns the newest audit entries for an item.
func (r *InventoryRepository) ListEntries(ctx context.Context, itemID string, limit int) ([]inventory.Entry, error) {
	rows, err := exec(ctx, r.pool).Query(ctx, listInventoryEntriesSQL, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing inventory entries: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Entry, error) {
		var e inventory.Entry
		err := row.Scan(&e.ID, &e.ItemID, &e.Delta, &e.Action, &e.Reason, &e.ActorID, &e.CreatedAt)
		return e, err
	})
}
