package inventory

import (
	"context"
	"time"
)

// Common action tags for ledger entries.
const (
	ActionSale          = "sale"
	ActionRestockCancel = "restock on cancel"
	ActionAdminAdjust   = "admin adjustment"
	ActionInitialStock  = "initial stock"
)

// Entry is one append-only audit record of a stock movement. The sum of
// Delta values for an item must reconcile with its current stock count.
type Entry struct {
	ID        string
	ItemID    string
	Delta     int
	Action    string
	Reason    string
	ActorID   string
	CreatedAt time.Time
}

// Repository defines persistence for stock counts and the audit trail.
type Repository interface {
	// AdjustStock applies a signed delta to an item's stock and returns the
	// resulting count.
	AdjustStock(ctx context.Context, itemID string, delta int) (int, error)
	AppendEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, itemID string, limit int) ([]Entry, error)
}
