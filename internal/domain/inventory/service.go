package inventory

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aurumlabs/aurum/internal/notify"
)

// LowStockThreshold is the stock count at or below which a low-stock alert
// fires.
const LowStockThreshold = 3

// Service applies stock movements with an audit trail and raises low-stock
// alerts.
type Service struct {
	repo     Repository
	notifier notify.Notifier
	lg       *zap.Logger
}

// NewService creates an inventory Service.
func NewService(repo Repository, notifier notify.Notifier, lg *zap.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, lg: lg}
}

// Adjust applies a signed stock delta and appends an audit entry. When the
// resulting stock is at or below the threshold, a low-stock alert fires in
// the background; alert failures are logged and never fail the adjustment.
func (s *Service) Adjust(ctx context.Context, itemID string, delta int, action, reason, actorID string) error {
	stock, err := s.repo.AdjustStock(ctx, itemID, delta)
	if err != nil {
		return errors.Wrapf(err, "adjust stock for item %s", itemID)
	}

	entry := &Entry{
		ID:      uuid.New().String(),
		ItemID:  itemID,
		Delta:   delta,
		Action:  action,
		Reason:  reason,
		ActorID: actorID,
	}
	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		return errors.Wrapf(err, "append inventory entry for item %s", itemID)
	}

	if stock <= LowStockThreshold {
		go s.alertLowStock(itemID, stock)
	}
	return nil
}

// RestockLine returns a cancelled order line's quantity to stock.
func (s *Service) RestockLine(ctx context.Context, itemID string, quantity int, orderID string) error {
	return s.Adjust(ctx, itemID, quantity, ActionRestockCancel,
		"order "+orderID+" cancelled", "")
}

// alertLowStock runs detached from the request; the triggering adjustment
// has already committed.
func (s *Service) alertLowStock(itemID string, stock int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.notifier.LowStock(ctx, itemID, stock); err != nil {
		s.lg.Warn("low stock alert failed",
			zap.String("item_id", itemID), zap.Int("stock", stock), zap.Error(err))
	}
}
