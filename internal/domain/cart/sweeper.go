package cart

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aurumlabs/aurum/internal/notify"
)

// Sweeper periodically scans for idle carts and sends a recovery reminder at
// most once per cart. The reminded flag is claimed with a conditional update
// before the notification goes out, so overlapping sweep runs cannot
// double-notify.
type Sweeper struct {
	carts     Repository
	notifier  notify.Notifier
	lg        *zap.Logger
	interval  time.Duration
	idleAfter time.Duration
	batchSize int
}

// NewSweeper creates a Sweeper. interval controls how often the scan runs;
// idleAfter is the minimum cart age before a reminder is due.
func NewSweeper(carts Repository, notifier notify.Notifier, lg *zap.Logger, interval, idleAfter time.Duration) *Sweeper {
	return &Sweeper{
		carts:     carts,
		notifier:  notifier,
		lg:        lg,
		interval:  interval,
		idleAfter: idleAfter,
		batchSize: 100,
	}
}

// Run executes the sweep loop until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.lg.Error("cart sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.idleAfter)
	idle, err := s.carts.ListIdle(ctx, cutoff, s.batchSize)
	if err != nil {
		return err
	}

	for _, c := range idle {
		claimed, err := s.carts.ClaimReminder(ctx, c.ID)
		if err != nil {
			s.lg.Error("claim cart reminder", zap.String("cart_id", c.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		if err := s.notifier.CartReminder(ctx, c.CustomerID, c.ID); err != nil {
			// The claim stands even when delivery fails; a reminder is
			// best-effort and must not repeat.
			s.lg.Warn("cart reminder delivery failed",
				zap.String("cart_id", c.ID), zap.Error(err))
		}
	}
	return nil
}
