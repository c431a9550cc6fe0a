package loyalty

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// PointsFor is the earn formula: one point per 100 currency units paid,
// rounded down. Reversals recompute the same quantity from the same amount.
func PointsFor(amount decimal.Decimal) int64 {
	return amount.Div(oneHundred).Floor().IntPart()
}

// Service maintains point balances, lifetime spend and tier classification.
type Service struct {
	repo Repository
}

// NewService creates a loyalty Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Earn credits points and lifetime spend for a paid order and recomputes the
// customer's tier.
func (s *Service) Earn(ctx context.Context, customerID, orderID string, amount decimal.Decimal) error {
	points := PointsFor(amount)

	acct, err := s.repo.ApplyDelta(ctx, customerID, points, amount)
	if err != nil {
		return errors.Wrap(err, "apply earn delta")
	}

	entry := &Entry{
		ID:          uuid.New().String(),
		CustomerID:  customerID,
		Action:      ActionEarned,
		Points:      points,
		OrderID:     orderID,
		Description: fmt.Sprintf("earned on order %s", orderID),
	}
	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		return errors.Wrap(err, "append earn entry")
	}

	return s.reclassify(ctx, acct)
}

// Reverse undoes a prior earn for a cancelled order, by the same formula,
// and recomputes the tier.
func (s *Service) Reverse(ctx context.Context, customerID, orderID string, amount decimal.Decimal) error {
	points := PointsFor(amount)

	acct, err := s.repo.ApplyDelta(ctx, customerID, -points, amount.Neg())
	if err != nil {
		return errors.Wrap(err, "apply reversal delta")
	}

	entry := &Entry{
		ID:          uuid.New().String(),
		CustomerID:  customerID,
		Action:      ActionReversed,
		Points:      -points,
		OrderID:     orderID,
		Description: fmt.Sprintf("reversed on cancellation of order %s", orderID),
	}
	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		return errors.Wrap(err, "append reversal entry")
	}

	return s.reclassify(ctx, acct)
}

// Adjust applies a manual admin point adjustment with a free-text reason.
// Positive deltas log as EARNED, negative as REDEEMED. Lifetime spend is
// untouched.
func (s *Service) Adjust(ctx context.Context, customerID string, points int64, reason string) error {
	action := ActionEarned
	if points < 0 {
		action = ActionRedeemed
	}

	if _, err := s.repo.ApplyDelta(ctx, customerID, points, decimal.Zero); err != nil {
		return errors.Wrap(err, "apply manual delta")
	}

	entry := &Entry{
		ID:          uuid.New().String(),
		CustomerID:  customerID,
		Action:      action,
		Points:      points,
		Description: reason,
	}
	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		return errors.Wrap(err, "append manual entry")
	}
	return nil
}

// reclassify persists the tier only when it actually changed.
func (s *Service) reclassify(ctx context.Context, acct *Account) error {
	next := TierFor(acct.LifetimeSpend)
	if next == acct.Tier {
		return nil
	}
	if err := s.repo.SetTier(ctx, acct.CustomerID, next); err != nil {
		return errors.Wrap(err, "set tier")
	}
	return nil
}
