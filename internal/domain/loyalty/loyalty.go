package loyalty

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Action tags a ledger entry.
type Action string

const (
	ActionEarned   Action = "EARNED"
	ActionRedeemed Action = "REDEEMED"
	ActionReversed Action = "REVERSED"
)

// Tier is a customer's loyalty classification, derived from lifetime spend.
type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// Lifetime-spend thresholds, in the store's base currency units.
var (
	silverThreshold   = decimal.NewFromInt(100_000)
	goldThreshold     = decimal.NewFromInt(500_000)
	platinumThreshold = decimal.NewFromInt(1_500_000)
)

// TierFor classifies a lifetime spend against the fixed thresholds.
func TierFor(spend decimal.Decimal) Tier {
	switch {
	case spend.GreaterThanOrEqual(platinumThreshold):
		return TierPlatinum
	case spend.GreaterThanOrEqual(goldThreshold):
		return TierGold
	case spend.GreaterThanOrEqual(silverThreshold):
		return TierSilver
	default:
		return TierBronze
	}
}

// Entry is one append-only ledger record. The sum of Points deltas must
// reconcile with the customer's current balance.
type Entry struct {
	ID          string
	CustomerID  string
	Action      Action
	Points      int64
	OrderID     string
	Description string
	CreatedAt   time.Time
}

// Account is the loyalty-relevant subset of a customer.
type Account struct {
	CustomerID    string
	Points        int64
	LifetimeSpend decimal.Decimal
	Tier          Tier
}

// Repository defines persistence for loyalty accounts and the ledger.
type Repository interface {
	GetAccount(ctx context.Context, customerID string) (*Account, error)
	// ApplyDelta adjusts balance and lifetime spend atomically and returns
	// the post-adjustment account.
	ApplyDelta(ctx context.Context, customerID string, points int64, spend decimal.Decimal) (*Account, error)
	SetTier(ctx context.Context, customerID string, tier Tier) error
	AppendEntry(ctx context.Context, e *Entry) error
}
