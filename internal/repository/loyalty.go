package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aurumlabs/aurum/internal/domain/loyalty"
)

const (
	getLoyaltyAccountSQL = `SELECT customer_id, points, lifetime_spend, tier
		FROM loyalty_accounts WHERE customer_id = $1`

	// The account row is created lazily on the first delta.
	applyLoyaltyDeltaSQL = `INSERT INTO loyalty_accounts (customer_id, points, lifetime_spend)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id) DO UPDATE SET
			points = loyalty_accounts.points + EXCLUDED.points,
			lifetime_spend = loyalty_accounts.lifetime_spend + EXCLUDED.lifetime_spend
		RETURNING customer_id, points, lifetime_spend, tier`

	setLoyaltyTierSQL = `UPDATE loyalty_accounts SET tier = $2 WHERE customer_id = $1`

	appendLoyaltyEntrySQL = `INSERT INTO loyalty_log (id, customer_id, action, points, order_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ loyalty.Repository = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Repository backed by PostgreSQL.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// GetAccount returns the customer's loyalty account. A customer who never
// earned anything gets a zero-balance BRONZE account.
func (r *LoyaltyRepository) GetAccount(ctx context.Context, customerID string) (*loyalty.Account, error) {
	acct, err := scanLoyaltyAccount(exec(ctx, r.pool).QueryRow(ctx, getLoyaltyAccountSQL, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &loyalty.Account{
				CustomerID:    customerID,
				LifetimeSpend: decimal.Zero,
				Tier:          loyalty.TierBronze,
			}, nil
		}
		return nil, fmt.Errorf("getting loyalty account %q: %w", customerID, err)
	}
	return acct, nil
}

// ApplyDelta adjusts the point balance and lifetime spend atomically and
// returns the post-adjustment account.
func (r *LoyaltyRepository) ApplyDelta(ctx context.Context, customerID string, points int64, spend decimal.Decimal) (*loyalty.Account, error) {
	acct, err := scanLoyaltyAccount(
		exec(ctx, r.pool).QueryRow(ctx, applyLoyaltyDeltaSQL, customerID, points, spend))
	if err != nil {
		return nil, fmt.Errorf("applying loyalty delta for %q: %w", customerID, err)
	}
	return acct, nil
}

// SetTier persists a tier reclassification.
func (r *LoyaltyRepository) SetTier(ctx context.Context, customerID string, tier loyalty.Tier) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, setLoyaltyTierSQL, customerID, tier); err != nil {
		return fmt.Errorf("setting loyalty tier for %q: %w", customerID, err)
	}
	return nil
}

// AppendEntry records one ledger entry.
func (r *LoyaltyRepository) AppendEntry(ctx context.Context, e *loyalty.Entry) error {
	_, err := exec(ctx, r.pool).Exec(ctx, appendLoyaltyEntrySQL,
		e.ID, e.CustomerID, e.Action, e.Points, e.OrderID, e.Description,
	)
	if err != nil {
		return fmt.Errorf("appending loyalty entry: %w", err)
	}
	return nil
}

func scanLoyaltyAccount(row pgx.Row) (*loyalty.Account, error) {
	var acct loyalty.Account
	err := row.Scan(&acct.CustomerID, &acct.Points, &acct.LifetimeSpend, &acct.Tier)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
