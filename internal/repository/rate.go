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
	findRateSQL = `SELECT kind, key, per_unit, updated_at FROM rates WHERE kind = $1 AND key = $2`

	upsertRateSQL = `INSERT INTO rates (kind, key, per_unit, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (kind, key) DO UPDATE SET per_unit = EXCLUDED.per_unit, updated_at = now()`

	listChargeRulesSQL = `SELECT id, name, class, kind, target, amount, active
		FROM charge_rules WHERE active ORDER BY id`

	upsertChargeRuleSQL = `INSERT INTO charge_rules (id, name, class, kind, target, amount, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, class = EXCLUDED.class, kind = EXCLUDED.kind,
			target = EXCLUDED.target, amount = EXCLUDED.amount, active = EXCLUDED.active`

	listMakingTiersSQL = `SELECT id, min_weight, max_weight, kind, amount
		FROM making_tiers ORDER BY min_weight`

	insertMakingTierSQL = `INSERT INTO making_tiers (id, min_weight, max_weight, kind, amount)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ catalog.RateRepository = (*RateRepository)(nil)

// RateRepository implements catalog.RateRepository backed by PostgreSQL.
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository returns a RateRepository that uses the given pool.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// FindRate returns the rate for (kind, key), or nil when none is configured.
func (r *RateRepository) FindRate(ctx context.Context, kind catalog.RateKind, key string) (*catalog.Rate, error) {
	var rate catalog.Rate
	err := exec(ctx, r.pool).QueryRow(ctx, findRateSQL, kind, key).
		Scan(&rate.Kind, &rate.Key, &rate.PerUnit, &rate.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding rate %s/%s: %w", kind, key, err)
	}
	return &rate, nil
}

// UpsertRate inserts or replaces the rate for its (kind, key).
func (r *RateRepository) UpsertRate(ctx context.Context, rate catalog.Rate) error {
	_, err := exec(ctx, r.pool).Exec(ctx, upsertRateSQL, rate.Kind, rate.Key, rate.PerUnit)
	if err != nil {
		return fmt.Errorf("upserting rate %s/%s: %w", rate.Kind, rate.Key, err)
	}
	return nil
}

// ListActiveChargeRules returns all active charge rules.
func (r *RateRepository) ListActiveChargeRules(ctx context.Context) ([]catalog.ChargeRule, error) {
	rows, err := exec(ctx, r.pool).Query(ctx, listChargeRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing charge rules: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.ChargeRule, error) {
		var cr catalog.ChargeRule
		err := row.Scan(&cr.ID, &cr.Name, &cr.Class, &cr.Kind, &cr.Target, &cr.Amount, &cr.Active)
		return cr, err
	})
}

// UpsertChargeRule inserts or replaces a charge rule.
func (r *RateRepository) UpsertChargeRule(ctx context.Context, rule catalog.ChargeRule) error {
	_, err := exec(ctx, r.pool).Exec(ctx, upsertChargeRuleSQL,
		rule.ID, rule.Name, rule.Class, rule.Kind, rule.Target, rule.Amount, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting charge rule %q: %w", rule.ID, err)
	}
	return nil
}

// ListMakingTiers returns the making-charge brackets ordered by weight.
func (r *RateRepository) ListMakingTiers(ctx context.Context) ([]catalog.MakingTier, error) {
	rows, err := exec(ctx, r.pool).Query(ctx, listMakingTiersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing making tiers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.MakingTier, error) {
		var t catalog.MakingTier
		err := row.Scan(&t.ID, &t.MinWeight, &t.MaxWeight, &t.Kind, &t.Amount)
		return t, err
	})
}

// ReplaceMakingTiers swaps the whole tier table atomically.
func (r *RateRepository) ReplaceMakingTiers(ctx context.Context, tiers []catalog.MakingTier) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM making_tiers`); err != nil {
			return err
		}
		for _, t := range tiers {
			if _, err := tx.Exec(ctx, insertMakingTierSQL,
				t.ID, t.MinWeight, t.MaxWeight, t.Kind, t.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing making tiers: %w", err)
	}
	return nil
}
