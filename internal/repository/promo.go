package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurumlabs/aurum/internal/domain/promo"
)

const (
	findPromoByCodeSQL = `SELECT code, kind, value, max_uses, uses, active
		FROM promo_codes WHERE lower(code) = lower($1)`

	incrementPromoUsesSQL = `UPDATE promo_codes SET uses = uses + 1 WHERE lower(code) = lower($1)`

	upsertPromoSQL = `INSERT INTO promo_codes (code, kind, value, max_uses, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind, value = EXCLUDED.value,
			max_uses = EXCLUDED.max_uses, active = EXCLUDED.active`
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo rule case-insensitively. A missing code maps to
// promo.ErrInvalidPromo.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Rule, error) {
	var rule promo.Rule
	err := exec(ctx, r.pool).QueryRow(ctx, findPromoByCodeSQL, code).
		Scan(&rule.Code, &rule.Kind, &rule.Value, &rule.MaxUses, &rule.Uses, &rule.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrInvalidPromo
		}
		return nil, fmt.Errorf("finding promo %q: %w", code, err)
	}
	return &rule, nil
}

// Upsert inserts or replaces a promo rule, keeping its use count.
func (r *PromoRepository) Upsert(ctx context.Context, rule promo.Rule) error {
	_, err := exec(ctx, r.pool).Exec(ctx, upsertPromoSQL,
		rule.Code, rule.Kind, rule.Value, rule.MaxUses, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting promo %q: %w", rule.Code, err)
	}
	return nil
}

// IncrementUses consumes one use of the code.
func (r *PromoRepository) IncrementUses(ctx context.Context, code string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, incrementPromoUsesSQL, code); err != nil {
		return fmt.Errorf("incrementing promo uses for %q: %w", code, err)
	}
	return nil
}
