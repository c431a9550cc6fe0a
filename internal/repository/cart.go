package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurumlabs/aurum/internal/domain/cart"
)

const (
	getCartByCustomerSQL = `SELECT id, customer_id, promo_code, reminded, updated_at
		FROM carts WHERE customer_id = $1`

	createCartSQL = `INSERT INTO carts (id, customer_id) VALUES ($1, $2)`

	getCartLinesSQL = `SELECT item_id, quantity FROM cart_lines WHERE cart_id = $1 ORDER BY item_id`

	upsertCartLineSQL = `INSERT INTO cart_lines (cart_id, item_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, item_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	addCartQuantitySQL = `INSERT INTO cart_lines (cart_id, item_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, item_id) DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity`

	removeCartLineSQL = `DELETE FROM cart_lines WHERE cart_id = $1 AND item_id = $2`

	setPromoCodeSQL = `UPDATE carts SET promo_code = $2, updated_at = now() WHERE id = $1`

	clearCartSQL = `DELETE FROM cart_lines WHERE cart_id = $1`

	// touchCartSQL restarts the idle clock and re-arms the reminder after
	// any line change.
	touchCartSQL = `UPDATE carts SET updated_at = now(), reminded = FALSE WHERE id = $1`

	listIdleCartsSQL = `SELECT c.id, c.customer_id, c.promo_code, c.reminded, c.updated_at
		FROM carts c
		WHERE c.updated_at < $1 AND NOT c.reminded
			AND EXISTS (SELECT 1 FROM cart_lines l WHERE l.cart_id = c.id)
		ORDER BY c.updated_at LIMIT $2`

	claimReminderSQL = `UPDATE carts SET reminded = TRUE WHERE id = $1 AND NOT reminded`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByCustomer returns the customer's cart with its lines, or nil when the
// customer has none yet.
func (r *CartRepository) GetByCustomer(ctx context.Context, customerID string) (*cart.Cart, error) {
	var c cart.Cart
	err := exec(ctx, r.pool).QueryRow(ctx, getCartByCustomerSQL, customerID).
		Scan(&c.ID, &c.CustomerID, &c.PromoCode, &c.Reminded, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cart for customer %q: %w", customerID, err)
	}

	rows, err := exec(ctx, r.pool).Query(ctx, getCartLinesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("getting cart lines: %w", err)
	}
	c.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ItemID, &l.Quantity)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning cart lines: %w", err)
	}
	return &c, nil
}

// Create persists a new empty cart.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	_, err := exec(ctx, r.pool).Exec(ctx, createCartSQL, c.ID, c.CustomerID)
	if err != nil {
		return fmt.Errorf("creating cart for customer %q: %w", c.CustomerID, err)
	}
	return nil
}

// UpsertLine sets a line's quantity, inserting the line if absent.
func (r *CartRepository) UpsertLine(ctx context.Context, cartID, itemID string, quantity int) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, upsertCartLineSQL, cartID, itemID, quantity); err != nil {
		return fmt.Errorf("upserting cart line: %w", err)
	}
	return r.touch(ctx, cartID)
}

// AddQuantity increments a line's quantity, inserting the line if absent.
func (r *CartRepository) AddQuantity(ctx context.Context, cartID, itemID string, delta int) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, addCartQuantitySQL, cartID, itemID, delta); err != nil {
		return fmt.Errorf("adding cart quantity: %w", err)
	}
	return r.touch(ctx, cartID)
}

// RemoveLine deletes an item's line from the cart.
func (r *CartRepository) RemoveLine(ctx context.Context, cartID, itemID string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, removeCartLineSQL, cartID, itemID); err != nil {
		return fmt.Errorf("removing cart line: %w", err)
	}
	return r.touch(ctx, cartID)
}

// SetPromoCode attaches (or, with an empty code, detaches) a promo code.
func (r *CartRepository) SetPromoCode(ctx context.Context, cartID, code string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, setPromoCodeSQL, cartID, code); err != nil {
		return fmt.Errorf("setting promo code: %w", err)
	}
	return nil
}

// Clear removes all lines and the promo code, keeping the cart row.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	if err := r.SetPromoCode(ctx, cartID, ""); err != nil {
		return err
	}
	return r.touch(ctx, cartID)
}

// ListIdle returns non-empty carts untouched since the cutoff that have not
// been reminded yet.
func (r *CartRepository) ListIdle(ctx context.Context, cutoff time.Time, limit int) ([]cart.Cart, error) {
	rows, err := exec(ctx, r.pool).Query(ctx, listIdleCartsSQL, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing idle carts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Cart, error) {
		var c cart.Cart
		err := row.Scan(&c.ID, &c.CustomerID, &c.PromoCode, &c.Reminded, &c.UpdatedAt)
		return c, err
	})
}

// ClaimReminder flips the reminded flag and reports whether this caller won.
func (r *CartRepository) ClaimReminder(ctx context.Context, cartID string) (bool, error) {
	tag, err := exec(ctx, r.pool).Exec(ctx, claimReminderSQL, cartID)
	if err != nil {
		return false, fmt.Errorf("claiming cart reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CartRepository) touch(ctx context.Context, cartID string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touching cart %q: %w", cartID, err)
	}
	return nil
}

const listDiscountRulesSQL = `SELECT id, min_cart_value, percent, active
	FROM discount_rules WHERE active ORDER BY min_cart_value DESC`

var _ cart.RuleRepository = (*DiscountRuleRepository)(nil)

// DiscountRuleRepository implements cart.RuleRepository backed by PostgreSQL.
type DiscountRuleRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRuleRepository returns a DiscountRuleRepository over the pool.
func NewDiscountRuleRepository(pool *pgxpool.Pool) *DiscountRuleRepository {
	return &DiscountRuleRepository{pool: pool}
}

// ListActiveRules returns active threshold rules, highest threshold first.
func (r *DiscountRuleRepository) ListActiveRules(ctx context.Context) ([]cart.DiscountRule, error) {
	rows, err := exec(ctx, r.pool).Query(ctx, listDiscountRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discount rules: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.DiscountRule, error) {
		var dr cart.DiscountRule
		err := row.Scan(&dr.ID, &dr.MinCartValue, &dr.Percent, &dr.Active)
		return dr, err
	})
}

// Upsert inserts or replaces a discount rule.
func (r *DiscountRuleRepository) Upsert(ctx context.Context, rule cart.DiscountRule) error {
	_, err := exec(ctx, r.pool).Exec(ctx,
		`INSERT INTO discount_rules (id, min_cart_value, percent, active) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				min_cart_value = EXCLUDED.min_cart_value,
				percent = EXCLUDED.percent, active = EXCLUDED.active`,
		rule.ID, rule.MinCartValue, rule.Percent, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting discount rule %q: %w", rule.ID, err)
	}
	return nil
}
