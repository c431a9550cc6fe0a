package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurumlabs/aurum/internal/domain/order"
	"github.com/aurumlabs/aurum/internal/payment"
)

const (
	orderColumns = `id, customer_id, email, status, payment_method, payment_status, payment_ref,
		payment_txn_id, original_total, discount, total, promo_code, shipping, billing, b2b, lines,
		shipment_ref, credit_note, cancelled_at, created_at`

	createOrderSQL = `INSERT INTO orders (id, customer_id, email, status, payment_method, payment_status,
			original_total, discount, total, promo_code, shipping, billing, b2b, lines, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	setPaymentSessionSQL = `UPDATE orders SET payment_method = $2, payment_ref = $3 WHERE id = $1`

	// payment_ref is the session reference callbacks resolve the order by,
	// so the settled transaction id lands in its own column. An empty id
	// keeps whatever a previous outcome recorded.
	setPaymentOutcomeSQL = `UPDATE orders SET payment_status = $2,
		payment_txn_id = COALESCE(NULLIF($3, ''), payment_txn_id) WHERE id = $1`

	setShipmentRefSQL = `UPDATE orders SET shipment_ref = $2 WHERE id = $1`

	setCancellationSQL = `UPDATE orders SET cancelled_at = $2, credit_note = $3 WHERE id = $1`

	markTransitionSQL = `INSERT INTO order_transitions (order_id, status) VALUES ($1, $2)
		ON CONFLICT (order_id, status) DO NOTHING`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Lines and
// addresses are frozen snapshots and stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := exec(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.OrderNotFoundError{OrderID: id}
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// GetByPaymentRef resolves a gateway reference back to the order it belongs to.
func (r *OrderRepository) GetByPaymentRef(ctx context.Context, ref string) (*order.Order, error) {
	row := exec(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_ref = $1`, ref)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.OrderNotFoundError{OrderID: ref}
		}
		return nil, fmt.Errorf("getting order by payment ref %q: %w", ref, err)
	}
	return o, nil
}

// Create persists a new order with its frozen snapshot.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	billing, err := json.Marshal(o.Billing)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}
	var b2b []byte
	if o.B2B != nil {
		if b2b, err = json.Marshal(o.B2B); err != nil {
			return fmt.Errorf("marshaling b2b details: %w", err)
		}
	}

	_, err = exec(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, o.Email, o.Status, o.PaymentMethod, o.PaymentStatus,
		o.OriginalTotal, o.Discount, o.Total, o.PromoCode,
		shipping, billing, b2b, lines, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// UpdateStatus persists a status transition.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, updateOrderStatusSQL, id, status); err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	return nil
}

// SetPaymentSession records the gateway session created at checkout.
func (r *OrderRepository) SetPaymentSession(ctx context.Context, id string, method payment.Method, ref string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, setPaymentSessionSQL, id, method, ref); err != nil {
		return fmt.Errorf("setting payment session for order %q: %w", id, err)
	}
	return nil
}

// SetPaymentOutcome records the verified payment result and its gateway
// transaction id, leaving the session reference untouched.
func (r *OrderRepository) SetPaymentOutcome(ctx context.Context, id string, ps order.PaymentStatus, txnID string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, setPaymentOutcomeSQL, id, ps, txnID); err != nil {
		return fmt.Errorf("setting payment outcome for order %q: %w", id, err)
	}
	return nil
}

// SetShipmentRef stores the provider-side shipment reference.
func (r *OrderRepository) SetShipmentRef(ctx context.Context, id, ref string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, setShipmentRefSQL, id, ref); err != nil {
		return fmt.Errorf("setting shipment ref for order %q: %w", id, err)
	}
	return nil
}

// SetCancellation stamps the cancellation time and credit note id.
func (r *OrderRepository) SetCancellation(ctx context.Context, id string, at time.Time, creditNote string) error {
	if _, err := exec(ctx, r.pool).Exec(ctx, setCancellationSQL, id, at, creditNote); err != nil {
		return fmt.Errorf("setting cancellation for order %q: %w", id, err)
	}
	return nil
}

// MarkTransition claims the (order, status) side-effect marker. The unique
// key makes the claim at-most-once across concurrent callers.
func (r *OrderRepository) MarkTransition(ctx context.Context, id string, status order.Status) (bool, error) {
	tag, err := exec(ctx, r.pool).Exec(ctx, markTransitionSQL, id, status)
	if err != nil {
		return false, fmt.Errorf("marking transition %s/%s: %w", id, status, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	var shipping, billing, b2b, lines []byte
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.Email, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&o.PaymentRef, &o.PaymentTxnID, &o.OriginalTotal, &o.Discount, &o.Total, &o.PromoCode,
		&shipping, &billing, &b2b, &lines,
		&o.ShipmentRef, &o.CreditNote, &o.CancelledAt, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if err := json.Unmarshal(billing, &o.Billing); err != nil {
		return nil, fmt.Errorf("unmarshaling billing address: %w", err)
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	if len(b2b) > 0 {
		o.B2B = &order.B2BDetails{}
		if err := json.Unmarshal(b2b, o.B2B); err != nil {
			return nil, fmt.Errorf("unmarshaling b2b details: %w", err)
		}
	}
	return &o, nil
}
