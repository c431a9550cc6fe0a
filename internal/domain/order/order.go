package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/aurumlabs/aurum/internal/payment"
)

// Status is an order's lifecycle state.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusConfirmed       Status = "CONFIRMED"
	StatusProcessing      Status = "PROCESSING"
	StatusShipped         Status = "SHIPPED"
	StatusDelivered       Status = "DELIVERED"
	StatusCancelled       Status = "CANCELLED"
	StatusPaymentFailed   Status = "PAYMENT_FAILED"
	StatusReturnInitiated Status = "RETURN_INITIATED"
	StatusReturned        Status = "RETURNED"
	StatusExchangeRequest Status = "EXCHANGE_REQUESTED"
	StatusExchanged       Status = "EXCHANGED"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusConfirmed: true, StatusProcessing: true,
	StatusShipped: true, StatusDelivered: true, StatusCancelled: true,
	StatusPaymentFailed: true, StatusReturnInitiated: true,
	StatusReturned: true, StatusExchangeRequest: true, StatusExchanged: true,
}

// ParseStatus validates a status string from the API.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", errors.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// PaymentStatus tracks the money side of an order independently of its
// fulfilment status.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Sentinel errors for checkout and transitions.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrOrderCancelled = errors.New("order is already cancelled")
)

// OrderNotFoundError indicates a requested order does not exist.
type OrderNotFoundError struct {
	OrderID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

// Address is a shipping or billing address.
type Address struct {
	Name       string
	Phone      string
	Line1      string
	City       string
	State      string
	PostalCode string
}

// B2BDetails carries the optional business-purchase fields.
type B2BDetails struct {
	TaxID         string
	BusinessName  string
	PlaceOfSupply string
}

// Line is one order line, frozen at checkout: the unit price and display
// name are snapshots and never re-derived from the live catalog.
type Line struct {
	ItemID    string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Order is immutable once created except for status, payment linkage and
// cancellation metadata. Totals are frozen at checkout time; later rate or
// catalog changes never touch them.
type Order struct {
	ID            string
	CustomerID    string
	Email         string
	Status        Status
	PaymentMethod payment.Method
	PaymentStatus PaymentStatus
	// PaymentRef is the gateway session reference created at checkout and is
	// what callbacks resolve the order by; PaymentTxnID is the transaction id
	// the gateway reports once payment settles. They stay separate so a
	// replayed callback can still find the order.
	PaymentRef    string
	PaymentTxnID  string
	OriginalTotal decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	PromoCode     string
	Shipping      Address
	Billing       Address
	B2B           *B2BDetails
	ShipmentRef   string
	CreditNote    string
	CancelledAt   *time.Time
	CreatedAt     time.Time
	Lines         []Line
}

// Repository defines persistence operations for orders.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	GetByPaymentRef(ctx context.Context, ref string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	SetPaymentSession(ctx context.Context, id string, method payment.Method, ref string) error
	// SetPaymentOutcome records the settled payment status and transaction
	// id. The session reference set at checkout is left untouched.
	SetPaymentOutcome(ctx context.Context, id string, ps PaymentStatus, txnID string) error
	SetShipmentRef(ctx context.Context, id, ref string) error
	SetCancellation(ctx context.Context, id string, at time.Time, creditNote string) error
	// MarkTransition records that a side-effecting transition ran for
	// (id, status) and reports whether this call claimed it. A second call
	// for the same pair returns false: side effects fire at most once.
	MarkTransition(ctx context.Context, id string, status Status) (bool, error)
}

// Transactor runs a function inside a single storage transaction. Repository
// calls made with the inner context join that transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
