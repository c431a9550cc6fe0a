package order

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aurumlabs/aurum/internal/domain/cart"
	"github.com/aurumlabs/aurum/internal/domain/inventory"
	"github.com/aurumlabs/aurum/internal/domain/loyalty"
	"github.com/aurumlabs/aurum/internal/notify"
	"github.com/aurumlabs/aurum/internal/payment"
	"github.com/aurumlabs/aurum/internal/shipment"
)

// ShipmentSync mirrors orders to the logistics provider.
type ShipmentSync interface {
	Push(ctx context.Context, o shipment.Order) (string, error)
	Cancel(ctx context.Context, remoteOrderID string) error
}

// CartProvider is the slice of the cart service checkout needs.
// *cart.Service satisfies it.
type CartProvider interface {
	Enrich(ctx context.Context, customerID string) (*cart.View, error)
	DetachInvalidPromo(ctx context.Context, cartID string) error
	Clear(ctx context.Context, cartID string) error
}

// PromoRedeemer counts a promo code redemption. Checkout consumes one use per
// order that carries a valid code; the validator reads the count back when it
// enforces MaxUses.
type PromoRedeemer interface {
	IncrementUses(ctx context.Context, code string) error
}

// CheckoutRequest is the input for converting a cart into an order.
type CheckoutRequest struct {
	CustomerID    string
	Email         string
	Shipping      Address
	Billing       *Address // nil defaults to Shipping
	PaymentMethod payment.Method
	B2B           *B2BDetails
}

// CheckoutResult is the created order plus any gateway session the client
// needs to complete payment.
type CheckoutResult struct {
	Order   *Order
	Session *payment.Session
}

// Service is the order lifecycle state machine: it converts carts into
// orders, routes payment to the right gateway adapter, and fans status
// transitions out to the loyalty and inventory ledgers and shipment sync.
type Service struct {
	carts     CartProvider
	orders    Repository
	gateways  map[payment.Method]payment.Gateway
	shipments ShipmentSync
	inventory *inventory.Service
	loyalty   *loyalty.Service
	promos    PromoRedeemer
	tx        Transactor
	notifier  notify.Notifier
	lg        *zap.Logger

	creditNotePrefix string
	now              func() time.Time
	creditNoteSeq    func() int
}

// NewService creates the order Service with its collaborators.
func NewService(
	carts CartProvider,
	orders Repository,
	gateways map[payment.Method]payment.Gateway,
	shipments ShipmentSync,
	inv *inventory.Service,
	loy *loyalty.Service,
	promos PromoRedeemer,
	tx Transactor,
	notifier notify.Notifier,
	lg *zap.Logger,
	creditNotePrefix string,
) *Service {
	return &Service{
		carts:            carts,
		orders:           orders,
		gateways:         gateways,
		shipments:        shipments,
		inventory:        inv,
		loyalty:          loy,
		promos:           promos,
		tx:               tx,
		notifier:         notifier,
		lg:               lg,
		creditNotePrefix: creditNotePrefix,
		now:              time.Now,
		creditNoteSeq:    func() int { return rand.IntN(10000) },
	}
}

// Checkout converts the customer's cart into an order.
//
// The totals and per-line prices in the new order are a point-in-time
// snapshot of the enriched cart. The order row, the stock deduction and the
// promo use count commit in one transaction, so a failure mid-checkout
// leaves no partial order behind and the cart stays intact for a retry. The
// cart is cleared only after the order exists, so a crash in between can
// duplicate nothing worse than a stale cart. Gateway and shipment failures
// are logged and do not abort the checkout; the order stays PENDING and
// payable.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	view, err := s.carts.Enrich(ctx, req.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "enrich cart")
	}
	promoCode := view.Cart.PromoCode
	if view.PromoInvalid {
		if err := s.carts.DetachInvalidPromo(ctx, view.Cart.ID); err != nil {
			return nil, errors.Wrap(err, "detach invalid promo")
		}
		// The code gave no discount; the order does not record it.
		promoCode = ""
	}
	if len(view.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	billing := req.Shipping
	if req.Billing != nil {
		billing = *req.Billing
	}

	o := &Order{
		ID:            uuid.New().String(),
		CustomerID:    req.CustomerID,
		Email:         req.Email,
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: PaymentPending,
		OriginalTotal: view.OriginalTotal,
		Discount:      view.RuleDiscount.Add(view.PromoDiscount),
		Total:         view.Total,
		PromoCode:     promoCode,
		Shipping:      req.Shipping,
		Billing:       billing,
		B2B:           req.B2B,
		CreatedAt:     s.now(),
	}
	for _, line := range view.Lines {
		o.Lines = append(o.Lines, Line{
			ItemID:    line.Item.ID,
			Name:      line.Item.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.Breakdown.FinalPrice,
		})
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		for _, line := range o.Lines {
			if err := s.inventory.Adjust(ctx, line.ItemID, -line.Quantity,
				inventory.ActionSale, "order "+o.ID, req.CustomerID); err != nil {
				return errors.Wrap(err, "deduct stock")
			}
		}
		if o.PromoCode != "" {
			if err := s.promos.IncrementUses(ctx, o.PromoCode); err != nil {
				return errors.Wrap(err, "count promo use")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session := s.initiatePayment(ctx, o)

	go s.pushShipment(o)

	if err := s.carts.Clear(ctx, view.Cart.ID); err != nil {
		// The order already exists; a stale cart is retryable, a lost
		// order is not.
		s.lg.Error("clear cart after checkout failed",
			zap.String("order_id", o.ID), zap.Error(err))
	}

	return &CheckoutResult{Order: o, Session: session}, nil
}

// initiatePayment asks the selected gateway for a session and persists its
// reference. A gateway failure leaves the order PENDING and payable by
// other means.
func (s *Service) initiatePayment(ctx context.Context, o *Order) *payment.Session {
	gw, ok := s.gateways[o.PaymentMethod]
	if !ok {
		return nil
	}

	session, err := gw.Initiate(ctx, payment.OrderInfo{
		OrderID:      o.ID,
		Amount:       o.Total,
		Currency:     "INR",
		CustomerName: o.Shipping.Name,
		Email:        o.Email,
		Phone:        o.Shipping.Phone,
		Address:      o.Shipping.Line1,
		City:         o.Shipping.City,
		State:        o.Shipping.State,
		PostalCode:   o.Shipping.PostalCode,
	})
	if err != nil {
		s.lg.Error("payment initiation failed",
			zap.String("order_id", o.ID),
			zap.String("method", string(o.PaymentMethod)),
			zap.Error(err))
		return nil
	}

	if err := s.orders.SetPaymentSession(ctx, o.ID, o.PaymentMethod, session.Reference); err != nil {
		s.lg.Error("persist payment session failed",
			zap.String("order_id", o.ID), zap.Error(err))
		return session
	}
	o.PaymentRef = session.Reference
	return session
}

// pushShipment mirrors the order to the logistics provider off the request
// path. Push failures, timeouts included, are logged only.
func (s *Service) pushShipment(o *Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lines := make([]shipment.Line, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = shipment.Line{Name: l.Name, Quantity: l.Quantity}
	}

	ref, err := s.shipments.Push(ctx, shipment.Order{
		OrderID:     o.ID,
		ShipmentRef: o.ShipmentRef,
		Customer:    o.Shipping.Name,
		Phone:       o.Shipping.Phone,
		Email:       o.Email,
		Address:     o.Shipping.Line1,
		City:        o.Shipping.City,
		State:       o.Shipping.State,
		PostalCode:  o.Shipping.PostalCode,
		Total:       o.Total,
		Lines:       lines,
	})
	if err != nil {
		s.lg.Warn("shipment push failed", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	if err := s.orders.SetShipmentRef(ctx, o.ID, ref); err != nil {
		s.lg.Error("persist shipment ref failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// SetStatus moves an order to a new status and runs that transition's side
// effects exactly once. CANCELLED is reachable from any non-terminal state;
// repeating a transition is a no-op for its side effects.
func (s *Service) SetStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled {
		return nil, ErrOrderCancelled
	}

	switch status {
	case StatusConfirmed:
		err = s.confirm(ctx, o)
	case StatusCancelled:
		err = s.cancel(ctx, o)
	default:
		// Plain transitions persist the status and nothing else.
		// RETURN/EXCHANGE financial reversal is deliberately not wired.
		err = s.orders.UpdateStatus(ctx, orderID, status)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, updated)
	return updated, nil
}

// confirm treats CONFIRMED as the successful-payment signal: award loyalty
// points and lifetime spend for the order total, inside one transaction with
// the status write and the idempotency marker.
func (s *Service) confirm(ctx context.Context, o *Order) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		applied, err := s.orders.MarkTransition(ctx, o.ID, StatusConfirmed)
		if err != nil {
			return errors.Wrap(err, "mark transition")
		}
		if !applied {
			return nil
		}

		if err := s.orders.UpdateStatus(ctx, o.ID, StatusConfirmed); err != nil {
			return errors.Wrap(err, "update status")
		}
		if err := s.loyalty.Earn(ctx, o.CustomerID, o.ID, o.Total); err != nil {
			return errors.Wrap(err, "award loyalty")
		}
		return nil
	})
}

// cancel stamps cancellation metadata, restocks every line, and reverses the
// loyalty awarded on confirmation, all in one transaction. The provider-side
// shipment cancel runs after commit and is non-fatal.
func (s *Service) cancel(ctx context.Context, o *Order) error {
	var applied bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.orders.MarkTransition(ctx, o.ID, StatusCancelled)
		if err != nil {
			return errors.Wrap(err, "mark transition")
		}
		if !applied {
			return nil
		}

		creditNote := s.creditNoteID()
		if err := s.orders.SetCancellation(ctx, o.ID, s.now(), creditNote); err != nil {
			return errors.Wrap(err, "stamp cancellation")
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, StatusCancelled); err != nil {
			return errors.Wrap(err, "update status")
		}

		for _, line := range o.Lines {
			if err := s.inventory.RestockLine(ctx, line.ItemID, line.Quantity, o.ID); err != nil {
				return errors.Wrap(err, "restock line")
			}
		}

		// Reversal only undoes what confirmation awarded.
		confirmed, err := s.wasConfirmed(ctx, o)
		if err != nil {
			return err
		}
		if confirmed {
			if err := s.loyalty.Reverse(ctx, o.CustomerID, o.ID, o.Total); err != nil {
				return errors.Wrap(err, "reverse loyalty")
			}
		}
		return nil
	})
	if err != nil || !applied {
		return err
	}

	if o.ShipmentRef != "" {
		if err := s.shipments.Cancel(ctx, o.ShipmentRef); err != nil {
			s.lg.Warn("shipment cancel failed",
				zap.String("order_id", o.ID),
				zap.String("shipment_ref", o.ShipmentRef),
				zap.Error(err))
		}
	}
	return nil
}

// wasConfirmed checks whether the CONFIRMED side effect has run for this
// order, via its transition marker.
func (s *Service) wasConfirmed(ctx context.Context, o *Order) (bool, error) {
	if o.Status == StatusConfirmed || o.PaymentStatus == PaymentPaid {
		return true, nil
	}
	// The status may have moved past CONFIRMED (PROCESSING, SHIPPED, ...);
	// the marker is the durable record that the award happened.
	claimed, err := s.orders.MarkTransition(ctx, o.ID, StatusConfirmed)
	if err != nil {
		return false, errors.Wrap(err, "check confirmation marker")
	}
	// A successful claim here means confirmation never ran; the marker now
	// also blocks a late confirm from re-awarding after cancellation.
	return !claimed, nil
}

// ConfirmPayment records a verified gateway confirmation and moves the order
// to CONFIRMED.
func (s *Service) ConfirmPayment(ctx context.Context, conf payment.Confirmation) (*Order, error) {
	if err := s.orders.SetPaymentOutcome(ctx, conf.OrderID, PaymentPaid, conf.Reference); err != nil {
		return nil, errors.Wrap(err, "record payment outcome")
	}
	return s.SetStatus(ctx, conf.OrderID, StatusConfirmed)
}

// FailPayment records a failed or rejected payment; the order moves to
// PAYMENT_FAILED rather than staying ambiguously PENDING.
func (s *Service) FailPayment(ctx context.Context, orderID, reference string) (*Order, error) {
	if err := s.orders.SetPaymentOutcome(ctx, orderID, PaymentFailed, reference); err != nil {
		return nil, errors.Wrap(err, "record payment outcome")
	}
	return s.SetStatus(ctx, orderID, StatusPaymentFailed)
}

// FindByPaymentRef resolves a gateway reference (remote order id or
// transaction id) back to the local order.
func (s *Service) FindByPaymentRef(ctx context.Context, ref string) (*Order, error) {
	return s.orders.GetByPaymentRef(ctx, ref)
}

// creditNoteID builds a cancellation document id: <prefix>/CN/<year>/<nnnn>.
func (s *Service) creditNoteID() string {
	return fmt.Sprintf("%s/CN/%d/%04d", s.creditNotePrefix, s.now().Year(), s.creditNoteSeq())
}

func (s *Service) publishEvent(ctx context.Context, o *Order) {
	ev := notify.OrderEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
		Total:      o.Total.StringFixed(2),
		OccurredAt: s.now(),
	}
	if err := s.notifier.OrderEvent(ctx, ev); err != nil {
		s.lg.Warn("order event publish failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}
