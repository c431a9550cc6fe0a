// Package notify is the outbound notification port. Delivery (SMS, WhatsApp,
// email, push) is an external concern; the core only publishes events.
package notify

import (
	"context"
	"time"
)

// OrderEvent describes an order status change worth telling the customer
// about.
type OrderEvent struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	Total      string    `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier publishes customer-facing events. Implementations must be safe
// for concurrent use.
type Notifier interface {
	OrderEvent(ctx context.Context, ev OrderEvent) error
	CartReminder(ctx context.Context, customerID, cartID string) error
	LowStock(ctx context.Context, itemID string, stock int) error
}
