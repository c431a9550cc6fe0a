package notify

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsNotifier counts published events before handing them to the wrapped
// Notifier. Counting happens even when delivery fails; the error is returned
// untouched.
type MetricsNotifier struct {
	next Notifier

	orderEvents   metric.Int64Counter
	cartReminders metric.Int64Counter
	lowStock      metric.Int64Counter
}

var _ Notifier = (*MetricsNotifier)(nil)

// NewMetricsNotifier wraps next with event counters registered on mp.
func NewMetricsNotifier(next Notifier, mp metric.MeterProvider) (*MetricsNotifier, error) {
	meter := mp.Meter("github.com/aurumlabs/aurum/internal/notify")

	orderEvents, err := meter.Int64Counter("aurum.notify.order_events",
		metric.WithDescription("Order status events published"))
	if err != nil {
		return nil, err
	}
	cartReminders, err := meter.Int64Counter("aurum.notify.cart_reminders",
		metric.WithDescription("Idle cart reminders published"))
	if err != nil {
		return nil, err
	}
	lowStock, err := meter.Int64Counter("aurum.notify.low_stock",
		metric.WithDescription("Low stock alerts published"))
	if err != nil {
		return nil, err
	}

	return &MetricsNotifier{
		next:          next,
		orderEvents:   orderEvents,
		cartReminders: cartReminders,
		lowStock:      lowStock,
	}, nil
}

func (n *MetricsNotifier) OrderEvent(ctx context.Context, ev OrderEvent) error {
	n.orderEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("status", ev.Status)))
	return n.next.OrderEvent(ctx, ev)
}

func (n *MetricsNotifier) CartReminder(ctx context.Context, customerID, cartID string) error {
	n.cartReminders.Add(ctx, 1)
	return n.next.CartReminder(ctx, customerID, cartID)
}

func (n *MetricsNotifier) LowStock(ctx context.Context, itemID string, stock int) error {
	n.lowStock.Add(ctx, 1, metric.WithAttributes(attribute.String("item_id", itemID)))
	return n.next.LowStock(ctx, itemID, stock)
}
