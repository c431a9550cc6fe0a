package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes events to the application log instead of publishing
// them. Used in development and as the fallback when no brokers are
// configured.
type LogNotifier struct {
	lg *zap.Logger
}

// NewLogNotifier creates a LogNotifier over the given logger.
func NewLogNotifier(lg *zap.Logger) *LogNotifier {
	return &LogNotifier{lg: lg.Named("notify")}
}

func (n *LogNotifier) OrderEvent(_ context.Context, ev OrderEvent) error {
	n.lg.Info("order event",
		zap.String("order_id", ev.OrderID),
		zap.String("customer_id", ev.CustomerID),
		zap.String("status", ev.Status),
	)
	return nil
}

func (n *LogNotifier) CartReminder(_ context.Context, customerID, cartID string) error {
	n.lg.Info("cart reminder",
		zap.String("customer_id", customerID),
		zap.String("cart_id", cartID),
	)
	return nil
}

func (n *LogNotifier) LowStock(_ context.Context, itemID string, stock int) error {
	n.lg.Info("low stock alert",
		zap.String("item_id", itemID),
		zap.Int("stock", stock),
	)
	return nil
}
