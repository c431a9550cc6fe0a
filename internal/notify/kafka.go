package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// Topic names, one per event class.
const (
	TopicOrderEvents   = "aurum.order-events"
	TopicCartReminders = "aurum.cart-reminders"
	TopicLowStock      = "aurum.low-stock"
)

// KafkaNotifier publishes notification events to Kafka. Downstream delivery
// workers consume the topics and fan out to SMS/WhatsApp/email providers.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a notifier writing to the given brokers. The
// topic is set per message, so one writer serves all event classes.
func NewKafkaNotifier(brokers []string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// OrderEvent publishes an order status change keyed by order id.
func (n *KafkaNotifier) OrderEvent(ctx context.Context, ev OrderEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}
	return n.write(ctx, TopicOrderEvents, ev.OrderID, value)
}

// CartReminder publishes an abandoned-cart nudge keyed by customer id.
func (n *KafkaNotifier) CartReminder(ctx context.Context, customerID, cartID string) error {
	value, err := json.Marshal(map[string]string{
		"customer_id": customerID,
		"cart_id":     cartID,
	})
	if err != nil {
		return errors.Wrap(err, "marshal cart reminder")
	}
	return n.write(ctx, TopicCartReminders, customerID, value)
}

// LowStock publishes a low-stock alert for back-office consumers.
func (n *KafkaNotifier) LowStock(ctx context.Context, itemID string, stock int) error {
	value, err := json.Marshal(map[string]string{
		"item_id": itemID,
		"stock":   strconv.Itoa(stock),
	})
	if err != nil {
		return errors.Wrap(err, "marshal low stock alert")
	}
	return n.write(ctx, TopicLowStock, itemID, value)
}

func (n *KafkaNotifier) write(ctx context.Context, topic, key string, value []byte) error {
	err := n.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}
	return nil
}
