package gosortable

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event describes a completed rank operation.
type Event struct {
	Operation string    `json:"operation"`
	Partition string    `json:"partition"`
	Keys      []any     `json:"keys"`
	At        time.Time `json:"at"`
}

// Notifier is told about every completed rank operation, e.g. to invalidate
// cached listings. Notification failures never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// messageWriter is the part of *kafka.Writer used by KafkaNotifier.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes events as JSON to a kafka topic, keyed by
// partition so that events of one partition stay ordered.
type KafkaNotifier struct {
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaNotifier creates a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}

	return newKafkaNotifier(w, topic)
}

func newKafkaNotifier(w messageWriter, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: w,
		logger: slog.Default().With("component", "sortable-notifier", "topic", topic),
	}
}

// Notify - implements Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Partition),
		Value: value,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing to kafka: %w", err)
	}

	n.logger.Debug("event published", "operation", event.Operation, "partition", event.Partition)

	return nil
}

// Close flushes pending writes and closes the kafka writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

var _ Notifier = (*KafkaNotifier)(nil)
