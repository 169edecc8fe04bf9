package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/pkg/events"
	pkgkafka "github.com/bibbank/loanbook/pkg/kafka"
)

// MessageWriter is satisfied by *pkgkafka.Producer.
type MessageWriter interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// EventPublisher writes domain events to Kafka. The outbox relay drives it through
// PublishEntries; Publish serves callers holding events directly.
type EventPublisher struct {
	producer MessageWriter
	topic    string
	logger   *slog.Logger
}

// NewEventPublisher creates a publisher targeting the given Kafka producer and topic.
func NewEventPublisher(producer MessageWriter, topic string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish serialises and sends domain events to Kafka in one batch.
func (p *EventPublisher) Publish(ctx context.Context, evts ...event.DomainEvent) error {
	entries, err := events.NewOutboxEntries(evts...)
	if err != nil {
		return err
	}
	return p.PublishEntries(ctx, entries)
}

// PublishEntries sends already-encoded outbox entries in one batch, keyed by their
// partition key.
func (p *EventPublisher) PublishEntries(ctx context.Context, entries []events.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}

	messages := make([]pkgkafka.Message, 0, len(entries))
	for _, e := range entries {
		p.logger.DebugContext(ctx, "publishing domain event",
			"event_type", e.EventType,
			"aggregate_id", e.AggregateID,
			"topic", p.topic,
			"payload_size", len(e.Payload),
		)

		messages = append(messages, pkgkafka.Message{
			Key:   []byte(e.PartitionKey),
			Value: e.Payload,
			Headers: map[string]string{
				"event_type":     e.EventType,
				"event_id":       e.ID,
				"aggregate_type": e.AggregateType,
			},
		})
	}

	if err := p.producer.Publish(ctx, p.topic, messages...); err != nil {
		return fmt.Errorf("failed to publish events to topic %s: %w", p.topic, err)
	}
	return nil
}
