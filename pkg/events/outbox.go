package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Keyed is implemented by events that are partitioned by something other than their
// aggregate, e.g. installment events keyed by their loan.
type Keyed interface {
	PartitionKey() string
}

// OutboxEntry represents a domain event stored in the outbox table.
type OutboxEntry struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	PartitionKey  string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewOutboxEntry creates an OutboxEntry from a DomainEvent.
// The payload is produced by JSON-marshalling the event itself.
func NewOutboxEntry(event DomainEvent) (OutboxEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("marshal event %s: %w", event.EventType(), err)
	}

	key := event.AggregateID()
	if keyed, ok := event.(Keyed); ok {
		key = keyed.PartitionKey()
	}

	return OutboxEntry{
		ID:            event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		EventType:     event.EventType(),
		PartitionKey:  key,
		Payload:       payload,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewOutboxEntries converts events in order, failing on the first that cannot be encoded.
func NewOutboxEntries(evts ...DomainEvent) ([]OutboxEntry, error) {
	entries := make([]OutboxEntry, 0, len(evts))
	for _, evt := range evts {
		entry, err := NewOutboxEntry(evt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// OutboxRepository is the port for outbox persistence.
type OutboxRepository interface {
	Store(ctx context.Context, entries []OutboxEntry) error
	// FetchUnpublished returns up to batchSize entries in insertion order.
	FetchUnpublished(ctx context.Context, batchSize int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
	// PurgePublished deletes entries published before the cutoff and reports how many.
	PurgePublished(ctx context.Context, before time.Time) (int64, error)
}
