package outbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/pkg/events"
)

// Recorder implements port.EventPublisher by appending events to the outbox. It serves
// producers whose change is not a store write, such as the reminder sweep.
type Recorder struct {
	repo events.OutboxRepository
}

func NewRecorder(repo events.OutboxRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Publish(ctx context.Context, evts ...event.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	entries, err := events.NewOutboxEntries(evts...)
	if err != nil {
		return err
	}
	if err := r.repo.Store(ctx, entries); err != nil {
		return fmt.Errorf("record %d events: %w", len(entries), err)
	}
	return nil
}

// LogSink accepts every entry and only logs it. It stands in for the broker when none
// is configured so the outbox still drains.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) PublishEntries(ctx context.Context, entries []events.OutboxEntry) error {
	for _, e := range entries {
		s.logger.DebugContext(ctx, "domain event (no broker configured)",
			"event_type", e.EventType,
			"aggregate_id", e.AggregateID,
			"event_id", e.ID,
		)
	}
	return nil
}
