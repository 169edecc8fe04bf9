// Package outbox moves domain events recorded by the loan store to the broker.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/bibbank/loanbook/pkg/events"
)

const (
	DefaultInterval  = 2 * time.Second
	DefaultBatchSize = 100

	drainTimeout = 5 * time.Second
)

// Clock is the relay's time source.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Sink delivers a batch of entries. *kafka.EventPublisher implements it.
type Sink interface {
	PublishEntries(ctx context.Context, entries []events.OutboxEntry) error
}

// Config controls polling and retention. A zero Retention keeps published entries.
type Config struct {
	Interval  time.Duration
	BatchSize int
	Retention time.Duration
}

// Relay polls the outbox and hands unpublished entries to the sink in insertion order.
// Entries are marked published only after the sink accepted them, so delivery is at
// least once.
type Relay struct {
	repo   events.OutboxRepository
	sink   Sink
	clock  Clock
	cfg    Config
	logger *slog.Logger

	publishedCounter metric.Int64Counter
	failedCounter    metric.Int64Counter

	passMu sync.Mutex

	lifeMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelay builds a Relay. A nil meter uses the global meter provider.
func NewRelay(repo events.OutboxRepository, sink Sink, clock Clock, cfg Config, meter metric.Meter, logger *slog.Logger) (*Relay, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if meter == nil {
		meter = otel.Meter("github.com/bibbank/loanbook/outbox")
	}

	r := &Relay{
		repo:   repo,
		sink:   sink,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}

	var err error
	if r.publishedCounter, err = meter.Int64Counter("loanbook_outbox_published_total",
		metric.WithDescription("Outbox entries delivered to the broker")); err != nil {
		return nil, fmt.Errorf("create published counter: %w", err)
	}
	if r.failedCounter, err = meter.Int64Counter("loanbook_outbox_failures_total",
		metric.WithDescription("Relay passes that stopped on an error")); err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}
	return r, nil
}

// Run relays once per interval until ctx is cancelled, then drains what is left.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay started",
		"interval", r.cfg.Interval.String(),
		"batch_size", r.cfg.BatchSize,
	)

	for {
		r.runLogged(ctx)

		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			r.runLogged(drainCtx)
			cancel()
			r.logger.Info("outbox relay stopped")
			return nil
		case <-r.clock.After(r.cfg.Interval):
		}
	}
}

// Start runs the relay in the background until Stop.
func (r *Relay) Start() {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.Run(ctx)
	}()
}

// Stop cancels the loop and waits for the final drain.
func (r *Relay) Stop() {
	r.lifeMu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.lifeMu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// RelayOnce publishes batches until the outbox is empty or a step fails, then purges
// entries published longer ago than the retention. It returns the number of entries
// marked published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	published := 0
	for {
		batch, err := r.repo.FetchUnpublished(ctx, r.cfg.BatchSize)
		if err != nil {
			r.failedCounter.Add(ctx, 1)
			return published, fmt.Errorf("fetch outbox: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		if err := r.sink.PublishEntries(ctx, batch); err != nil {
			r.failedCounter.Add(ctx, 1)
			return published, fmt.Errorf("publish %d outbox entries: %w", len(batch), err)
		}

		ids := make([]string, 0, len(batch))
		for _, e := range batch {
			ids = append(ids, e.ID)
		}
		if err := r.repo.MarkPublished(ctx, ids, r.clock.Now()); err != nil {
			r.failedCounter.Add(ctx, 1)
			return published, fmt.Errorf("mark outbox entries published: %w", err)
		}
		published += len(batch)
		r.publishedCounter.Add(ctx, int64(len(batch)))

		if len(batch) < r.cfg.BatchSize {
			break
		}
	}

	if r.cfg.Retention > 0 {
		purged, err := r.repo.PurgePublished(ctx, r.clock.Now().Add(-r.cfg.Retention))
		if err != nil {
			r.logger.WarnContext(ctx, "outbox purge failed", "error", err)
		} else if purged > 0 {
			r.logger.DebugContext(ctx, "outbox purged", "entries", purged)
		}
	}
	return published, nil
}

func (r *Relay) runLogged(ctx context.Context) {
	n, err := r.RelayOnce(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "outbox relay pass failed, retrying next interval", "published", n, "error", err)
		return
	}
	if n > 0 {
		r.logger.DebugContext(ctx, "outbox relay pass finished", "published", n)
	}
}
