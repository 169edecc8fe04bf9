package outbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/infrastructure/outbox"
	"github.com/bibbank/loanbook/pkg/events"
)

// --- Fakes ---

type memoryOutbox struct {
	mu       sync.Mutex
	entries  []events.OutboxEntry
	markFunc func(ids []string) error
	purgedAt []time.Time
	fetchErr error
	storeErr error
}

func (m *memoryOutbox) Store(_ context.Context, entries []events.OutboxEntry) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memoryOutbox) FetchUnpublished(_ context.Context, batchSize int) ([]events.OutboxEntry, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.OutboxEntry
	for _, e := range m.entries {
		if e.PublishedAt == nil && len(out) < batchSize {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryOutbox) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	if m.markFunc != nil {
		if err := m.markFunc(ids); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for i := range m.entries {
			if m.entries[i].ID == id {
				published := at
				m.entries[i].PublishedAt = &published
			}
		}
	}
	return nil
}

func (m *memoryOutbox) PurgePublished(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgedAt = append(m.purgedAt, before)
	return 0, nil
}

func (m *memoryOutbox) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.PublishedAt == nil {
			n++
		}
	}
	return n
}

type mockSink struct {
	publishFunc func(entries []events.OutboxEntry) error

	mu      sync.Mutex
	batches [][]events.OutboxEntry
	ch      chan []events.OutboxEntry
}

func (m *mockSink) PublishEntries(_ context.Context, entries []events.OutboxEntry) error {
	if m.publishFunc != nil {
		if err := m.publishFunc(entries); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.batches = append(m.batches, entries)
	m.mu.Unlock()
	if m.ch != nil {
		m.ch <- entries
	}
	return nil
}

func (m *mockSink) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, b := range m.batches {
		for _, e := range b {
			out = append(out, e.ID)
		}
	}
	return out
}

type fakeClock struct {
	now       time.Time
	tick      chan time.Time
	requested chan time.Duration
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, tick: make(chan time.Time), requested: make(chan time.Duration, 16)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.requested <- d
	return c.tick
}

// --- Helpers ---

var testNow = time.Date(2026, 6, 3, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, repo *memoryOutbox, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		entry, err := events.NewOutboxEntry(event.NewLoanDeleted("loan-1", testNow))
		require.NoError(t, err)
		require.NoError(t, repo.Store(context.Background(), []events.OutboxEntry{entry}))
		ids = append(ids, entry.ID)
	}
	return ids
}

func newRelay(t *testing.T, repo events.OutboxRepository, sink outbox.Sink, clock outbox.Clock, cfg outbox.Config) (*outbox.Relay, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	r, err := outbox.NewRelay(repo, sink, clock, cfg, mp.Meter("outbox-test"), discardLogger())
	require.NoError(t, err)
	return r, reader
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

// --- Tests ---

func TestRelayOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes in insertion order in batches", func(t *testing.T) {
		repo := &memoryOutbox{}
		ids := seed(t, repo, 5)
		sink := &mockSink{}
		relay, reader := newRelay(t, repo, sink, newFakeClock(testNow), outbox.Config{BatchSize: 2})

		n, err := relay.RelayOnce(ctx)
		require.NoError(t, err)

		assert.Equal(t, 5, n)
		assert.Equal(t, ids, sink.ids())
		assert.Len(t, sink.batches, 3)
		assert.Zero(t, repo.pending())
		assert.Equal(t, int64(5), counterValue(t, reader, "loanbook_outbox_published_total"))
		for _, e := range repo.entries {
			require.NotNil(t, e.PublishedAt)
			assert.True(t, e.PublishedAt.Equal(testNow))
		}
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		sink := &mockSink{}
		relay, _ := newRelay(t, &memoryOutbox{}, sink, newFakeClock(testNow), outbox.Config{})

		n, err := relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, sink.batches)
	})

	t.Run("broker failure keeps entries for the next pass", func(t *testing.T) {
		repo := &memoryOutbox{}
		ids := seed(t, repo, 3)
		down := true
		sink := &mockSink{publishFunc: func([]events.OutboxEntry) error {
			if down {
				return errors.New("leader not available")
			}
			return nil
		}}
		relay, reader := newRelay(t, repo, sink, newFakeClock(testNow), outbox.Config{})

		n, err := relay.RelayOnce(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "leader not available")
		assert.Zero(t, n)
		assert.Equal(t, 3, repo.pending())
		assert.Equal(t, int64(1), counterValue(t, reader, "loanbook_outbox_failures_total"))

		down = false
		n, err = relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, ids, sink.ids())
		assert.Zero(t, repo.pending())
	})

	t.Run("failed mark redelivers the batch", func(t *testing.T) {
		repo := &memoryOutbox{}
		seed(t, repo, 2)
		failMark := true
		repo.markFunc = func([]string) error {
			if failMark {
				return errors.New("disk full")
			}
			return nil
		}
		sink := &mockSink{}
		relay, _ := newRelay(t, repo, sink, newFakeClock(testNow), outbox.Config{})

		_, err := relay.RelayOnce(ctx)
		require.Error(t, err)
		assert.Equal(t, 2, repo.pending())

		failMark = false
		_, err = relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Len(t, sink.ids(), 4, "at least once: the first batch is sent again")
		assert.Zero(t, repo.pending())
	})

	t.Run("fetch failure", func(t *testing.T) {
		repo := &memoryOutbox{fetchErr: errors.New("db down")}
		relay, _ := newRelay(t, repo, &mockSink{}, newFakeClock(testNow), outbox.Config{})

		_, err := relay.RelayOnce(ctx)
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("purges entries older than the retention", func(t *testing.T) {
		repo := &memoryOutbox{}
		relay, _ := newRelay(t, repo, &mockSink{}, newFakeClock(testNow), outbox.Config{Retention: 24 * time.Hour})

		_, err := relay.RelayOnce(ctx)
		require.NoError(t, err)
		require.Len(t, repo.purgedAt, 1)
		assert.Equal(t, testNow.Add(-24*time.Hour), repo.purgedAt[0])
	})

	t.Run("zero retention keeps published entries", func(t *testing.T) {
		repo := &memoryOutbox{}
		relay, _ := newRelay(t, repo, &mockSink{}, newFakeClock(testNow), outbox.Config{})

		_, err := relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Empty(t, repo.purgedAt)
	})
}

func TestRelay_StartStopDrains(t *testing.T) {
	repo := &memoryOutbox{}
	first := seed(t, repo, 1)
	sink := &mockSink{ch: make(chan []events.OutboxEntry, 4)}
	clock := newFakeClock(testNow)
	relay, _ := newRelay(t, repo, sink, clock, outbox.Config{Interval: time.Minute})

	relay.Start()

	select {
	case batch := <-sink.ch:
		require.Len(t, batch, 1)
		assert.Equal(t, first[0], batch[0].ID)
	case <-time.After(5 * time.Second):
		t.Fatal("first pass did not publish")
	}
	select {
	case d := <-clock.requested:
		assert.Equal(t, time.Minute, d)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not wait for the next interval")
	}

	late := seed(t, repo, 1)
	relay.Stop()

	assert.Equal(t, append(first, late...), sink.ids())
	assert.Zero(t, repo.pending())
}

func TestRecorder_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("stores entries", func(t *testing.T) {
		repo := &memoryOutbox{}
		due := time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
		evt := event.NewInstallmentReminderSent("inst-1", "loan-1", 1, due, "maria@example.com", testNow)

		require.NoError(t, outbox.NewRecorder(repo).Publish(ctx, evt))

		require.Len(t, repo.entries, 1)
		assert.Equal(t, evt.EventID(), repo.entries[0].ID)
		assert.Equal(t, "loan-1", repo.entries[0].PartitionKey)
		assert.Equal(t, event.TypeInstallmentReminderSent, repo.entries[0].EventType)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		repo := &memoryOutbox{storeErr: errors.New("locked")}
		err := outbox.NewRecorder(repo).Publish(ctx, event.NewLoanDeleted("loan-1", testNow))
		assert.ErrorContains(t, err, "locked")
	})

	t.Run("nothing to record", func(t *testing.T) {
		repo := &memoryOutbox{storeErr: errors.New("not called")}
		assert.NoError(t, outbox.NewRecorder(repo).Publish(ctx))
	})
}

func TestLogSink_AcceptsEverything(t *testing.T) {
	repo := &memoryOutbox{}
	seed(t, repo, 3)
	relay, _ := newRelay(t, repo, outbox.NewLogSink(discardLogger()), newFakeClock(testNow), outbox.Config{})

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, repo.pending())
}
