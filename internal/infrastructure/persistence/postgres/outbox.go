package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/pkg/events"
)

const outboxColumns = `id, aggregate_id, aggregate_type, event_type, partition_key, payload, created_at`

// Store appends entries outside of any loan change, e.g. reminder events.
func (r *LoanRepo) Store(ctx context.Context, entries []events.OutboxEntry) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		return insertEntries(ctx, tx, entries)
	})
}

// FetchUnpublished returns the oldest unpublished entries in insertion order.
func (r *LoanRepo) FetchUnpublished(ctx context.Context, batchSize int) ([]events.OutboxEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+outboxColumns+` FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: query outbox: %w", model.ErrPersistence, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.OutboxEntry, error) {
		var e events.OutboxEntry
		err := row.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.PartitionKey, &e.Payload, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan outbox: %w", model.ErrPersistence, err)
	}
	return entries, nil
}

func (r *LoanRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `UPDATE outbox SET published_at = $2 WHERE id = ANY($1)`, ids, at); err != nil {
		return fmt.Errorf("%w: mark outbox published: %w", model.ErrPersistence, err)
	}
	return nil
}

func (r *LoanRepo) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("%w: purge outbox: %w", model.ErrPersistence, err)
	}
	return tag.RowsAffected(), nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, evts []event.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	entries, err := events.NewOutboxEntries(evts...)
	if err != nil {
		return err
	}
	return insertEntries(ctx, tx, entries)
}

func insertEntries(ctx context.Context, tx pgx.Tx, entries []events.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO outbox (`+outboxColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			e.ID, e.AggregateID, e.AggregateType, e.EventType, e.PartitionKey, e.Payload, e.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert outbox entries: %w", err)
	}
	return nil
}
