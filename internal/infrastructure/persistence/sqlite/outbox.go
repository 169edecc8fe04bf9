package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/pkg/events"
)

const outboxColumns = `id, aggregate_id, aggregate_type, event_type, partition_key, payload, created_at`

// Store appends entries outside of any loan change, e.g. reminder events.
func (r *LoanRepo) Store(ctx context.Context, entries []events.OutboxEntry) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return insertEntries(ctx, tx, entries)
	})
}

func (r *LoanRepo) FetchUnpublished(ctx context.Context, batchSize int) ([]events.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+outboxColumns+` FROM outbox
		WHERE published_at IS NULL ORDER BY seq LIMIT ?`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: query outbox: %w", model.ErrPersistence, err)
	}
	defer rows.Close()

	var entries []events.OutboxEntry
	for rows.Next() {
		var (
			e         events.OutboxEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.PartitionKey, &e.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan outbox entry: %w", model.ErrPersistence, err)
		}
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate outbox: %w", model.ErrPersistence, err)
	}
	return entries, nil
}

func (r *LoanRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare outbox update: %w", err)
		}
		defer stmt.Close()

		published := formatTimestamp(at)
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, published, id); err != nil {
				return fmt.Errorf("mark outbox entry %s published: %w", id, err)
			}
		}
		return nil
	})
}

func (r *LoanRepo) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`, formatTimestamp(before))
	if err != nil {
		return 0, fmt.Errorf("%w: purge outbox: %w", model.ErrPersistence, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, evts []event.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	entries, err := events.NewOutboxEntries(evts...)
	if err != nil {
		return err
	}
	return insertEntries(ctx, tx, entries)
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []events.OutboxEntry) error {
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO outbox (`+outboxColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.AggregateID, e.AggregateType, e.EventType, e.PartitionKey, e.Payload, formatTimestamp(e.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert outbox entry %s: %w", e.EventType, err)
		}
	}
	return nil
}
