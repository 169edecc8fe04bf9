// Package sqlite is the embedded single-file loan store, selected with STORAGE_DRIVER=sqlite.
// The schema is created on open. Dates are stored as YYYY-MM-DD text and amounts as
// decimal text so nothing passes through float columns.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/infrastructure/persistence"
)

const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// LoanRepo implements port.LoanRepository on SQLite.
type LoanRepo struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for a private in-memory store.
func Open(path string) (*LoanRepo, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &LoanRepo{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return repo, nil
}

func (r *LoanRepo) Close() error {
	return r.db.Close()
}

func (r *LoanRepo) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		client_email TEXT NOT NULL DEFAULT '',
		principal TEXT NOT NULL,
		rate_percent TEXT NOT NULL,
		rate_convention TEXT NOT NULL,
		installment_count INTEGER NOT NULL CHECK (installment_count > 0),
		installment_amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT,
		UNIQUE (loan_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_due ON installments(due_date, paid);

	CREATE TABLE IF NOT EXISTS outbox (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		aggregate_id TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		partition_key TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at TEXT NOT NULL,
		published_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(published_at, seq);
	`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

const loanColumns = `id, client_name, client_email, principal, rate_percent, rate_convention,
	installment_count, installment_amount, currency, start_date, version, created_at, updated_at`

const installmentColumns = `id, loan_id, number, due_date, amount, paid, paid_at`

func (r *LoanRepo) Create(ctx context.Context, loan model.Loan) error {
	rec := persistence.LoanRecordFrom(loan)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO loans (`+loanColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.ClientName, rec.ClientEmail, rec.Principal.String(), rec.RatePercent.String(),
			rec.RateConvention, rec.InstallmentCount, rec.InstallmentAmount.String(), rec.Currency,
			formatDate(rec.StartDate), rec.Version, formatTimestamp(rec.CreatedAt), formatTimestamp(rec.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO installments (`+installmentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare installment insert: %w", err)
		}
		defer stmt.Close()

		for _, inst := range loan.Installments() {
			ir := persistence.InstallmentRecordFrom(inst)
			if _, err := stmt.ExecContext(ctx,
				ir.ID, ir.LoanID, ir.Number, formatDate(ir.DueDate), ir.Amount.String(), ir.Paid, nullTimestamp(ir.PaidAt),
			); err != nil {
				return fmt.Errorf("insert installment %d: %w", ir.Number, err)
			}
		}
		return insertOutbox(ctx, tx, loan.DomainEvents())
	})
	if err != nil {
		return fmt.Errorf("create loan %s: %w", loan.ID(), err)
	}
	return nil
}

func (r *LoanRepo) UpdateTerms(ctx context.Context, loan model.Loan) error {
	rec := persistence.LoanRecordFrom(loan)

	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE loans SET
				principal = ?, rate_percent = ?, rate_convention = ?, installment_amount = ?,
				updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			rec.Principal.String(), rec.RatePercent.String(), rec.RateConvention, rec.InstallmentAmount.String(),
			formatTimestamp(rec.UpdatedAt), rec.ID, rec.Version,
		)
		if err != nil {
			return fmt.Errorf("%w: update loan %s: %w", model.ErrPersistence, rec.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return missingOrStale(ctx, tx, rec.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE installments SET amount = ? WHERE loan_id = ? AND paid = 0`,
			rec.InstallmentAmount.String(), rec.ID,
		); err != nil {
			return fmt.Errorf("%w: reprice installments of %s: %w", model.ErrPersistence, rec.ID, err)
		}
		return insertOutbox(ctx, tx, loan.DomainEvents())
	})
}

func (r *LoanRepo) FindByID(ctx context.Context, id string) (model.Loan, error) {
	rec, err := scanLoan(r.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, fmt.Errorf("%w: loan %s", model.ErrNotFound, id)
		}
		return model.Loan{}, fmt.Errorf("%w: find loan %s: %w", model.ErrPersistence, id, err)
	}

	insts, err := r.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE loan_id = ? ORDER BY number`, id)
	if err != nil {
		return model.Loan{}, err
	}
	return rec.ToModel(persistence.GroupByLoan(insts)[id])
}

func (r *LoanRepo) List(ctx context.Context) ([]model.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query loans: %w", model.ErrPersistence, err)
	}
	defer rows.Close()

	var recs []persistence.LoanRecord
	for rows.Next() {
		rec, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan loan: %w", model.ErrPersistence, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate loans: %w", model.ErrPersistence, err)
	}

	insts, err := r.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments ORDER BY loan_id, number`)
	if err != nil {
		return nil, err
	}
	byLoan := persistence.GroupByLoan(insts)

	loans := make([]model.Loan, 0, len(recs))
	for _, rec := range recs {
		loan, err := rec.ToModel(byLoan[rec.ID])
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

func (r *LoanRepo) Delete(ctx context.Context, id string, evts ...event.DomainEvent) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE loan_id = ?`, id); err != nil {
			return fmt.Errorf("%w: delete installments of %s: %w", model.ErrPersistence, id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("%w: delete loan %s: %w", model.ErrPersistence, id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: loan %s", model.ErrNotFound, id)
		}
		return insertOutbox(ctx, tx, evts)
	})
}

func (r *LoanRepo) FindInstallment(ctx context.Context, id string) (model.Installment, error) {
	rec, err := scanInstallment(r.db.QueryRowContext(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Installment{}, fmt.Errorf("%w: installment %s", model.ErrNotFound, id)
		}
		return model.Installment{}, fmt.Errorf("%w: find installment %s: %w", model.ErrPersistence, id, err)
	}
	return rec.ToModel(), nil
}

func (r *LoanRepo) SaveInstallment(ctx context.Context, inst model.Installment, evts ...event.DomainEvent) error {
	rec := persistence.InstallmentRecordFrom(inst)
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE installments SET paid = ?, paid_at = ? WHERE id = ?`,
			rec.Paid, nullTimestamp(rec.PaidAt), rec.ID)
		if err != nil {
			return fmt.Errorf("%w: save installment %s: %w", model.ErrPersistence, rec.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: installment %s", model.ErrNotFound, rec.ID)
		}
		return insertOutbox(ctx, tx, evts)
	})
}

func (r *LoanRepo) FindDueOn(ctx context.Context, day time.Time) ([]model.DueInstallment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.loan_id, i.number, i.due_date, i.amount, i.paid, i.paid_at,
		       l.client_name, l.client_email, l.installment_count, l.currency
		FROM installments i
		JOIN loans l ON l.id = i.loan_id
		WHERE i.due_date = ? AND i.paid = 0
		ORDER BY i.loan_id, i.number`,
		formatDate(model.DateOf(day)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query due installments: %w", model.ErrPersistence, err)
	}
	defer rows.Close()

	var due []model.DueInstallment
	for rows.Next() {
		var (
			row      installmentRow
			d        model.DueInstallment
			currency string
		)
		if err := rows.Scan(
			&row.id, &row.loanID, &row.number, &row.dueDate, &row.amount, &row.paid, &row.paidAt,
			&d.ClientName, &d.ClientEmail, &d.InstallmentCount, &currency,
		); err != nil {
			return nil, fmt.Errorf("%w: scan due installment: %w", model.ErrPersistence, err)
		}
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		d.Installment = rec.ToModel()
		if d.Currency, err = persistence.ParseCurrency(currency); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate due installments: %w", model.ErrPersistence, err)
	}
	return due, nil
}

func (r *LoanRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", model.ErrPersistence, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// internal helpers
// ---------------------------------------------------------------------------

// withTx runs fn in a transaction. Errors that carry no ledger sentinel come back tagged
// with model.ErrPersistence.
func (r *LoanRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", model.ErrPersistence, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return persistence.Classify(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", model.ErrPersistence, err)
	}
	return nil
}

func (r *LoanRepo) queryInstallments(ctx context.Context, query string, args ...any) ([]persistence.InstallmentRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query installments: %w", model.ErrPersistence, err)
	}
	defer rows.Close()

	var recs []persistence.InstallmentRecord
	for rows.Next() {
		rec, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan installment: %w", model.ErrPersistence, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate installments: %w", model.ErrPersistence, err)
	}
	return recs, nil
}

func missingOrStale(ctx context.Context, tx *sql.Tx, id string) error {
	var version int
	err := tx.QueryRowContext(ctx, `SELECT version FROM loans WHERE id = ?`, id).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: loan %s", model.ErrNotFound, id)
	case err != nil:
		return fmt.Errorf("%w: check loan version %s: %w", model.ErrPersistence, id, err)
	default:
		return fmt.Errorf("%w: loan %s is at version %d", model.ErrConcurrentModification, id, version)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(s scanner) (persistence.LoanRecord, error) {
	var (
		rec                  persistence.LoanRecord
		startDate            string
		createdAt, updatedAt string
	)
	if err := s.Scan(
		&rec.ID, &rec.ClientName, &rec.ClientEmail, &rec.Principal, &rec.RatePercent, &rec.RateConvention,
		&rec.InstallmentCount, &rec.InstallmentAmount, &rec.Currency, &startDate,
		&rec.Version, &createdAt, &updatedAt,
	); err != nil {
		return rec, err
	}

	var err error
	if rec.StartDate, err = parseDate(startDate); err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return rec, err
	}
	if rec.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return rec, err
	}
	return rec, nil
}

type installmentRow struct {
	id, loanID string
	number     int
	dueDate    string
	amount     decimal.Decimal
	paid       bool
	paidAt     sql.NullString
}

func (row installmentRow) record() (persistence.InstallmentRecord, error) {
	rec := persistence.InstallmentRecord{
		ID:     row.id,
		LoanID: row.loanID,
		Number: row.number,
		Amount: row.amount,
		Paid:   row.paid,
	}
	var err error
	if rec.DueDate, err = parseDate(row.dueDate); err != nil {
		return rec, err
	}
	if row.paidAt.Valid {
		paidAt, err := parseTimestamp(row.paidAt.String)
		if err != nil {
			return rec, err
		}
		rec.PaidAt = &paidAt
	}
	return rec, nil
}

func scanInstallment(s scanner) (persistence.InstallmentRecord, error) {
	var row installmentRow
	if err := s.Scan(&row.id, &row.loanID, &row.number, &row.dueDate, &row.amount, &row.paid, &row.paidAt); err != nil {
		return persistence.InstallmentRecord{}, err
	}
	return row.record()
}

func formatDate(t time.Time) string { return t.Format(time.DateOnly) }

func formatTimestamp(t time.Time) string { return t.UTC().Format(timestampLayout) }

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: stored date %q: %w", model.ErrPersistence, s, err)
	}
	return t, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: stored timestamp %q: %w", model.ErrPersistence, s, err)
	}
	return t, nil
}
