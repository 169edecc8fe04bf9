package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/infrastructure/persistence"
	pgutil "github.com/bibbank/loanbook/pkg/postgres"
)

// LoanRepo implements port.LoanRepository on PostgreSQL.
type LoanRepo struct {
	pool *pgxpool.Pool
}

// NewLoanRepo creates a new PostgreSQL-backed loan repository.
func NewLoanRepo(pool *pgxpool.Pool) *LoanRepo {
	return &LoanRepo{pool: pool}
}

const loanColumns = `
	id, client_name, client_email, principal, rate_percent, rate_convention,
	installment_count, installment_amount, currency, start_date,
	version, created_at, updated_at`

const installmentColumns = `id, loan_id, number, due_date, amount, paid, paid_at`

// Create inserts the loan row and every installment in one transaction.
func (r *LoanRepo) Create(ctx context.Context, loan model.Loan) error {
	rec := persistence.LoanRecordFrom(loan)

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO loans (`+loanColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			rec.ID, rec.ClientName, rec.ClientEmail, rec.Principal, rec.RatePercent, rec.RateConvention,
			rec.InstallmentCount, rec.InstallmentAmount, rec.Currency, rec.StartDate,
			rec.Version, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}

		batch := &pgx.Batch{}
		for _, inst := range loan.Installments() {
			ir := persistence.InstallmentRecordFrom(inst)
			batch.Queue(`
				INSERT INTO installments (`+installmentColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				ir.ID, ir.LoanID, ir.Number, ir.DueDate, ir.Amount, ir.Paid, ir.PaidAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert installments: %w", err)
		}
		return insertOutbox(ctx, tx, loan.DomainEvents())
	})
	if err != nil {
		return fmt.Errorf("create loan %s: %w", loan.ID(), err)
	}
	return nil
}

// UpdateTerms writes the new terms when the stored version matches and reprices the
// installments still unpaid in the store.
func (r *LoanRepo) UpdateTerms(ctx context.Context, loan model.Loan) error {
	rec := persistence.LoanRecordFrom(loan)

	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE loans SET
				principal          = $2,
				rate_percent       = $3,
				rate_convention    = $4,
				installment_amount = $5,
				updated_at         = $6,
				version            = version + 1
			WHERE id = $1 AND version = $7`,
			rec.ID, rec.Principal, rec.RatePercent, rec.RateConvention,
			rec.InstallmentAmount, rec.UpdatedAt, rec.Version,
		)
		if err != nil {
			return fmt.Errorf("%w: update loan %s: %w", model.ErrPersistence, rec.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return r.missingOrStale(ctx, tx, rec.ID)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE installments SET amount = $2
			WHERE loan_id = $1 AND paid = FALSE`,
			rec.ID, rec.InstallmentAmount,
		); err != nil {
			return fmt.Errorf("%w: reprice installments of %s: %w", model.ErrPersistence, rec.ID, err)
		}
		return insertOutbox(ctx, tx, loan.DomainEvents())
	})
}

func (r *LoanRepo) FindByID(ctx context.Context, id string) (model.Loan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	rec, err := scanLoan(row)
	if err != nil {
		if pgutil.IsNoRows(err) {
			return model.Loan{}, fmt.Errorf("%w: loan %s", model.ErrNotFound, id)
		}
		return model.Loan{}, fmt.Errorf("%w: find loan %s: %w", model.ErrPersistence, id, err)
	}

	rows, err := r.queryInstallments(ctx, `
		SELECT `+installmentColumns+` FROM installments
		WHERE loan_id = $1 ORDER BY number`, id)
	if err != nil {
		return model.Loan{}, err
	}
	return rec.ToModel(persistence.GroupByLoan(rows)[id])
}

// List returns every loan, newest first.
func (r *LoanRepo) List(ctx context.Context) ([]model.Loan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query loans: %w", model.ErrPersistence, err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.LoanRecord, error) {
		return scanLoan(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan loans: %w", model.ErrPersistence, err)
	}

	instRows, err := r.queryInstallments(ctx, `
		SELECT `+installmentColumns+` FROM installments ORDER BY loan_id, number`)
	if err != nil {
		return nil, err
	}
	byLoan := persistence.GroupByLoan(instRows)

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

// Delete removes the installments and then the loan, recording evts with the change.
func (r *LoanRepo) Delete(ctx context.Context, id string, evts ...event.DomainEvent) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM installments WHERE loan_id = $1`, id); err != nil {
			return fmt.Errorf("%w: delete installments of %s: %w", model.ErrPersistence, id, err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM loans WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("%w: delete loan %s: %w", model.ErrPersistence, id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: loan %s", model.ErrNotFound, id)
		}
		return insertOutbox(ctx, tx, evts)
	})
}

func (r *LoanRepo) FindInstallment(ctx context.Context, id string) (model.Installment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id = $1`, id)
	rec, err := scanInstallment(row)
	if err != nil {
		if pgutil.IsNoRows(err) {
			return model.Installment{}, fmt.Errorf("%w: installment %s", model.ErrNotFound, id)
		}
		return model.Installment{}, fmt.Errorf("%w: find installment %s: %w", model.ErrPersistence, id, err)
	}
	return rec.ToModel(), nil
}

// SaveInstallment writes the paid flag and paid timestamp together with evts.
func (r *LoanRepo) SaveInstallment(ctx context.Context, inst model.Installment, evts ...event.DomainEvent) error {
	rec := persistence.InstallmentRecordFrom(inst)
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE installments SET paid = $2, paid_at = $3
			WHERE id = $1`,
			rec.ID, rec.Paid, rec.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("%w: save installment %s: %w", model.ErrPersistence, rec.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: installment %s", model.ErrNotFound, rec.ID)
		}
		return insertOutbox(ctx, tx, evts)
	})
}

// FindDueOn returns the unpaid installments due on the calendar date of day.
func (r *LoanRepo) FindDueOn(ctx context.Context, day time.Time) ([]model.DueInstallment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.loan_id, i.number, i.due_date, i.amount, i.paid, i.paid_at,
		       l.client_name, l.client_email, l.installment_count, l.currency
		FROM installments i
		JOIN loans l ON l.id = i.loan_id
		WHERE i.due_date = $1 AND i.paid = FALSE
		ORDER BY i.loan_id, i.number`,
		model.DateOf(day),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query due installments: %w", model.ErrPersistence, err)
	}
	defer rows.Close()

	var due []model.DueInstallment
	for rows.Next() {
		var (
			ir       persistence.InstallmentRecord
			d        model.DueInstallment
			currency string
		)
		if err := rows.Scan(
			&ir.ID, &ir.LoanID, &ir.Number, &ir.DueDate, &ir.Amount, &ir.Paid, &ir.PaidAt,
			&d.ClientName, &d.ClientEmail, &d.InstallmentCount, &currency,
		); err != nil {
			return nil, fmt.Errorf("%w: scan due installment: %w", model.ErrPersistence, err)
		}
		d.Installment = ir.ToModel()
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
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", model.ErrPersistence, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// internal helpers
// ---------------------------------------------------------------------------

// withTx wraps pgutil.WithTransaction so that begin and commit failures are tagged with
// model.ErrPersistence like every other store error.
func (r *LoanRepo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return persistence.Classify(pgutil.WithTransaction(ctx, r.pool, fn))
}

func (r *LoanRepo) missingOrStale(ctx context.Context, q pgutil.Querier, id string) error {
	var version int
	err := q.QueryRow(ctx, `SELECT version FROM loans WHERE id = $1`, id).Scan(&version)
	switch {
	case pgutil.IsNoRows(err):
		return fmt.Errorf("%w: loan %s", model.ErrNotFound, id)
	case err != nil:
		return fmt.Errorf("%w: check loan version %s: %w", model.ErrPersistence, id, err)
	default:
		return fmt.Errorf("%w: loan %s is at version %d", model.ErrConcurrentModification, id, version)
	}
}

func (r *LoanRepo) queryInstallments(ctx context.Context, query string, args ...any) ([]persistence.InstallmentRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query installments: %w", model.ErrPersistence, err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.InstallmentRecord, error) {
		return scanInstallment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan installments: %w", model.ErrPersistence, err)
	}
	return recs, nil
}

func scanLoan(row pgx.Row) (persistence.LoanRecord, error) {
	var rec persistence.LoanRecord
	err := row.Scan(
		&rec.ID, &rec.ClientName, &rec.ClientEmail, &rec.Principal, &rec.RatePercent, &rec.RateConvention,
		&rec.InstallmentCount, &rec.InstallmentAmount, &rec.Currency, &rec.StartDate,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func scanInstallment(row pgx.Row) (persistence.InstallmentRecord, error) {
	var rec persistence.InstallmentRecord
	err := row.Scan(&rec.ID, &rec.LoanID, &rec.Number, &rec.DueDate, &rec.Amount, &rec.Paid, &rec.PaidAt)
	return rec, err
}
