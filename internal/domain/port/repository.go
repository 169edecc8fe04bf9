package port

import (
	"context"
	"time"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
)

// LoanRepository persists loans together with their installments. Each write is one
// transaction that also appends the change's domain events to the outbox. Missing rows
// surface as model.ErrNotFound, stale versions as model.ErrConcurrentModification and
// store failures as model.ErrPersistence.
type LoanRepository interface {
	// Create inserts the loan, all of its installments and loan.DomainEvents() atomically.
	Create(ctx context.Context, loan model.Loan) error
	// UpdateTerms writes principal, rate and installment amount, guarded by the loaded
	// version, and reprices every installment that is still unpaid in the store.
	// loan.DomainEvents() are recorded with the change.
	UpdateTerms(ctx context.Context, loan model.Loan) error
	FindByID(ctx context.Context, id string) (model.Loan, error)
	// List returns every loan, newest first.
	List(ctx context.Context) ([]model.Loan, error)
	// Delete removes the installments and then the loan.
	Delete(ctx context.Context, id string, evts ...event.DomainEvent) error

	FindInstallment(ctx context.Context, id string) (model.Installment, error)
	// SaveInstallment writes the paid flag and paid timestamp of one installment.
	SaveInstallment(ctx context.Context, inst model.Installment, evts ...event.DomainEvent) error
	// FindDueOn returns unpaid installments due on the calendar date of day, ordered by
	// loan and number.
	FindDueOn(ctx context.Context, day time.Time) ([]model.DueInstallment, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
