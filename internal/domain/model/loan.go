package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/valueobject"
	"github.com/bibbank/loanbook/pkg/money"
)

// ---------------------------------------------------------------------------
// Loan aggregate root
// ---------------------------------------------------------------------------

// Loan is an immutable aggregate owning its installments. Mutations return a new copy.
type Loan struct {
	id                string
	clientName        string
	clientEmail       string
	principal         decimal.Decimal
	rate              valueobject.InterestRate
	installmentCount  int
	installmentAmount decimal.Decimal
	currency          money.Currency
	startDate         time.Time
	installments      []Installment
	version           int
	createdAt         time.Time
	updatedAt         time.Time
	domainEvents      []event.DomainEvent
}

// NewLoan prices the loan and lays out installmentCount installments, the first due
// InstallmentPeriodDays after the calendar date of now.
func NewLoan(
	clientName, clientEmail string,
	principal decimal.Decimal,
	rate valueobject.InterestRate,
	installmentCount int,
	currency money.Currency,
	now time.Time,
) (Loan, error) {
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return Loan{}, fmt.Errorf("%w: client name is required", ErrInvalidLoanParameters)
	}
	email, err := normalizeEmail(clientEmail)
	if err != nil {
		return Loan{}, err
	}
	if !principal.IsPositive() {
		return Loan{}, fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidLoanParameters, principal)
	}
	if installmentCount <= 0 {
		return Loan{}, fmt.Errorf("%w: installment count must be positive, got %d", ErrInvalidLoanParameters, installmentCount)
	}
	if installmentCount > MaxInstallments {
		return Loan{}, fmt.Errorf("%w: installment count must not exceed %d, got %d",
			ErrInvalidLoanParameters, MaxInstallments, installmentCount)
	}
	if currency.IsZero() {
		return Loan{}, fmt.Errorf("%w: currency is required", ErrInvalidLoanParameters)
	}

	quote, err := ComputeSchedule(ScheduleTerms{Principal: principal, Rate: rate, Installments: installmentCount})
	if err != nil {
		return Loan{}, err
	}

	id := uuid.New().String()
	start := DateOf(now)
	plan := BuildInstallmentPlan(quote, start)

	installments := make([]Installment, 0, len(plan))
	for _, p := range plan {
		installments = append(installments, Installment{
			id:      uuid.New().String(),
			loanID:  id,
			number:  p.Number,
			dueDate: p.DueDate,
			amount:  p.Amount,
		})
	}

	loan := Loan{
		id:                id,
		clientName:        clientName,
		clientEmail:       email,
		principal:         principal,
		rate:              rate,
		installmentCount:  installmentCount,
		installmentAmount: quote.InstallmentAmount(),
		currency:          currency,
		startDate:         start,
		installments:      installments,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}

	loan.domainEvents = append(loan.domainEvents, event.NewLoanCreated(
		id, clientName, principal, rate.Percent(), rate.Convention().String(),
		installmentCount, loan.installmentAmount, currency.Code(), start, now,
	))

	return loan, nil
}

// ReconstructLoan rebuilds a Loan aggregate from persistence.
func ReconstructLoan(
	id, clientName, clientEmail string,
	principal decimal.Decimal,
	rate valueobject.InterestRate,
	installmentCount int,
	installmentAmount decimal.Decimal,
	currency money.Currency,
	startDate time.Time,
	installments []Installment,
	version int,
	createdAt, updatedAt time.Time,
) Loan {
	return Loan{
		id:                id,
		clientName:        clientName,
		clientEmail:       clientEmail,
		principal:         principal,
		rate:              rate,
		installmentCount:  installmentCount,
		installmentAmount: installmentAmount,
		currency:          currency,
		startDate:         DateOf(startDate),
		installments:      installments,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ---------------------------------------------------------------------------
// Behaviour
// ---------------------------------------------------------------------------

// UpdateTerms reprices the loan with a new principal and rate. The installment count is
// kept; unpaid installments take the new amount and paid ones keep theirs.
func (l Loan) UpdateTerms(principal decimal.Decimal, rate valueobject.InterestRate, now time.Time) (Loan, error) {
	if !principal.IsPositive() {
		return Loan{}, fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidLoanParameters, principal)
	}
	quote, err := ComputeSchedule(ScheduleTerms{Principal: principal, Rate: rate, Installments: l.installmentCount})
	if err != nil {
		return Loan{}, err
	}
	amount := quote.InstallmentAmount()

	installments := make([]Installment, len(l.installments))
	repriced := 0
	for i, inst := range l.installments {
		if !inst.paid {
			inst = inst.withAmount(amount)
			repriced++
		}
		installments[i] = inst
	}

	l.principal = principal
	l.rate = rate
	l.installmentAmount = amount
	l.installments = installments
	l.updatedAt = now
	l.domainEvents = append(l.copyEvents(), event.NewLoanTermsUpdated(
		l.id, principal, rate.Percent(), rate.Convention().String(), amount, repriced, now,
	))

	return l, nil
}

// Installment finds an installment of this loan by id.
func (l Loan) Installment(id string) (Installment, bool) {
	for _, inst := range l.installments {
		if inst.id == id {
			return inst, true
		}
	}
	return Installment{}, false
}

// LoanSummary aggregates the installment book of a loan.
type LoanSummary struct {
	TotalPaid      money.Money
	TotalRemaining money.Money
	PaidCount      int
	PendingCount   int
}

// Summary totals paid and still-open installments.
func (l Loan) Summary() LoanSummary {
	paid, remaining := decimal.Zero, decimal.Zero
	s := LoanSummary{}
	for _, inst := range l.installments {
		if inst.paid {
			paid = paid.Add(inst.amount)
			s.PaidCount++
		} else {
			remaining = remaining.Add(inst.amount)
			s.PendingCount++
		}
	}
	s.TotalPaid = money.New(paid, l.currency)
	s.TotalRemaining = money.New(remaining, l.currency)
	return s
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (l Loan) ID() string { return l.id }
func (l Loan) ClientName() string { return l.clientName }
func (l Loan) ClientEmail() string { return l.clientEmail }
func (l Loan) Principal() decimal.Decimal { return l.principal }
func (l Loan) Rate() valueobject.InterestRate { return l.rate }
func (l Loan) InstallmentCount() int { return l.installmentCount }
func (l Loan) InstallmentAmount() decimal.Decimal { return l.installmentAmount }
func (l Loan) Currency() money.Currency { return l.currency }
func (l Loan) StartDate() time.Time { return l.startDate }
func (l Loan) Version() int { return l.version }
func (l Loan) CreatedAt() time.Time { return l.createdAt }
func (l Loan) UpdatedAt() time.Time { return l.updatedAt }

// Installments returns a copy ordered by number.
func (l Loan) Installments() []Installment {
	out := make([]Installment, len(l.installments))
	copy(out, l.installments)
	return out
}

// DomainEvents returns events raised since the aggregate was loaded.
func (l Loan) DomainEvents() []event.DomainEvent { return l.copyEvents() }

// ClearDomainEvents returns a copy without pending events.
func (l Loan) ClearDomainEvents() Loan {
	l.domainEvents = nil
	return l
}

func (l Loan) copyEvents() []event.DomainEvent {
	out := make([]event.DomainEvent, len(l.domainEvents))
	copy(out, l.domainEvents)
	return out
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: client email %q: %v", ErrInvalidLoanParameters, raw, err)
	}
	return addr.Address, nil
}
