package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bibbank/loanbook/internal/application/usecase"
	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
	"github.com/bibbank/loanbook/internal/domain/valueobject"
	"github.com/bibbank/loanbook/pkg/money"
)

// --- Mock implementations ---

// mockLoanRepository is an in-memory store. Func fields override individual methods.
type mockLoanRepository struct {
	mu    sync.Mutex
	loans map[string]model.Loan

	createFunc          func(ctx context.Context, loan model.Loan) error
	updateTermsFunc     func(ctx context.Context, loan model.Loan) error
	saveInstallmentFunc func(ctx context.Context, inst model.Installment) error
	findDueOnFunc       func(ctx context.Context, day time.Time) ([]model.DueInstallment, error)

	createCalls          int
	saveInstallmentCalls int
	// recorded holds the events committed with each successful write, like the outbox.
	recorded []event.DomainEvent
}

func newMockLoanRepository() *mockLoanRepository {
	return &mockLoanRepository{loans: make(map[string]model.Loan)}
}

func (m *mockLoanRepository) Create(ctx context.Context, loan model.Loan) error {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.createFunc != nil {
		return m.createFunc(ctx, loan)
	}
	m.put(loan)
	m.record(loan.DomainEvents()...)
	return nil
}

func (m *mockLoanRepository) UpdateTerms(ctx context.Context, loan model.Loan) error {
	if m.updateTermsFunc != nil {
		return m.updateTermsFunc(ctx, loan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.loans[loan.ID()]
	if !ok {
		return model.ErrNotFound
	}
	if stored.Version() != loan.Version() {
		return model.ErrConcurrentModification
	}
	m.loans[loan.ID()] = rebuild(loan, loan.Installments(), loan.Version()+1)
	m.recorded = append(m.recorded, loan.DomainEvents()...)
	return nil
}

func (m *mockLoanRepository) FindByID(_ context.Context, id string) (model.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok {
		return model.Loan{}, model.ErrNotFound
	}
	return loan, nil
}

func (m *mockLoanRepository) List(_ context.Context) ([]model.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Loan, 0, len(m.loans))
	for _, l := range m.loans {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientName() < out[j].ClientName() })
	return out, nil
}

func (m *mockLoanRepository) Delete(_ context.Context, id string, evts ...event.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.loans, id)
	m.recorded = append(m.recorded, evts...)
	return nil
}

func (m *mockLoanRepository) FindInstallment(_ context.Context, id string) (model.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loans {
		if inst, ok := l.Installment(id); ok {
			return inst, nil
		}
	}
	return model.Installment{}, model.ErrNotFound
}

func (m *mockLoanRepository) SaveInstallment(ctx context.Context, inst model.Installment, evts ...event.DomainEvent) error {
	m.mu.Lock()
	m.saveInstallmentCalls++
	m.mu.Unlock()
	if m.saveInstallmentFunc != nil {
		return m.saveInstallmentFunc(ctx, inst)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[inst.LoanID()]
	if !ok {
		return model.ErrNotFound
	}
	insts := loan.Installments()
	for i := range insts {
		if insts[i].ID() == inst.ID() {
			insts[i] = inst
		}
	}
	m.loans[loan.ID()] = rebuild(loan, insts, loan.Version())
	m.recorded = append(m.recorded, evts...)
	return nil
}

func (m *mockLoanRepository) FindDueOn(ctx context.Context, day time.Time) ([]model.DueInstallment, error) {
	if m.findDueOnFunc != nil {
		return m.findDueOnFunc(ctx, day)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []model.DueInstallment
	for _, l := range m.loans {
		for _, inst := range l.Installments() {
			if inst.IsDueOn(day) {
				due = append(due, model.DueInstallment{
					Installment:      inst,
					ClientName:       l.ClientName(),
					ClientEmail:      l.ClientEmail(),
					InstallmentCount: l.InstallmentCount(),
					Currency:         l.Currency(),
				})
			}
		}
	}
	return due, nil
}

func (m *mockLoanRepository) Ping(context.Context) error { return nil }

func (m *mockLoanRepository) put(loan model.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID()] = loan.ClearDomainEvents()
}

func (m *mockLoanRepository) record(evts ...event.DomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, evts...)
}

// recordedSince returns the events recorded after the first skip ones.
func (m *mockLoanRepository) recordedSince(skip int) []event.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]event.DomainEvent(nil), m.recorded[skip:]...)
}

func rebuild(l model.Loan, insts []model.Installment, version int) model.Loan {
	return model.ReconstructLoan(
		l.ID(), l.ClientName(), l.ClientEmail(), l.Principal(), l.Rate(),
		l.InstallmentCount(), l.InstallmentAmount(), l.Currency(), l.StartDate(),
		insts, version, l.CreatedAt(), l.UpdatedAt(),
	)
}

type mockNotifier struct {
	sendFunc func(ctx context.Context, n port.Notification) error
	sent     []port.Notification
}

func (m *mockNotifier) Send(ctx context.Context, n port.Notification) error {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, n)
	}
	m.sent = append(m.sent, n)
	return nil
}

type mockRenderer struct {
	renderFunc func(ctx context.Context, loan model.Loan) ([]byte, error)
}

func (m *mockRenderer) Render(ctx context.Context, loan model.Loan) ([]byte, error) {
	if m.renderFunc != nil {
		return m.renderFunc(ctx, loan)
	}
	return []byte("%PDF-1.3 " + loan.ID()), nil
}

type mockQuoteCache struct {
	getFunc func(ctx context.Context, key string) (model.Quote, bool, error)
	setFunc func(ctx context.Context, key string, q model.Quote) error
	entries map[string]model.Quote
}

func (m *mockQuoteCache) Get(ctx context.Context, key string) (model.Quote, bool, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, key)
	}
	q, ok := m.entries[key]
	return q, ok, nil
}

func (m *mockQuoteCache) Set(ctx context.Context, key string, q model.Quote) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, key, q)
	}
	if m.entries == nil {
		m.entries = make(map[string]model.Quote)
	}
	m.entries[key] = q
	return nil
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

// --- Helpers ---

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

var testDefaults = usecase.LoanDefaults{
	RateConvention: valueobject.RateConventionAnnual,
	Currency:       money.BRL,
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func annual(pct float64) valueobject.InterestRate {
	return valueobject.MustInterestRate(pct, valueobject.RateConventionAnnual)
}
