// Package repotest holds the behaviour checks every port.LoanRepository must pass.
package repotest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
	"github.com/bibbank/loanbook/internal/domain/valueobject"
	"github.com/bibbank/loanbook/pkg/events"
	"github.com/bibbank/loanbook/pkg/money"
)

// Store is a loan repository that also owns the event outbox.
type Store interface {
	port.LoanRepository
	events.OutboxRepository
}

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) Store

var baseNow = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

// Run exercises repo semantics against a fresh store per subtest.
func Run(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("create and find round trip", func(t *testing.T) {
		repo := newRepo(t)
		loan := newLoan(t, "Maria Silva", baseNow)
		require.NoError(t, repo.Create(ctx, loan))

		got, err := repo.FindByID(ctx, loan.ID())
		require.NoError(t, err)

		assert.Equal(t, loan.ID(), got.ID())
		assert.Equal(t, "Maria Silva", got.ClientName())
		assert.Equal(t, "maria@example.com", got.ClientEmail())
		assert.True(t, got.Principal().Equal(decimal.NewFromInt(1000)))
		assert.True(t, got.Rate().Equal(loan.Rate()), "rate %s", got.Rate())
		assert.Equal(t, 12, got.InstallmentCount())
		assert.Equal(t, "88.85", got.InstallmentAmount().StringFixed(2))
		assert.Equal(t, money.BRL, got.Currency())
		assert.True(t, got.StartDate().Equal(model.DateOf(baseNow)))
		assert.Equal(t, 1, got.Version())

		insts := got.Installments()
		require.Len(t, insts, 12)
		for i, inst := range insts {
			assert.Equal(t, i+1, inst.Number())
			assert.Equal(t, loan.ID(), inst.LoanID())
			assert.Equal(t, "88.85", inst.Amount().StringFixed(2))
			assert.False(t, inst.Paid())
			want := model.DateOf(baseNow).AddDate(0, 0, 30*(i+1))
			assert.True(t, inst.DueDate().Equal(want), "installment %d due %s, want %s", i+1, inst.DueDate(), want)
		}
	})

	t.Run("create is all or nothing", func(t *testing.T) {
		repo := newRepo(t)
		start := model.DateOf(baseNow)
		amount := decimal.RequireFromString("88.85")
		broken := model.ReconstructLoan(
			"loan-broken", "Maria Silva", "maria@example.com", decimal.NewFromInt(1000), annual(12),
			2, amount, money.BRL, start,
			[]model.Installment{
				model.ReconstructInstallment("inst-a", "loan-broken", 1, model.DueDate(start, 1), amount, false, time.Time{}),
				model.ReconstructInstallment("inst-b", "loan-broken", 1, model.DueDate(start, 2), amount, false, time.Time{}),
			},
			1, baseNow, baseNow,
		)

		err := repo.Create(ctx, broken)
		require.ErrorIs(t, err, model.ErrPersistence)

		_, err = repo.FindByID(ctx, "loan-broken")
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = repo.FindInstallment(ctx, "inst-a")
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = repo.FindInstallment(ctx, "inst-b")
		assert.ErrorIs(t, err, model.ErrNotFound)

		loans, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, loans)
	})

	t.Run("find missing loan", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, "does-not-exist")
		assert.ErrorIs(t, err, model.ErrNotFound)

		_, err = repo.FindInstallment(ctx, "does-not-exist")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)
		older := newLoan(t, "Older", baseNow)
		newer := newLoan(t, "Newer", baseNow.Add(time.Hour))
		require.NoError(t, repo.Create(ctx, older))
		require.NoError(t, repo.Create(ctx, newer))

		loans, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, loans, 2)
		assert.Equal(t, newer.ID(), loans[0].ID())
		assert.Equal(t, older.ID(), loans[1].ID())
		assert.Len(t, loans[0].Installments(), 12)
	})

	t.Run("save installment", func(t *testing.T) {
		repo := newRepo(t)
		loan := newLoan(t, "Maria Silva", baseNow)
		require.NoError(t, repo.Create(ctx, loan))

		paidAt := baseNow.Add(48 * time.Hour)
		inst, changed := loan.Installments()[0].WithPaid(true, paidAt)
		require.True(t, changed)
		require.NoError(t, repo.SaveInstallment(ctx, inst))

		got, err := repo.FindInstallment(ctx, inst.ID())
		require.NoError(t, err)
		assert.True(t, got.Paid())
		assert.True(t, got.PaidAt().Equal(paidAt), "paid at %s", got.PaidAt())

		unpaid, _ := got.WithPaid(false, paidAt)
		require.NoError(t, repo.SaveInstallment(ctx, unpaid))
		got, err = repo.FindInstallment(ctx, inst.ID())
		require.NoError(t, err)
		assert.False(t, got.Paid())
		assert.True(t, got.PaidAt().IsZero())
	})

	t.Run("save unknown installment", func(t *testing.T) {
		repo := newRepo(t)
		ghost := model.ReconstructInstallment("ghost", "no-loan", 1, baseNow, decimal.NewFromInt(1), true, baseNow)
		assert.ErrorIs(t, repo.SaveInstallment(ctx, ghost), model.ErrNotFound)
	})

	t.Run("update terms keeps paid amounts", func(t *testing.T) {
		repo := newRepo(t)
		loan := newLoan(t, "Maria Silva", baseNow)
		require.NoError(t, repo.Create(ctx, loan))
		for _, inst := range loan.Installments()[:3] {
			paid, _ := inst.WithPaid(true, baseNow)
			require.NoError(t, repo.SaveInstallment(ctx, paid))
		}

		stored, err := repo.FindByID(ctx, loan.ID())
		require.NoError(t, err)
		updated, err := stored.UpdateTerms(decimal.NewFromInt(1000), annual(24), baseNow.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, repo.UpdateTerms(ctx, updated))

		got, err := repo.FindByID(ctx, loan.ID())
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version())
		assert.True(t, got.Rate().Percent().Equal(decimal.NewFromInt(24)))

		newAmount := updated.InstallmentAmount().StringFixed(2)
		assert.NotEqual(t, "88.85", newAmount)
		assert.Equal(t, newAmount, got.InstallmentAmount().StringFixed(2))
		for _, inst := range got.Installments() {
			if inst.Number() <= 3 {
				assert.True(t, inst.Paid())
				assert.Equal(t, "88.85", inst.Amount().StringFixed(2), "paid installment %d", inst.Number())
				continue
			}
			assert.Equal(t, newAmount, inst.Amount().StringFixed(2), "unpaid installment %d", inst.Number())
		}
	})

	t.Run("update terms rejects stale version", func(t *testing.T) {
		repo := newRepo(t)
		loan := newLoan(t, "Maria Silva", baseNow)
		require.NoError(t, repo.Create(ctx, loan))

		first, err := loan.UpdateTerms(decimal.NewFromInt(1200), annual(12), baseNow)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateTerms(ctx, first))

		second, err := loan.UpdateTerms(decimal.NewFromInt(900), annual(12), baseNow)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.UpdateTerms(ctx, second), model.ErrConcurrentModification)

		got, err := repo.FindByID(ctx, loan.ID())
		require.NoError(t, err)
		assert.True(t, got.Principal().Equal(decimal.NewFromInt(1200)))
	})

	t.Run("update terms of missing loan", func(t *testing.T) {
		repo := newRepo(t)
		loan := newLoan(t, "Maria Silva", baseNow)
		assert.ErrorIs(t, repo.UpdateTerms(ctx, loan), model.ErrNotFound)
	})

	t.Run("delete removes loan and installments", func(t *testing.T) {
		repo := newRepo(t)
		loan := newLoan(t, "Maria Silva", baseNow)
		keep := newLoan(t, "Joao Souza", baseNow)
		require.NoError(t, repo.Create(ctx, loan))
		require.NoError(t, repo.Create(ctx, keep))

		require.NoError(t, repo.Delete(ctx, loan.ID()))

		_, err := repo.FindByID(ctx, loan.ID())
		assert.ErrorIs(t, err, model.ErrNotFound)
		for _, inst := range loan.Installments() {
			_, err := repo.FindInstallment(ctx, inst.ID())
			assert.ErrorIs(t, err, model.ErrNotFound)
		}
		due, err := repo.FindDueOn(ctx, model.DueDate(model.DateOf(baseNow), 1))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, keep.ID(), due[0].Installment.LoanID())

		assert.ErrorIs(t, repo.Delete(ctx, loan.ID()), model.ErrNotFound)
	})

	t.Run("due on", func(t *testing.T) {
		repo := newRepo(t)
		loan := newLoan(t, "Maria Silva", baseNow)
		require.NoError(t, repo.Create(ctx, loan))

		due, err := repo.FindDueOn(ctx, baseNow.AddDate(0, 0, 31))
		require.NoError(t, err)
		assert.Empty(t, due)

		second := loan.Installments()[1]
		due, err = repo.FindDueOn(ctx, second.DueDate().Add(15*time.Hour))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, second.ID(), due[0].Installment.ID())
		assert.Equal(t, "Maria Silva", due[0].ClientName)
		assert.Equal(t, "maria@example.com", due[0].ClientEmail)
		assert.Equal(t, 12, due[0].InstallmentCount)
		assert.Equal(t, money.BRL, due[0].Currency)

		paid, _ := second.WithPaid(true, baseNow)
		require.NoError(t, repo.SaveInstallment(ctx, paid))
		due, err = repo.FindDueOn(ctx, second.DueDate())
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newRepo(t).Ping(ctx))
	})

	t.Run("writes record their events in the outbox", func(t *testing.T) {
		repo := newRepo(t)
		loan, err := model.NewLoan("Maria Silva", "maria@example.com", decimal.NewFromInt(1000), annual(12), 12, money.BRL, baseNow)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, loan))

		stored, err := repo.FindByID(ctx, loan.ID())
		require.NoError(t, err)
		repriced, err := stored.UpdateTerms(decimal.NewFromInt(1200), annual(12), baseNow)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateTerms(ctx, repriced))

		inst, _ := loan.Installments()[0].WithPaid(true, baseNow)
		require.NoError(t, repo.SaveInstallment(ctx, inst,
			event.NewInstallmentPaidChanged(inst.ID(), loan.ID(), 1, inst.Amount(), true, baseNow)))
		require.NoError(t, repo.Delete(ctx, loan.ID(), event.NewLoanDeleted(loan.ID(), baseNow)))

		entries, err := repo.FetchUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, event.TypeLoanCreated, entries[0].EventType)
		assert.Equal(t, event.TypeLoanTermsUpdated, entries[1].EventType)
		assert.Equal(t, event.TypeInstallmentPaidChanged, entries[2].EventType)
		assert.Equal(t, event.TypeLoanDeleted, entries[3].EventType)
		for _, e := range entries {
			assert.Equal(t, loan.ID(), e.PartitionKey)
		}
		assert.Equal(t, inst.ID(), entries[2].AggregateID)
		assert.Equal(t, "Installment", entries[2].AggregateType)

		var body map[string]any
		require.NoError(t, json.Unmarshal(entries[0].Payload, &body))
		assert.Equal(t, loan.ID(), body["aggregate_id"])
		assert.Equal(t, "Maria Silva", body["client_name"])

		firstTwo, err := repo.FetchUnpublished(ctx, 2)
		require.NoError(t, err)
		require.Len(t, firstTwo, 2)
		assert.Equal(t, entries[0].ID, firstTwo[0].ID)

		require.NoError(t, repo.MarkPublished(ctx, []string{entries[0].ID, entries[1].ID}, baseNow))
		rest, err := repo.FetchUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, rest, 2)
		assert.Equal(t, entries[2].ID, rest[0].ID)

		purged, err := repo.PurgePublished(ctx, baseNow)
		require.NoError(t, err)
		assert.Zero(t, purged)
		purged, err = repo.PurgePublished(ctx, baseNow.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), purged)

		rest, err = repo.FetchUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, rest, 2, "unpublished entries survive a purge")
	})

	t.Run("failed writes leave the outbox empty", func(t *testing.T) {
		repo := newRepo(t)
		loan := newLoan(t, "Maria Silva", baseNow)
		require.NoError(t, repo.Create(ctx, loan))

		err := repo.Delete(ctx, "missing", event.NewLoanDeleted("missing", baseNow))
		assert.ErrorIs(t, err, model.ErrNotFound)

		ghost := model.ReconstructInstallment("ghost", loan.ID(), 99, baseNow, decimal.NewFromInt(1), true, baseNow)
		err = repo.SaveInstallment(ctx, ghost, event.NewInstallmentPaidChanged("ghost", loan.ID(), 99, decimal.NewFromInt(1), true, baseNow))
		assert.ErrorIs(t, err, model.ErrNotFound)

		first, err := loan.UpdateTerms(decimal.NewFromInt(1200), annual(12), baseNow)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateTerms(ctx, first.ClearDomainEvents()))
		stale, err := loan.UpdateTerms(decimal.NewFromInt(900), annual(12), baseNow)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.UpdateTerms(ctx, stale), model.ErrConcurrentModification)

		entries, err := repo.FetchUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("store appends standalone entries", func(t *testing.T) {
		repo := newRepo(t)
		due := model.DueDate(model.DateOf(baseNow), 1)
		entries, err := events.NewOutboxEntries(
			event.NewInstallmentReminderSent("inst-1", "loan-1", 1, due, "maria@example.com", baseNow),
			event.NewInstallmentReminderSent("inst-2", "loan-2", 1, due, "joao@example.com", baseNow),
		)
		require.NoError(t, err)
		require.NoError(t, repo.Store(ctx, entries))

		got, err := repo.FetchUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, entries[0].ID, got[0].ID)
		assert.Equal(t, "loan-1", got[0].PartitionKey)
		assert.Equal(t, "loan-2", got[1].PartitionKey)
		assert.JSONEq(t, string(entries[1].Payload), string(got[1].Payload))
		assert.True(t, got[0].CreatedAt.Equal(baseNow), "created at %s", got[0].CreatedAt)
	})
}

func annual(pct float64) valueobject.InterestRate {
	return valueobject.MustInterestRate(pct, valueobject.RateConventionAnnual)
}

func newLoan(t *testing.T, name string, now time.Time) model.Loan {
	t.Helper()
	loan, err := model.NewLoan(name, "maria@example.com", decimal.NewFromInt(1000), annual(12), 12, money.BRL, now)
	require.NoError(t, err)
	return loan.ClearDomainEvents()
}
