package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/application/usecase"
	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
)

func TestSetInstallmentPaidUseCase_Execute(t *testing.T) {
	t.Run("marks paid without recomputing", func(t *testing.T) {
		repo := newMockLoanRepository()
		loan := seedLoan(t, repo, 0)
		before := len(repo.recorded)
		uc := usecase.NewSetInstallmentPaidUseCase(repo, &fixedClock{now: testNow}, discardLogger())

		target := loan.Installments[4]
		resp, err := uc.Execute(context.Background(), dto.SetInstallmentPaidRequest{InstallmentID: target.ID, Paid: true})
		require.NoError(t, err)

		assert.True(t, resp.Changed)
		assert.True(t, resp.Installment.Paid)
		assert.Equal(t, "PAID", resp.Installment.Status)
		require.NotNil(t, resp.Installment.PaidAt)
		assert.Equal(t, testNow, *resp.Installment.PaidAt)
		assert.True(t, resp.Installment.Amount.Equal(target.Amount))

		recorded := repo.recordedSince(before)
		require.Len(t, recorded, 1)
		assert.Equal(t, event.TypeInstallmentPaidChanged, recorded[0].EventType())
		assert.Equal(t, target.ID, recorded[0].AggregateID())
	})

	t.Run("same value twice writes once", func(t *testing.T) {
		repo := newMockLoanRepository()
		loan := seedLoan(t, repo, 0)
		before := len(repo.recorded)
		uc := usecase.NewSetInstallmentPaidUseCase(repo, &fixedClock{now: testNow}, discardLogger())
		req := dto.SetInstallmentPaidRequest{InstallmentID: loan.Installments[0].ID, Paid: true}

		_, err := uc.Execute(context.Background(), req)
		require.NoError(t, err)
		second, err := uc.Execute(context.Background(), req)
		require.NoError(t, err)

		assert.False(t, second.Changed)
		assert.True(t, second.Installment.Paid)
		assert.Equal(t, 1, repo.saveInstallmentCalls)
		assert.Len(t, repo.recordedSince(before), 1)
	})

	t.Run("unmark clears paid timestamp", func(t *testing.T) {
		repo := newMockLoanRepository()
		loan := seedLoan(t, repo, 1)
		uc := usecase.NewSetInstallmentPaidUseCase(repo, &fixedClock{now: testNow}, discardLogger())

		resp, err := uc.Execute(context.Background(), dto.SetInstallmentPaidRequest{InstallmentID: loan.Installments[0].ID, Paid: false})
		require.NoError(t, err)
		assert.True(t, resp.Changed)
		assert.Nil(t, resp.Installment.PaidAt)
	})

	t.Run("unknown installment", func(t *testing.T) {
		uc := usecase.NewSetInstallmentPaidUseCase(newMockLoanRepository(), &fixedClock{now: testNow}, discardLogger())
		_, err := uc.Execute(context.Background(), dto.SetInstallmentPaidRequest{InstallmentID: "nope", Paid: true})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}
