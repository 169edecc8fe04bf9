package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/application/usecase"
	"github.com/bibbank/loanbook/internal/domain/model"
)

func TestGetLoanUseCase_Execute(t *testing.T) {
	t.Run("returns summary of paid and remaining", func(t *testing.T) {
		repo := newMockLoanRepository()
		seeded := seedLoan(t, repo, 2)

		resp, err := usecase.NewGetLoanUseCase(repo).Execute(context.Background(), dto.GetLoanRequest{LoanID: seeded.ID})
		require.NoError(t, err)

		assert.Equal(t, "Maria Silva", resp.ClientName)
		assert.Equal(t, "177.70", resp.Summary.TotalPaid.StringFixed(2))
		assert.Equal(t, "888.50", resp.Summary.TotalRemaining.StringFixed(2))
		assert.Equal(t, 2, resp.Summary.PaidCount)
		assert.Equal(t, 10, resp.Summary.PendingCount)
		require.Len(t, resp.Installments, 12)
		assert.Equal(t, "PAID", resp.Installments[0].Status)
		require.NotNil(t, resp.Installments[0].PaidAt)
		assert.Equal(t, "PENDING", resp.Installments[2].Status)
		assert.Nil(t, resp.Installments[2].PaidAt)
	})

	t.Run("unknown loan", func(t *testing.T) {
		_, err := usecase.NewGetLoanUseCase(newMockLoanRepository()).
			Execute(context.Background(), dto.GetLoanRequest{LoanID: "missing"})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

type failingListRepo struct {
	*mockLoanRepository
	err error
}

func (r failingListRepo) List(context.Context) ([]model.Loan, error) { return nil, r.err }

func TestListLoansUseCase_Execute(t *testing.T) {
	t.Run("lists every loan", func(t *testing.T) {
		repo := newMockLoanRepository()
		seedLoan(t, repo, 0)
		seedLoan(t, repo, 1)

		resp, err := usecase.NewListLoansUseCase(repo).Execute(context.Background(), dto.ListLoansRequest{})
		require.NoError(t, err)
		require.Len(t, resp.Loans, 2)

		paid := 0
		for _, l := range resp.Loans {
			paid += l.Summary.PaidCount
		}
		assert.Equal(t, 1, paid)
	})

	t.Run("empty store", func(t *testing.T) {
		resp, err := usecase.NewListLoansUseCase(newMockLoanRepository()).Execute(context.Background(), dto.ListLoansRequest{})
		require.NoError(t, err)
		assert.Empty(t, resp.Loans)
	})

	t.Run("store failure", func(t *testing.T) {
		repo := failingListRepo{mockLoanRepository: newMockLoanRepository(), err: errors.Join(model.ErrPersistence, errors.New("timeout"))}
		_, err := usecase.NewListLoansUseCase(repo).Execute(context.Background(), dto.ListLoansRequest{})
		assert.ErrorIs(t, err, model.ErrPersistence)
	})
}
