package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// GetLoanUseCase retrieves a single loan with its installments and totals.
type GetLoanUseCase struct {
	loanRepo port.LoanRepository
}

func NewGetLoanUseCase(loanRepo port.LoanRepository) *GetLoanUseCase {
	return &GetLoanUseCase{loanRepo: loanRepo}
}

func (uc *GetLoanUseCase) Execute(ctx context.Context, req dto.GetLoanRequest) (dto.LoanResponse, error) {
	loan, err := uc.loanRepo.FindByID(ctx, req.LoanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find loan: %w", err)
	}
	return toLoanResponse(loan), nil
}

// ListLoansUseCase lists every loan with paid and remaining totals.
type ListLoansUseCase struct {
	loanRepo port.LoanRepository
}

func NewListLoansUseCase(loanRepo port.LoanRepository) *ListLoansUseCase {
	return &ListLoansUseCase{loanRepo: loanRepo}
}

func (uc *ListLoansUseCase) Execute(ctx context.Context, _ dto.ListLoansRequest) (dto.ListLoansResponse, error) {
	loans, err := uc.loanRepo.List(ctx)
	if err != nil {
		return dto.ListLoansResponse{}, fmt.Errorf("list loans: %w", err)
	}

	resp := dto.ListLoansResponse{Loans: make([]dto.LoanResponse, 0, len(loans))}
	for _, loan := range loans {
		resp.Loans = append(resp.Loans, toLoanResponse(loan))
	}
	return resp, nil
}
