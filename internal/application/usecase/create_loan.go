package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// CreateLoanUseCase records a loan and its full installment schedule.
type CreateLoanUseCase struct {
	loanRepo port.LoanRepository
	clock    port.Clock
	defaults LoanDefaults
	logger   *slog.Logger
}

func NewCreateLoanUseCase(
	loanRepo port.LoanRepository,
	clock port.Clock,
	defaults LoanDefaults,
	logger *slog.Logger,
) *CreateLoanUseCase {
	return &CreateLoanUseCase{
		loanRepo: loanRepo,
		clock:    clock,
		defaults: defaults,
		logger:   logger,
	}
}

// Execute validates the request, prices the loan and persists it with its installments and
// its LoanCreated event in one transaction. Validation errors are returned before the
// repository is touched.
func (uc *CreateLoanUseCase) Execute(ctx context.Context, req dto.CreateLoanRequest) (dto.LoanResponse, error) {
	rate, err := uc.defaults.rate(req.RatePercent, req.RateConvention)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("parse rate: %w", err)
	}
	currency, err := uc.defaults.currency(req.Currency)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("parse currency: %w", err)
	}

	loan, err := model.NewLoan(
		req.ClientName, req.ClientEmail,
		req.Principal, rate, req.InstallmentCount,
		currency, uc.clock.Now(),
	)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("create loan: %w", err)
	}

	if err := uc.loanRepo.Create(ctx, loan); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("save loan: %w", err)
	}

	uc.logger.InfoContext(ctx, "loan created",
		"loan_id", loan.ID(),
		"installments", loan.InstallmentCount(),
		"installment_amount", loan.InstallmentAmount().StringFixed(2),
	)

	return toLoanResponse(loan), nil
}
