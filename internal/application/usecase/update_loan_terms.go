package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// UpdateLoanTermsUseCase changes principal and rate of an existing loan and reprices its
// unpaid installments.
type UpdateLoanTermsUseCase struct {
	loanRepo port.LoanRepository
	clock    port.Clock
	logger   *slog.Logger
}

func NewUpdateLoanTermsUseCase(
	loanRepo port.LoanRepository,
	clock port.Clock,
	logger *slog.Logger,
) *UpdateLoanTermsUseCase {
	return &UpdateLoanTermsUseCase{
		loanRepo: loanRepo,
		clock:    clock,
		logger:   logger,
	}
}

func (uc *UpdateLoanTermsUseCase) Execute(ctx context.Context, req dto.UpdateLoanTermsRequest) (dto.LoanResponse, error) {
	if !req.Principal.IsPositive() {
		return dto.LoanResponse{}, fmt.Errorf("validate terms: %w: principal must be positive, got %s",
			model.ErrInvalidLoanParameters, req.Principal)
	}
	if req.RatePercent.IsNegative() {
		return dto.LoanResponse{}, fmt.Errorf("validate terms: %w: rate must not be negative, got %s",
			model.ErrInvalidLoanParameters, req.RatePercent)
	}

	loan, err := uc.loanRepo.FindByID(ctx, req.LoanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find loan: %w", err)
	}

	convention := req.RateConvention
	if strings.TrimSpace(convention) == "" {
		convention = loan.Rate().Convention().String()
	}
	rate, err := LoanDefaults{}.rate(req.RatePercent, convention)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("parse rate: %w", err)
	}

	loan, err = loan.UpdateTerms(req.Principal, rate, uc.clock.Now())
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("update terms: %w", err)
	}

	if err := uc.loanRepo.UpdateTerms(ctx, loan); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("save loan terms: %w", err)
	}

	// Re-read so installments paid concurrently are reported with their frozen amounts.
	saved, err := uc.loanRepo.FindByID(ctx, loan.ID())
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("reload loan: %w", err)
	}

	uc.logger.InfoContext(ctx, "loan terms updated",
		"loan_id", loan.ID(),
		"installment_amount", loan.InstallmentAmount().StringFixed(2),
	)

	return toLoanResponse(saved), nil
}
