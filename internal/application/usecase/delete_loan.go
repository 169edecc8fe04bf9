package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// DeleteLoanUseCase irreversibly removes a loan and all of its installments.
type DeleteLoanUseCase struct {
	loanRepo port.LoanRepository
	clock    port.Clock
	logger   *slog.Logger
}

func NewDeleteLoanUseCase(
	loanRepo port.LoanRepository,
	clock port.Clock,
	logger *slog.Logger,
) *DeleteLoanUseCase {
	return &DeleteLoanUseCase{
		loanRepo: loanRepo,
		clock:    clock,
		logger:   logger,
	}
}

func (uc *DeleteLoanUseCase) Execute(ctx context.Context, req dto.DeleteLoanRequest) (dto.DeleteLoanResponse, error) {
	deleted := event.NewLoanDeleted(req.LoanID, uc.clock.Now())
	if err := uc.loanRepo.Delete(ctx, req.LoanID, deleted); err != nil {
		return dto.DeleteLoanResponse{}, fmt.Errorf("delete loan: %w", err)
	}

	uc.logger.InfoContext(ctx, "loan deleted", "loan_id", req.LoanID)

	return dto.DeleteLoanResponse{LoanID: req.LoanID}, nil
}
