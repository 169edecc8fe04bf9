package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// SetInstallmentPaidUseCase flips the paid flag of one installment. Amounts are never
// recomputed. Setting the flag to its current value writes nothing.
type SetInstallmentPaidUseCase struct {
	loanRepo port.LoanRepository
	clock    port.Clock
	logger   *slog.Logger
}

func NewSetInstallmentPaidUseCase(
	loanRepo port.LoanRepository,
	clock port.Clock,
	logger *slog.Logger,
) *SetInstallmentPaidUseCase {
	return &SetInstallmentPaidUseCase{
		loanRepo: loanRepo,
		clock:    clock,
		logger:   logger,
	}
}

func (uc *SetInstallmentPaidUseCase) Execute(ctx context.Context, req dto.SetInstallmentPaidRequest) (dto.SetInstallmentPaidResponse, error) {
	inst, err := uc.loanRepo.FindInstallment(ctx, req.InstallmentID)
	if err != nil {
		return dto.SetInstallmentPaidResponse{}, fmt.Errorf("find installment: %w", err)
	}

	now := uc.clock.Now()
	inst, changed := inst.WithPaid(req.Paid, now)
	if !changed {
		return dto.SetInstallmentPaidResponse{Installment: toInstallmentResponse(inst)}, nil
	}

	changedEvt := event.NewInstallmentPaidChanged(
		inst.ID(), inst.LoanID(), inst.Number(), inst.Amount(), inst.Paid(), now,
	)
	if err := uc.loanRepo.SaveInstallment(ctx, inst, changedEvt); err != nil {
		return dto.SetInstallmentPaidResponse{}, fmt.Errorf("save installment: %w", err)
	}

	uc.logger.InfoContext(ctx, "installment paid flag changed",
		"installment_id", inst.ID(),
		"loan_id", inst.LoanID(),
		"paid", inst.Paid(),
	)

	return dto.SetInstallmentPaidResponse{Installment: toInstallmentResponse(inst), Changed: true}, nil
}
