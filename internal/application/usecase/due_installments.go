package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// DueInstallmentsUseCase answers which unpaid installments fall due on a day. The answer
// is recomputed from the store on every call.
type DueInstallmentsUseCase struct {
	loanRepo port.LoanRepository
	clock    port.Clock
}

func NewDueInstallmentsUseCase(loanRepo port.LoanRepository, clock port.Clock) *DueInstallmentsUseCase {
	return &DueInstallmentsUseCase{loanRepo: loanRepo, clock: clock}
}

// Execute returns the installments due on req.AsOf, or today when AsOf is zero.
func (uc *DueInstallmentsUseCase) Execute(ctx context.Context, req dto.DueInstallmentsRequest) (dto.DueInstallmentsResponse, error) {
	due, err := uc.Due(ctx, req.AsOf)
	if err != nil {
		return dto.DueInstallmentsResponse{}, err
	}

	resp := dto.DueInstallmentsResponse{
		AsOf:  uc.day(req.AsOf),
		Items: make([]dto.DueInstallmentResponse, 0, len(due)),
	}
	for _, d := range due {
		resp.Items = append(resp.Items, toDueInstallmentResponse(d))
	}
	return resp, nil
}

// Due is the domain-level form of Execute used by the reminder sweep.
func (uc *DueInstallmentsUseCase) Due(ctx context.Context, asOf time.Time) ([]model.DueInstallment, error) {
	due, err := uc.loanRepo.FindDueOn(ctx, uc.day(asOf))
	if err != nil {
		return nil, fmt.Errorf("find due installments: %w", err)
	}
	return due, nil
}

func (uc *DueInstallmentsUseCase) day(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = uc.clock.Now()
	}
	return model.DateOf(asOf)
}
