package usecase

import (
	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/model"
)

func toLoanResponse(loan model.Loan) dto.LoanResponse {
	insts := loan.Installments()
	items := make([]dto.InstallmentResponse, 0, len(insts))
	for _, inst := range insts {
		items = append(items, toInstallmentResponse(inst))
	}
	summary := loan.Summary()

	return dto.LoanResponse{
		ID:                loan.ID(),
		ClientName:        loan.ClientName(),
		ClientEmail:       loan.ClientEmail(),
		Principal:         loan.Principal(),
		RatePercent:       loan.Rate().Percent(),
		RateConvention:    loan.Rate().Convention().String(),
		InstallmentCount:  loan.InstallmentCount(),
		InstallmentAmount: loan.InstallmentAmount(),
		Currency:          loan.Currency().Code(),
		StartDate:         loan.StartDate(),
		Version:           loan.Version(),
		CreatedAt:         loan.CreatedAt(),
		UpdatedAt:         loan.UpdatedAt(),
		Summary: dto.LoanSummaryResponse{
			TotalPaid:      summary.TotalPaid.Amount(),
			TotalRemaining: summary.TotalRemaining.Amount(),
			PaidCount:      summary.PaidCount,
			PendingCount:   summary.PendingCount,
		},
		Installments: items,
	}
}

func toInstallmentResponse(inst model.Installment) dto.InstallmentResponse {
	resp := dto.InstallmentResponse{
		ID:      inst.ID(),
		LoanID:  inst.LoanID(),
		Number:  inst.Number(),
		DueDate: inst.DueDate(),
		Amount:  inst.Amount(),
		Paid:    inst.Paid(),
		Status:  inst.Status().String(),
	}
	if inst.Paid() && !inst.PaidAt().IsZero() {
		paidAt := inst.PaidAt()
		resp.PaidAt = &paidAt
	}
	return resp
}

func toDueInstallmentResponse(d model.DueInstallment) dto.DueInstallmentResponse {
	return dto.DueInstallmentResponse{
		InstallmentID:    d.Installment.ID(),
		LoanID:           d.Installment.LoanID(),
		Number:           d.Installment.Number(),
		InstallmentCount: d.InstallmentCount,
		DueDate:          d.Installment.DueDate(),
		Amount:           d.Installment.Amount(),
		Currency:         d.Currency.Code(),
		ClientName:       d.ClientName,
		ClientEmail:      d.ClientEmail,
	}
}
