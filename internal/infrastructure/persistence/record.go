// Package persistence holds the row shapes shared by the SQL loan repositories.
package persistence

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/valueobject"
	"github.com/bibbank/loanbook/pkg/money"
)

// LoanRecord is one row of the loans table.
type LoanRecord struct {
	ID                string
	ClientName        string
	ClientEmail       string
	Principal         decimal.Decimal
	RatePercent       decimal.Decimal
	RateConvention    string
	InstallmentCount  int
	InstallmentAmount decimal.Decimal
	Currency          string
	StartDate         time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// InstallmentRecord is one row of the installments table.
type InstallmentRecord struct {
	ID      string
	LoanID  string
	Number  int
	DueDate time.Time
	Amount  decimal.Decimal
	Paid    bool
	PaidAt  *time.Time
}

func LoanRecordFrom(l model.Loan) LoanRecord {
	return LoanRecord{
		ID:                l.ID(),
		ClientName:        l.ClientName(),
		ClientEmail:       l.ClientEmail(),
		Principal:         l.Principal(),
		RatePercent:       l.Rate().Percent(),
		RateConvention:    l.Rate().Convention().String(),
		InstallmentCount:  l.InstallmentCount(),
		InstallmentAmount: l.InstallmentAmount(),
		Currency:          l.Currency().Code(),
		StartDate:         l.StartDate(),
		Version:           l.Version(),
		CreatedAt:         l.CreatedAt(),
		UpdatedAt:         l.UpdatedAt(),
	}
}

func InstallmentRecordFrom(i model.Installment) InstallmentRecord {
	rec := InstallmentRecord{
		ID:      i.ID(),
		LoanID:  i.LoanID(),
		Number:  i.Number(),
		DueDate: i.DueDate(),
		Amount:  i.Amount(),
		Paid:    i.Paid(),
	}
	if i.Paid() && !i.PaidAt().IsZero() {
		paidAt := i.PaidAt()
		rec.PaidAt = &paidAt
	}
	return rec
}

// ToModel rebuilds the aggregate with the given installments.
func (r LoanRecord) ToModel(installments []model.Installment) (model.Loan, error) {
	conv, err := valueobject.NewRateConvention(r.RateConvention)
	if err != nil {
		return model.Loan{}, fmt.Errorf("%w: loan %s: %w", model.ErrPersistence, r.ID, err)
	}
	rate, err := valueobject.NewInterestRate(r.RatePercent, conv)
	if err != nil {
		return model.Loan{}, fmt.Errorf("%w: loan %s: %w", model.ErrPersistence, r.ID, err)
	}
	currency, err := ParseCurrency(r.Currency)
	if err != nil {
		return model.Loan{}, err
	}

	return model.ReconstructLoan(
		r.ID, r.ClientName, r.ClientEmail, r.Principal, rate,
		r.InstallmentCount, r.InstallmentAmount, currency, r.StartDate,
		installments, r.Version, r.CreatedAt, r.UpdatedAt,
	), nil
}

func (r InstallmentRecord) ToModel() model.Installment {
	var paidAt time.Time
	if r.PaidAt != nil {
		paidAt = *r.PaidAt
	}
	return model.ReconstructInstallment(r.ID, r.LoanID, r.Number, r.DueDate, r.Amount, r.Paid, paidAt)
}

// ParseCurrency reads a stored currency code.
func ParseCurrency(code string) (money.Currency, error) {
	c, err := money.NewCurrency(code)
	if err != nil {
		return money.Currency{}, fmt.Errorf("%w: stored currency: %w", model.ErrPersistence, err)
	}
	return c, nil
}

// GroupByLoan converts rows ordered by loan and number into per-loan installment lists.
func GroupByLoan(rows []InstallmentRecord) map[string][]model.Installment {
	out := make(map[string][]model.Installment)
	for _, r := range rows {
		out[r.LoanID] = append(out[r.LoanID], r.ToModel())
	}
	return out
}
