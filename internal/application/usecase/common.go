package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/valueobject"
	"github.com/bibbank/loanbook/pkg/money"
)

// LoanDefaults fills in what a request leaves blank.
type LoanDefaults struct {
	RateConvention valueobject.RateConvention
	Currency       money.Currency
}

func (d LoanDefaults) rate(percent decimal.Decimal, convention string) (valueobject.InterestRate, error) {
	conv := d.RateConvention
	if strings.TrimSpace(convention) != "" {
		parsed, err := valueobject.NewRateConvention(convention)
		if err != nil {
			return valueobject.InterestRate{}, fmt.Errorf("%w: %v", model.ErrInvalidLoanParameters, err)
		}
		conv = parsed
	}
	rate, err := valueobject.NewInterestRate(percent, conv)
	if err != nil {
		return valueobject.InterestRate{}, fmt.Errorf("%w: %v", model.ErrInvalidLoanParameters, err)
	}
	return rate, nil
}

func (d LoanDefaults) currency(code string) (money.Currency, error) {
	if strings.TrimSpace(code) == "" {
		return d.Currency, nil
	}
	cur, err := money.NewCurrency(code)
	if err != nil {
		return money.Currency{}, fmt.Errorf("%w: %v", model.ErrInvalidLoanParameters, err)
	}
	return cur, nil
}
