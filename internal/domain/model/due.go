package model

import "github.com/bibbank/loanbook/pkg/money"

// DueInstallment is an unpaid installment joined with the loan details a reminder needs.
type DueInstallment struct {
	Installment      Installment
	ClientName       string
	ClientEmail      string
	InstallmentCount int
	Currency         money.Currency
}
