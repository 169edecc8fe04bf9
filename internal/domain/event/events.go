package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/loanbook/pkg/events"
)

// DomainEvent is an alias for the shared pkg/events.DomainEvent interface.
type DomainEvent = events.DomainEvent

const (
	aggregateLoan        = "Loan"
	aggregateInstallment = "Installment"

	TypeLoanCreated             = "lending.loan.created"
	TypeLoanTermsUpdated        = "lending.loan.terms_updated"
	TypeLoanDeleted             = "lending.loan.deleted"
	TypeInstallmentPaidChanged  = "lending.installment.paid_changed"
	TypeInstallmentReminderSent = "lending.installment.reminder_sent"
)

// LoanCreated is raised when a loan and its schedule are first recorded.
type LoanCreated struct {
	events.BaseEvent
	ClientName        string          `json:"client_name"`
	Principal         decimal.Decimal `json:"principal"`
	RatePercent       decimal.Decimal `json:"rate_percent"`
	RateConvention    string          `json:"rate_convention"`
	InstallmentCount  int             `json:"installment_count"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	Currency          string          `json:"currency"`
	StartDate         string          `json:"start_date"`
}

func NewLoanCreated(
	loanID, clientName string,
	principal, ratePercent decimal.Decimal, rateConvention string,
	installmentCount int, installmentAmount decimal.Decimal,
	currency string, startDate, now time.Time,
) LoanCreated {
	return LoanCreated{
		BaseEvent:         events.NewBaseEvent(TypeLoanCreated, loanID, aggregateLoan, now),
		ClientName:        clientName,
		Principal:         principal,
		RatePercent:       ratePercent,
		RateConvention:    rateConvention,
		InstallmentCount:  installmentCount,
		InstallmentAmount: installmentAmount,
		Currency:          currency,
		StartDate:         startDate.Format(time.DateOnly),
	}
}

// LoanTermsUpdated is raised when principal or rate change and unpaid installments are repriced.
type LoanTermsUpdated struct {
	events.BaseEvent
	Principal         decimal.Decimal `json:"principal"`
	RatePercent       decimal.Decimal `json:"rate_percent"`
	RateConvention    string          `json:"rate_convention"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	RepricedCount     int             `json:"repriced_count"`
}

func NewLoanTermsUpdated(
	loanID string,
	principal, ratePercent decimal.Decimal, rateConvention string,
	installmentAmount decimal.Decimal, repricedCount int,
	now time.Time,
) LoanTermsUpdated {
	return LoanTermsUpdated{
		BaseEvent:         events.NewBaseEvent(TypeLoanTermsUpdated, loanID, aggregateLoan, now),
		Principal:         principal,
		RatePercent:       ratePercent,
		RateConvention:    rateConvention,
		InstallmentAmount: installmentAmount,
		RepricedCount:     repricedCount,
	}
}

// LoanDeleted is raised after a loan and its installments are removed.
type LoanDeleted struct {
	events.BaseEvent
}

func NewLoanDeleted(loanID string, now time.Time) LoanDeleted {
	return LoanDeleted{BaseEvent: events.NewBaseEvent(TypeLoanDeleted, loanID, aggregateLoan, now)}
}

// InstallmentPaidChanged is raised when an installment is marked paid or unpaid.
type InstallmentPaidChanged struct {
	events.BaseEvent
	LoanID string          `json:"loan_id"`
	Number int             `json:"number"`
	Amount decimal.Decimal `json:"amount"`
	Paid   bool            `json:"paid"`
}

func NewInstallmentPaidChanged(installmentID, loanID string, number int, amount decimal.Decimal, paid bool, now time.Time) InstallmentPaidChanged {
	return InstallmentPaidChanged{
		BaseEvent: events.NewBaseEvent(TypeInstallmentPaidChanged, installmentID, aggregateInstallment, now),
		LoanID:    loanID,
		Number:    number,
		Amount:    amount,
		Paid:      paid,
	}
}

// InstallmentReminderSent is raised by the reminder sweep after a successful delivery.
type InstallmentReminderSent struct {
	events.BaseEvent
	LoanID    string `json:"loan_id"`
	Number    int    `json:"number"`
	DueDate   string `json:"due_date"`
	Recipient string `json:"recipient"`
}

func NewInstallmentReminderSent(installmentID, loanID string, number int, dueDate time.Time, recipient string, now time.Time) InstallmentReminderSent {
	return InstallmentReminderSent{
		BaseEvent: events.NewBaseEvent(TypeInstallmentReminderSent, installmentID, aggregateInstallment, now),
		LoanID:    loanID,
		Number:    number,
		DueDate:   dueDate.Format(time.DateOnly),
		Recipient: recipient,
	}
}

// PartitionKey returns the owning loan so that its events stay on one partition.
func (e InstallmentPaidChanged) PartitionKey() string { return e.LoanID }

func (e InstallmentReminderSent) PartitionKey() string { return e.LoanID }
