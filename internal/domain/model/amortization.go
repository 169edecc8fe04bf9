package model

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/loanbook/internal/domain/valueobject"
)

// InstallmentPeriodDays is the fixed spacing between due dates.
const InstallmentPeriodDays = 30

// MaxInstallments bounds the number of installments of a single schedule.
const MaxInstallments = 1200

// ScheduleTerms are the inputs of a fixed-payment schedule.
type ScheduleTerms struct {
	Principal    decimal.Decimal
	Rate         valueobject.InterestRate
	Installments int
	// Term is the number of compounding periods for CompoundAmount; 0 means Installments.
	Term int
}

// Quote is the result of ComputeSchedule. Monetary values are unrounded.
type Quote struct {
	Installments     int             `json:"installments"`
	PeriodicRate     float64         `json:"periodic_rate"`
	Payment          decimal.Decimal `json:"payment"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
	CompoundAmount   decimal.Decimal `json:"compound_amount"`
	CompoundInterest decimal.Decimal `json:"compound_interest"`
}

// InstallmentAmount is the payment rounded to cents, the value stored on unpaid installments.
func (q Quote) InstallmentAmount() decimal.Decimal {
	return q.Payment.Round(2)
}

// ComputeSchedule prices a Price (French) fixed-payment schedule:
//
//	payment = P * r(1+r)^n / ((1+r)^n - 1)
//
// with r the periodic rate. r == 0 degrades to P/n. An installment count of zero is
// treated as one.
func ComputeSchedule(terms ScheduleTerms) (Quote, error) {
	if terms.Principal.IsNegative() {
		return Quote{}, fmt.Errorf("%w: principal must not be negative, got %s", ErrInvalidLoanParameters, terms.Principal)
	}
	if terms.Rate.IsZero() {
		return Quote{}, fmt.Errorf("%w: interest rate is required", ErrInvalidLoanParameters)
	}
	if terms.Rate.Percent().IsNegative() {
		return Quote{}, fmt.Errorf("%w: rate must not be negative, got %s", ErrInvalidLoanParameters, terms.Rate.Percent())
	}
	if terms.Installments < 0 {
		return Quote{}, fmt.Errorf("%w: installments must not be negative, got %d", ErrInvalidLoanParameters, terms.Installments)
	}
	if terms.Installments > MaxInstallments {
		return Quote{}, fmt.Errorf("%w: installments must not exceed %d, got %d",
			ErrInvalidLoanParameters, MaxInstallments, terms.Installments)
	}
	if terms.Term < 0 {
		return Quote{}, fmt.Errorf("%w: term must not be negative, got %d", ErrInvalidLoanParameters, terms.Term)
	}

	n := terms.Installments
	if n == 0 {
		n = 1
	}
	t := terms.Term
	if t == 0 {
		t = n
	}

	principal := terms.Principal.InexactFloat64()
	r := terms.Rate.PeriodicRate()

	var payment, total, compound float64
	if r == 0 {
		payment = principal / float64(n)
		total = principal
		compound = principal
	} else {
		factor := math.Pow(1+r, float64(n))
		payment = principal * (r * factor) / (factor - 1)
		total = payment * float64(n)
		compound = principal * math.Pow(1+r, float64(t))
	}

	for _, v := range []float64{payment, total, compound} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return Quote{}, fmt.Errorf("%w: schedule is not computable for principal %s and rate %s",
				ErrInvalidLoanParameters, terms.Principal, terms.Rate)
		}
	}

	q := Quote{
		Installments: n,
		PeriodicRate: r,
		Payment:      decimal.NewFromFloat(payment),
	}
	if r == 0 {
		q.TotalAmount = terms.Principal
		q.CompoundAmount = terms.Principal
	} else {
		q.TotalAmount = decimal.NewFromFloat(total)
		q.CompoundAmount = decimal.NewFromFloat(compound)
	}
	q.TotalInterest = q.TotalAmount.Sub(terms.Principal)
	q.CompoundInterest = q.CompoundAmount.Sub(terms.Principal)

	return q, nil
}

// PlannedInstallment is one row of a schedule before it is persisted.
type PlannedInstallment struct {
	Number  int
	DueDate time.Time
	Amount  decimal.Decimal
}

// BuildInstallmentPlan lays out quote.Installments rows due every InstallmentPeriodDays
// after startDate, each for the payment rounded to cents.
func BuildInstallmentPlan(quote Quote, startDate time.Time) []PlannedInstallment {
	start := DateOf(startDate)
	amount := quote.InstallmentAmount()

	n := min(quote.Installments, MaxInstallments)
	plan := make([]PlannedInstallment, 0, n)
	for number := 1; number <= n; number++ {
		plan = append(plan, PlannedInstallment{
			Number:  number,
			DueDate: DueDate(start, number),
			Amount:  amount,
		})
	}
	return plan
}

// DueDate is the due date of installment number for a loan started on start.
func DueDate(start time.Time, number int) time.Time {
	return DateOf(start).AddDate(0, 0, InstallmentPeriodDays*number)
}

// DateOf drops the clock part of t, keeping the calendar date as seen in t's location.
// Dates are represented as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
