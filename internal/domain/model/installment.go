package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/loanbook/internal/domain/valueobject"
)

// Installment is one scheduled payment of a loan. Immutable; mutations return a copy.
type Installment struct {
	id      string
	loanID  string
	number  int
	dueDate time.Time
	amount  decimal.Decimal
	paid    bool
	paidAt  time.Time
}

// ReconstructInstallment rebuilds an Installment from persistence. paidAt is ignored
// unless paid is set.
func ReconstructInstallment(
	id, loanID string,
	number int,
	dueDate time.Time,
	amount decimal.Decimal,
	paid bool,
	paidAt time.Time,
) Installment {
	inst := Installment{
		id:      id,
		loanID:  loanID,
		number:  number,
		dueDate: DateOf(dueDate),
		amount:  amount,
		paid:    paid,
	}
	if paid {
		inst.paidAt = paidAt
	}
	return inst
}

func (i Installment) ID() string { return i.id }
func (i Installment) LoanID() string { return i.loanID }
func (i Installment) Number() int { return i.number }
func (i Installment) DueDate() time.Time { return i.dueDate }
func (i Installment) Amount() decimal.Decimal { return i.amount }
func (i Installment) Paid() bool { return i.paid }

// PaidAt is the zero time for unpaid installments.
func (i Installment) PaidAt() time.Time { return i.paidAt }

func (i Installment) Status() valueobject.InstallmentStatus {
	return valueobject.InstallmentStatusFor(i.paid)
}

// WithPaid sets the paid flag. The second result is false when the flag already had that
// value, in which case the installment is returned unchanged.
func (i Installment) WithPaid(paid bool, now time.Time) (Installment, bool) {
	if i.paid == paid {
		return i, false
	}
	i.paid = paid
	if paid {
		i.paidAt = now
	} else {
		i.paidAt = time.Time{}
	}
	return i, true
}

// IsDueOn reports whether the installment is unpaid and due on the calendar date of day.
func (i Installment) IsDueOn(day time.Time) bool {
	return !i.paid && i.dueDate.Equal(DateOf(day))
}

func (i Installment) withAmount(amount decimal.Decimal) Installment {
	i.amount = amount
	return i
}
