package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency is an ISO 4217 currency code.
type Currency struct {
	code string
}

// NewCurrency validates and normalises an ISO 4217 code. Lowercase input is accepted.
func NewCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyCodeRe.MatchString(code) {
		return Currency{}, fmt.Errorf("invalid currency code %q: must be exactly 3 letters", code)
	}
	return Currency{code: code}, nil
}

// MustCurrency panics on an invalid code. Package-level initialization only.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Currency) Code() string { return c.code }
func (c Currency) String() string { return c.code }
func (c Currency) IsZero() bool { return c.code == "" }

// Symbol returns the display symbol for the currencies the ledger prints on statements,
// falling back to the ISO code.
func (c Currency) Symbol() string {
	switch c.code {
	case "BRL":
		return "R$"
	case "USD":
		return "US$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	default:
		return c.code
	}
}

var (
	BRL = MustCurrency("BRL")
	USD = MustCurrency("USD")
	EUR = MustCurrency("EUR")
	GBP = MustCurrency("GBP")
)

// minorUnits is the number of decimal places amounts are settled in.
const minorUnits = 2

// Money is an immutable amount in a currency.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

func New(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: amount, currency: currency}
}

func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency { return m.currency }
func (m Money) IsZero() bool { return m.amount.IsZero() }

// Add returns m+other. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("currency mismatch: cannot add %s to %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns m-other. Currencies must match.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("currency mismatch: cannot subtract %s from %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Settled rounds the amount half away from zero to the currency's minor units.
func (m Money) Settled() Money {
	return Money{amount: m.amount.Round(minorUnits), currency: m.currency}
}

func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String formats as "<amount> <code>", e.g. "88.85 BRL".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(minorUnits), m.currency.Code())
}

// Display formats for humans, e.g. "R$ 1,234.56".
func (m Money) Display() string {
	fixed := m.amount.Abs().StringFixed(minorUnits)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if m.amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s%s %s.%s", sign, m.currency.Symbol(), b.String(), frac)
}
