package valueobject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// RateConvention – immutable value object
// ---------------------------------------------------------------------------

// RateConvention says which period a quoted percentage refers to.
type RateConvention struct {
	value string
}

const (
	rateConventionAnnual  = "ANNUAL"
	rateConventionMonthly = "MONTHLY"
)

var (
	RateConventionAnnual  = RateConvention{value: rateConventionAnnual}
	RateConventionMonthly = RateConvention{value: rateConventionMonthly}
)

// ErrInvalidRate is returned for negative rates or unknown conventions.
var ErrInvalidRate = errors.New("invalid interest rate")

// NewRateConvention parses "ANNUAL" or "MONTHLY", case-insensitively.
func NewRateConvention(s string) (RateConvention, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case rateConventionAnnual:
		return RateConventionAnnual, nil
	case rateConventionMonthly:
		return RateConventionMonthly, nil
	default:
		return RateConvention{}, fmt.Errorf("%w: unknown rate convention %q", ErrInvalidRate, s)
	}
}

func (c RateConvention) String() string { return c.value }
func (c RateConvention) IsZero() bool { return c.value == "" }

func (c RateConvention) Equal(other RateConvention) bool {
	return c.value == other.value
}

// ---------------------------------------------------------------------------
// InterestRate – immutable value object
// ---------------------------------------------------------------------------

// InterestRate is a non-negative percentage together with the convention it is quoted in.
// 12 ANNUAL and 1 MONTHLY describe the same periodic rate.
type InterestRate struct {
	percent    decimal.Decimal
	convention RateConvention
}

// NewInterestRate validates percent >= 0 and a known convention.
func NewInterestRate(percent decimal.Decimal, convention RateConvention) (InterestRate, error) {
	if percent.IsNegative() {
		return InterestRate{}, fmt.Errorf("%w: rate must not be negative, got %s", ErrInvalidRate, percent)
	}
	if convention.IsZero() {
		return InterestRate{}, fmt.Errorf("%w: rate convention is required", ErrInvalidRate)
	}
	return InterestRate{percent: percent, convention: convention}, nil
}

// MustInterestRate panics on invalid input. Tests and constants only.
func MustInterestRate(percent float64, convention RateConvention) InterestRate {
	r, err := NewInterestRate(decimal.NewFromFloat(percent), convention)
	if err != nil {
		panic(err)
	}
	return r
}

func (r InterestRate) Percent() decimal.Decimal { return r.percent }
func (r InterestRate) Convention() RateConvention { return r.convention }
func (r InterestRate) IsZero() bool { return r.convention.IsZero() }

// PeriodicRate is the per-installment rate as a fraction: percent/100/12 for ANNUAL,
// percent/100 for MONTHLY.
func (r InterestRate) PeriodicRate() float64 {
	fraction := r.percent.InexactFloat64() / 100
	if r.convention.Equal(RateConventionAnnual) {
		return fraction / 12
	}
	return fraction
}

func (r InterestRate) Equal(other InterestRate) bool {
	return r.convention.Equal(other.convention) && r.percent.Equal(other.percent)
}

// String renders e.g. "12% ANNUAL".
func (r InterestRate) String() string {
	return fmt.Sprintf("%s%% %s", r.percent.String(), r.convention.String())
}
