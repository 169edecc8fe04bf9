package model_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/valueobject"
)

func annual(pct float64) valueobject.InterestRate {
	return valueobject.MustInterestRate(pct, valueobject.RateConventionAnnual)
}

func TestComputeSchedule_ReferenceLoan(t *testing.T) {
	q, err := model.ComputeSchedule(model.ScheduleTerms{
		Principal:    decimal.NewFromInt(1000),
		Rate:         annual(12),
		Installments: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, q.Installments)
	assert.InDelta(t, 0.01, q.PeriodicRate, 1e-12)
	assert.Equal(t, "88.85", q.InstallmentAmount().StringFixed(2))
	assert.InDelta(t, 88.8488, q.Payment.InexactFloat64(), 1e-4)
	assert.InDelta(t, q.Payment.InexactFloat64()*12, q.TotalAmount.InexactFloat64(), 1e-9)
	assert.True(t, q.TotalInterest.IsPositive())
	assert.InDelta(t, 1126.825, q.CompoundAmount.InexactFloat64(), 1e-3)
	assert.InDelta(t, 126.825, q.CompoundInterest.InexactFloat64(), 1e-3)
}

func TestComputeSchedule_ZeroRate(t *testing.T) {
	for _, n := range []int{1, 3, 7, 12, 360} {
		q, err := model.ComputeSchedule(model.ScheduleTerms{
			Principal:    decimal.NewFromInt(1200),
			Rate:         annual(0),
			Installments: n,
		})
		require.NoError(t, err)

		assert.InDelta(t, 1200/float64(n), q.Payment.InexactFloat64(), 1e-9)
		assert.True(t, q.TotalInterest.IsZero(), "n=%d interest=%s", n, q.TotalInterest)
		assert.True(t, q.CompoundInterest.IsZero())
	}
}

func TestComputeSchedule_PositiveRateProperties(t *testing.T) {
	rates := []float64{0.5, 1, 6, 12, 24, 99.9}
	counts := []int{1, 2, 6, 12, 48, 120}
	for _, r := range rates {
		for _, n := range counts {
			q, err := model.ComputeSchedule(model.ScheduleTerms{
				Principal:    decimal.NewFromInt(5000),
				Rate:         annual(r),
				Installments: n,
			})
			require.NoError(t, err)

			payment := q.Payment.InexactFloat64()
			assert.InEpsilon(t, payment*float64(n), q.TotalAmount.InexactFloat64(), 1e-9)
			assert.True(t, q.TotalInterest.IsPositive(), "rate=%v n=%d", r, n)
			assert.Greater(t, payment, 5000/float64(n))
		}
	}
}

func TestComputeSchedule_ZeroInstallmentsTreatedAsOne(t *testing.T) {
	q, err := model.ComputeSchedule(model.ScheduleTerms{
		Principal: decimal.NewFromInt(1000),
		Rate:      annual(12),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, q.Installments)
	assert.InDelta(t, 1010, q.Payment.InexactFloat64(), 1e-6)

	q, err = model.ComputeSchedule(model.ScheduleTerms{
		Principal: decimal.NewFromInt(1000),
		Rate:      annual(0),
	})
	require.NoError(t, err)
	assert.True(t, q.Payment.Equal(decimal.NewFromInt(1000)))
}

func TestComputeSchedule_Conventions(t *testing.T) {
	monthly, err := model.ComputeSchedule(model.ScheduleTerms{
		Principal:    decimal.NewFromInt(1000),
		Rate:         valueobject.MustInterestRate(1, valueobject.RateConventionMonthly),
		Installments: 12,
	})
	require.NoError(t, err)
	yearly, err := model.ComputeSchedule(model.ScheduleTerms{
		Principal:    decimal.NewFromInt(1000),
		Rate:         annual(12),
		Installments: 12,
	})
	require.NoError(t, err)

	assert.InDelta(t, yearly.Payment.InexactFloat64(), monthly.Payment.InexactFloat64(), 1e-9)
}

func TestComputeSchedule_Term(t *testing.T) {
	q, err := model.ComputeSchedule(model.ScheduleTerms{
		Principal:    decimal.NewFromInt(1000),
		Rate:         annual(12),
		Installments: 12,
		Term:         6,
	})
	require.NoError(t, err)

	assert.InDelta(t, 1061.52, q.CompoundAmount.InexactFloat64(), 1e-2)
	assert.Equal(t, "88.85", q.InstallmentAmount().StringFixed(2), "term does not affect the payment")
}

func TestComputeSchedule_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		terms model.ScheduleTerms
	}{
		{"negative principal", model.ScheduleTerms{Principal: decimal.NewFromInt(-1), Rate: annual(1), Installments: 1}},
		{"negative installments", model.ScheduleTerms{Principal: decimal.NewFromInt(1), Rate: annual(1), Installments: -2}},
		{"negative term", model.ScheduleTerms{Principal: decimal.NewFromInt(1), Rate: annual(1), Installments: 1, Term: -1}},
		{"missing rate", model.ScheduleTerms{Principal: decimal.NewFromInt(1), Installments: 1}},
		{"too many installments", model.ScheduleTerms{Principal: decimal.NewFromInt(1000), Rate: annual(12), Installments: model.MaxInstallments + 1}},
		{"too many installments at zero rate", model.ScheduleTerms{Principal: decimal.NewFromInt(1000), Rate: annual(0), Installments: math.MaxInt32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.ComputeSchedule(tt.terms)
			assert.ErrorIs(t, err, model.ErrInvalidLoanParameters)
		})
	}
}

func TestComputeSchedule_MaxInstallments(t *testing.T) {
	q, err := model.ComputeSchedule(model.ScheduleTerms{
		Principal:    decimal.NewFromInt(1200),
		Rate:         annual(0),
		Installments: model.MaxInstallments,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.00", q.Payment.StringFixed(2))
	assert.Len(t, model.BuildInstallmentPlan(q, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)), model.MaxInstallments)
}

func TestBuildInstallmentPlan(t *testing.T) {
	q, err := model.ComputeSchedule(model.ScheduleTerms{
		Principal:    decimal.NewFromInt(1000),
		Rate:         annual(12),
		Installments: 12,
	})
	require.NoError(t, err)

	start := time.Date(2026, 1, 15, 17, 45, 0, 0, time.UTC)
	plan := model.BuildInstallmentPlan(q, start)

	require.Len(t, plan, 12)
	for i, p := range plan {
		assert.Equal(t, i+1, p.Number)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 30*(i+1)), p.DueDate)
		assert.Equal(t, "88.85", p.Amount.StringFixed(2))
	}
	assert.Equal(t, time.Date(2027, 1, 10, 0, 0, 0, 0, time.UTC), plan[11].DueDate)
}

func TestDateOf_UsesLocalCalendarDay(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	late := time.Date(2026, 5, 31, 23, 30, 0, 0, saoPaulo)

	assert.Equal(t, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), model.DateOf(late))
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), model.DateOf(late.UTC()))
}
