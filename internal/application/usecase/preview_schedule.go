package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bibbank/loanbook/internal/application/dto"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// PreviewScheduleUseCase prices a schedule for display before a loan is recorded.
// Quotes are memoised in the optional cache; cache failures only cost a recomputation.
type PreviewScheduleUseCase struct {
	cache    port.QuoteCache
	clock    port.Clock
	defaults LoanDefaults
	logger   *slog.Logger
}

// NewPreviewScheduleUseCase accepts a nil cache.
func NewPreviewScheduleUseCase(cache port.QuoteCache, clock port.Clock, defaults LoanDefaults, logger *slog.Logger) *PreviewScheduleUseCase {
	return &PreviewScheduleUseCase{cache: cache, clock: clock, defaults: defaults, logger: logger}
}

func (uc *PreviewScheduleUseCase) Execute(ctx context.Context, req dto.PreviewScheduleRequest) (dto.PreviewScheduleResponse, error) {
	rate, err := uc.defaults.rate(req.RatePercent, req.RateConvention)
	if err != nil {
		return dto.PreviewScheduleResponse{}, fmt.Errorf("parse rate: %w", err)
	}
	terms := model.ScheduleTerms{
		Principal:    req.Principal,
		Rate:         rate,
		Installments: req.InstallmentCount,
		Term:         req.Term,
	}

	key := quoteKey(terms)
	quote, cached := uc.lookup(ctx, key)
	if !cached {
		quote, err = model.ComputeSchedule(terms)
		if err != nil {
			return dto.PreviewScheduleResponse{}, fmt.Errorf("compute schedule: %w", err)
		}
		uc.store(ctx, key, quote)
	}

	plan := model.BuildInstallmentPlan(quote, uc.clock.Now())
	schedule := make([]dto.PlannedInstallmentResponse, 0, len(plan))
	for _, p := range plan {
		schedule = append(schedule, dto.PlannedInstallmentResponse{Number: p.Number, DueDate: p.DueDate, Amount: p.Amount})
	}

	return dto.PreviewScheduleResponse{
		Installments:     quote.Installments,
		PeriodicRate:     quote.PeriodicRate,
		Payment:          quote.Payment,
		TotalAmount:      quote.TotalAmount,
		TotalInterest:    quote.TotalInterest,
		CompoundAmount:   quote.CompoundAmount,
		CompoundInterest: quote.CompoundInterest,
		Schedule:         schedule,
		Cached:           cached,
	}, nil
}

func (uc *PreviewScheduleUseCase) lookup(ctx context.Context, key string) (model.Quote, bool) {
	if uc.cache == nil {
		return model.Quote{}, false
	}
	quote, ok, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.logger.WarnContext(ctx, "quote cache read failed", "key", key, "error", err)
		return model.Quote{}, false
	}
	return quote, ok
}

func (uc *PreviewScheduleUseCase) store(ctx context.Context, key string, quote model.Quote) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Set(ctx, key, quote); err != nil {
		uc.logger.WarnContext(ctx, "quote cache write failed", "key", key, "error", err)
	}
}

func quoteKey(t model.ScheduleTerms) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d",
		t.Principal.String(), t.Rate.Percent().String(), t.Rate.Convention(), t.Installments, t.Term)
}
