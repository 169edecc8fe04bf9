// Package sweep runs the daily due-installment reminder pass.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/bibbank/loanbook/internal/domain/event"
	"github.com/bibbank/loanbook/internal/domain/model"
	"github.com/bibbank/loanbook/internal/domain/port"
)

// DefaultInterval is the spacing between passes.
const DefaultInterval = 24 * time.Hour

// Clock is the sweep's time source. After is used for the wait between passes.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// DueSource answers which unpaid installments are due on a day.
type DueSource interface {
	Due(ctx context.Context, asOf time.Time) ([]model.DueInstallment, error)
}

// Config controls scheduling and addressing.
type Config struct {
	Interval   time.Duration
	RunOnStart bool
	// FallbackTo receives reminders for loans without a client e-mail.
	FallbackTo string
}

// Report summarises one pass.
type Report struct {
	AsOf   time.Time `json:"as_of"`
	Due    int       `json:"due"`
	Sent   int       `json:"sent"`
	Failed int       `json:"failed"`
}

// Sweeper is the long-lived reminder task. Passes never overlap.
type Sweeper struct {
	due       DueSource
	notifier  port.Notifier
	publisher port.EventPublisher
	clock     Clock
	cfg       Config
	logger    *slog.Logger

	sentCounter   metric.Int64Counter
	failedCounter metric.Int64Counter
	passCounter   metric.Int64Counter

	passMu sync.Mutex

	lifeMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Sweeper. A nil meter uses the global meter provider; a nil publisher
// disables reminder events.
func New(
	due DueSource,
	notifier port.Notifier,
	publisher port.EventPublisher,
	clock Clock,
	cfg Config,
	meter metric.Meter,
	logger *slog.Logger,
) (*Sweeper, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if meter == nil {
		meter = otel.Meter("github.com/bibbank/loanbook/sweep")
	}

	s := &Sweeper{
		due:       due,
		notifier:  notifier,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}

	var err error
	if s.sentCounter, err = meter.Int64Counter("loanbook_reminders_sent_total",
		metric.WithDescription("Reminders delivered")); err != nil {
		return nil, fmt.Errorf("create sent counter: %w", err)
	}
	if s.failedCounter, err = meter.Int64Counter("loanbook_reminders_failed_total",
		metric.WithDescription("Reminders that could not be delivered")); err != nil {
		return nil, fmt.Errorf("create failed counter: %w", err)
	}
	if s.passCounter, err = meter.Int64Counter("loanbook_sweep_passes_total",
		metric.WithDescription("Completed sweep passes")); err != nil {
		return nil, fmt.Errorf("create pass counter: %w", err)
	}

	return s, nil
}

// Run blocks, sweeping once per interval, until ctx is cancelled. A cancelled context
// takes effect after the in-flight pass.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "reminder sweep started",
		"interval", s.cfg.Interval.String(),
		"run_on_start", s.cfg.RunOnStart,
	)

	if s.cfg.RunOnStart {
		s.runLogged(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder sweep stopped")
			return nil
		case <-s.clock.After(s.cfg.Interval):
			s.runLogged(ctx)
		}
	}
}

// Start runs the sweep in the background until Stop.
func (s *Sweeper) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Run(ctx)
	}()
}

// Stop cancels the background loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.lifeMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.lifeMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunOnce performs one pass for today's date. Individual delivery failures are counted in
// the report; only a failed due-installment query returns an error.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	report := Report{AsOf: model.DateOf(s.clock.Now())}

	due, err := s.due.Due(ctx, report.AsOf)
	if err != nil {
		return report, fmt.Errorf("load due installments: %w", err)
	}
	report.Due = len(due)

	for _, d := range due {
		if err := s.remind(ctx, d); err != nil {
			report.Failed++
			s.failedCounter.Add(ctx, 1)
			s.logger.ErrorContext(ctx, "reminder delivery failed",
				"installment_id", d.Installment.ID(),
				"loan_id", d.Installment.LoanID(),
				"error", err,
			)
			continue
		}
		report.Sent++
		s.sentCounter.Add(ctx, 1)
	}

	s.passCounter.Add(ctx, 1)
	return report, nil
}

func (s *Sweeper) runLogged(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "reminder sweep pass failed", "as_of", report.AsOf.Format(time.DateOnly), "error", err)
		return
	}
	s.logger.InfoContext(ctx, "reminder sweep pass finished",
		"as_of", report.AsOf.Format(time.DateOnly),
		"due", report.Due,
		"sent", report.Sent,
		"failed", report.Failed,
	)
}

func (s *Sweeper) remind(ctx context.Context, d model.DueInstallment) error {
	to := strings.TrimSpace(d.ClientEmail)
	if to == "" {
		to = strings.TrimSpace(s.cfg.FallbackTo)
	}
	if to == "" {
		return fmt.Errorf("%w: no recipient for loan %s", model.ErrDelivery, d.Installment.LoanID())
	}

	body, err := renderReminder(d)
	if err != nil {
		return err
	}

	err = s.notifier.Send(ctx, port.Notification{
		To:       to,
		Subject:  reminderSubject(d),
		HTMLBody: body,
	})
	if err != nil {
		if !errors.Is(err, model.ErrDelivery) {
			err = fmt.Errorf("%w: %w", model.ErrDelivery, err)
		}
		return err
	}

	if s.publisher != nil {
		evt := event.NewInstallmentReminderSent(
			d.Installment.ID(), d.Installment.LoanID(), d.Installment.Number(),
			d.Installment.DueDate(), to, s.clock.Now(),
		)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.WarnContext(ctx, "failed to publish reminder event", "installment_id", d.Installment.ID(), "error", err)
		}
	}
	return nil
}
