package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/bibbank/loanbook/internal/application/sweep"
	"github.com/bibbank/loanbook/internal/application/usecase"
	"github.com/bibbank/loanbook/internal/domain/port"
	"github.com/bibbank/loanbook/internal/domain/valueobject"
	"github.com/bibbank/loanbook/internal/infrastructure/cache"
	"github.com/bibbank/loanbook/internal/infrastructure/clock"
	"github.com/bibbank/loanbook/internal/infrastructure/config"
	"github.com/bibbank/loanbook/internal/infrastructure/kafka"
	"github.com/bibbank/loanbook/internal/infrastructure/notification"
	"github.com/bibbank/loanbook/internal/infrastructure/outbox"
	pgRepo "github.com/bibbank/loanbook/internal/infrastructure/persistence/postgres"
	"github.com/bibbank/loanbook/internal/infrastructure/persistence/sqlite"
	"github.com/bibbank/loanbook/internal/infrastructure/statement"
	grpcPresentation "github.com/bibbank/loanbook/internal/presentation/grpc"
	"github.com/bibbank/loanbook/internal/presentation/messaging"
	"github.com/bibbank/loanbook/internal/presentation/rest"
	"github.com/bibbank/loanbook/pkg/auth"
	"github.com/bibbank/loanbook/pkg/events"
	pkgkafka "github.com/bibbank/loanbook/pkg/kafka"
	"github.com/bibbank/loanbook/pkg/money"
	"github.com/bibbank/loanbook/pkg/observability"
	pkgpostgres "github.com/bibbank/loanbook/pkg/postgres"
)

// store is what the daemon needs from either backend.
type store interface {
	port.LoanRepository
	events.OutboxRepository
	Close()
}

type sqliteStore struct{ *sqlite.LoanRepo }

func (s sqliteStore) Close() { _ = s.LoanRepo.Close() }

type postgresStore struct {
	*pgRepo.LoanRepo
	close func()
}

func (s postgresStore) Close() { s.close() }

func main() {
	if err := run(); err != nil {
		slog.Error("loanbook exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()

	logger := observability.InitLogger(observability.LogConfig{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("starting loanbook",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"storage", cfg.StorageDriver,
	)

	// Tracing and metrics.
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }() //nolint:errcheck // best-effort flush
	}

	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }() //nolint:errcheck

	// Storage.
	repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	readiness := map[string]rest.Pinger{"store": repo}

	// Events are written to the outbox with each change and relayed from there.
	var sink outbox.Sink
	var producer *pkgkafka.Producer
	kafkaCfg := pkgkafka.Config{
		Brokers:       cfg.Kafka.Brokers,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
		TLS:           cfg.Kafka.TLS,
		SASLEnabled:   cfg.Kafka.SASLEnabled,
		SASLMechanism: cfg.Kafka.SASLMechanism,
		SASLUsername:  cfg.Kafka.SASLUsername,
		SASLPassword:  cfg.Kafka.SASLPassword,
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = pkgkafka.NewProducer(kafkaCfg)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		sink = kafka.NewEventPublisher(producer, cfg.Kafka.Topic, logger)
	} else {
		logger.Info("KAFKA_BROKERS not set, outbox events are only logged")
		sink = outbox.NewLogSink(logger)
	}

	// Preview quote cache.
	var quoteCache port.QuoteCache
	if cfg.Redis.Addr != "" {
		client := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		rc := cache.NewRedisQuoteCache(client, cfg.Redis.QuoteTTL)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, previews run uncached until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		quoteCache = rc
		readiness["redis"] = rc
	}

	// Mail.
	var notifier port.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notification.NewSMTPNotifier(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger)
	} else {
		logger.Warn("SMTP_HOST not set, notifications are only logged")
		notifier = notification.NewLogNotifier(logger)
	}

	sysClock := clock.NewSystem(cfg.Location())
	renderer := statement.NewPDFRenderer("Loan statement", sysClock.Now)

	defaults, err := loanDefaults(cfg)
	if err != nil {
		return err
	}

	meter := otel.Meter("github.com/bibbank/loanbook")

	relay, err := outbox.NewRelay(repo, sink, sysClock, outbox.Config{
		Interval:  cfg.Outbox.PollInterval,
		BatchSize: cfg.Outbox.BatchSize,
		Retention: cfg.Outbox.Retention,
	}, meter, logger)
	if err != nil {
		return fmt.Errorf("outbox relay: %w", err)
	}

	// Use cases.
	dueUC := usecase.NewDueInstallmentsUseCase(repo, sysClock)
	setPaidUC := usecase.NewSetInstallmentPaidUseCase(repo, sysClock, logger)

	sweeper, err := sweep.New(dueUC, notifier, outbox.NewRecorder(repo), sysClock, sweep.Config{
		Interval:   cfg.Sweep.Interval,
		RunOnStart: cfg.Sweep.RunOnStart,
		FallbackTo: cfg.Sweep.FallbackTo,
	}, meter, logger)
	if err != nil {
		return fmt.Errorf("reminder sweep: %w", err)
	}

	uc := grpcPresentation.UseCases{
		CreateLoan:         usecase.NewCreateLoanUseCase(repo, sysClock, defaults, logger),
		UpdateLoanTerms:    usecase.NewUpdateLoanTermsUseCase(repo, sysClock, logger),
		SetInstallmentPaid: setPaidUC,
		DeleteLoan:         usecase.NewDeleteLoanUseCase(repo, sysClock, logger),
		GetLoan:            usecase.NewGetLoanUseCase(repo),
		ListLoans:          usecase.NewListLoansUseCase(repo),
		DueInstallments:    dueUC,
		PreviewSchedule:    usecase.NewPreviewScheduleUseCase(quoteCache, sysClock, defaults, logger),
		Statement:          usecase.NewGenerateStatementUseCase(repo, renderer, notifier, cfg.Sweep.FallbackTo, logger),
		Reminders:          sweeper,
	}

	// Auth.
	var jwtSvc *auth.JWTService
	if cfg.Auth.Enabled {
		jwtSvc, err = auth.NewJWTService(auth.JWTConfig{
			Secret:       cfg.Auth.Secret,
			PublicKeyPEM: cfg.Auth.PublicKeyPEM,
			Issuer:       cfg.Auth.Issuer,
		})
		if err != nil {
			return fmt.Errorf("jwt: %w", err)
		}
	}

	// gRPC server.
	handler := grpcPresentation.NewLoanBookHandler(uc, cfg.Auth.Enabled, logger)
	grpcServer, err := grpcPresentation.NewServer(handler, logger, grpcPresentation.ServerOptions{
		JWT: jwtSvc,
		TLS: grpcPresentation.TLSFiles{
			CertFile:     cfg.TLS.CertFile,
			KeyFile:      cfg.TLS.KeyFile,
			ClientCAFile: cfg.TLS.ClientCAFile,
		},
		Reflection: cfg.GRPCReflection,
	})
	if err != nil {
		return err
	}

	// HTTP server (health checks, metrics).
	mux := http.NewServeMux()
	rest.NewHealthHandler(cfg.ServiceName, readiness, metricsHandler, logger).RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)

	go func() {
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Payments consumer.
	if cfg.Kafka.PaymentsTopic != "" {
		consumer, err := pkgkafka.NewConsumer(kafkaCfg, cfg.Kafka.PaymentsTopic,
			messaging.NewPaymentConsumer(setPaidUC, logger).Handle, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("payments consumer: %w", err)
			}
		}()
	}

	relay.Start()
	sweeper.Start()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	sweeper.Stop()
	grpcServer.GracefulStop()
	relay.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("loanbook stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	if cfg.StorageDriver == config.StorageDriverSQLite {
		repo, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLite.Path, err)
		}
		logger.Info("using sqlite store", "path", cfg.SQLite.Path)
		return sqliteStore{repo}, nil
	}

	pgCfg := pkgpostgres.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	pool, err := pkgpostgres.NewPool(dbCtx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database")

	if err := pkgpostgres.RunMigrations(pgCfg.DSN(), cfg.DB.MigrationsPath); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return postgresStore{LoanRepo: pgRepo.NewLoanRepo(pool), close: pool.Close}, nil
}

func loanDefaults(cfg config.Config) (usecase.LoanDefaults, error) {
	convention, err := valueobject.NewRateConvention(cfg.RateConvention)
	if err != nil {
		return usecase.LoanDefaults{}, fmt.Errorf("RATE_CONVENTION: %w", err)
	}
	currency, err := money.NewCurrency(cfg.Currency)
	if err != nil {
		return usecase.LoanDefaults{}, fmt.Errorf("DEFAULT_CURRENCY: %w", err)
	}
	return usecase.LoanDefaults{RateConvention: convention, Currency: currency}, nil
}
