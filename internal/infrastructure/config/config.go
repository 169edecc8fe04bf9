package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bibbank/loanbook/pkg/kafka"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
}

type SQLiteConfig struct {
	Path string
}

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	PaymentsTopic string
	ConsumerGroup string
	TLS           bool
	SASLEnabled   bool
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QuoteTTL time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SweepConfig struct {
	Interval   time.Duration
	RunOnStart bool
	Timezone   string
	FallbackTo string
}

// OutboxConfig drives the relay that forwards recorded events to Kafka.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Retention    time.Duration
}

type AuthConfig struct {
	Enabled      bool
	Secret       string
	PublicKeyPEM string
	Issuer       string
}

type TLSConfig struct {
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

type Config struct {
	GRPCPort       int
	HTTPPort       int
	StorageDriver  string
	DB             DatabaseConfig
	SQLite         SQLiteConfig
	Kafka          KafkaConfig
	Redis          RedisConfig
	SMTP           SMTPConfig
	Sweep          SweepConfig
	Outbox         OutboxConfig
	Auth           AuthConfig
	TLS            TLSConfig
	GRPCReflection bool
	RateConvention string
	Currency       string
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	ServiceName    string
}

// Validate rejects configurations that would fail at first use.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DB.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD environment variable is required"))
		}
	case StorageDriverSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("SQLITE_PATH must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	if c.Auth.Enabled && c.Auth.Secret == "" && c.Auth.PublicKeyPEM == "" {
		errs = append(errs, errors.New("JWT_SECRET or JWT_PUBLIC_KEY is required when AUTH_ENABLED is set"))
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, errors.New("MAIL_FROM is required when SMTP_HOST is set"))
	}
	if c.Kafka.PaymentsTopic != "" && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_PAYMENTS_TOPIC is set"))
	}
	if c.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.Outbox.PollInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if _, err := time.LoadLocation(c.Sweep.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("SWEEP_TIMEZONE: %w", err))
	}

	return errors.Join(errs...)
}

func Load() Config {
	return Config{
		GRPCPort:      getEnvInt("GRPC_PORT", 9090),
		HTTPPort:      getEnvInt("HTTP_PORT", 8080),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DB: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "loanbook"),
			Password:       getEnv("DB_PASSWORD", ""),
			Name:           getEnv("DB_NAME", "loanbook"),
			SSLMode:        getEnv("DB_SSLMODE", "require"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/infrastructure/persistence/postgres/migrations"),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "loans.db"),
		},
		Kafka: KafkaConfig{
			Brokers:       kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "")),
			Topic:         getEnv("KAFKA_TOPIC", "lending.loans"),
			PaymentsTopic: getEnv("KAFKA_PAYMENTS_TOPIC", ""),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "loanbook"),
			TLS:           getEnvBool("KAFKA_TLS", false),
			SASLEnabled:   getEnvBool("KAFKA_SASL_ENABLED", false),
			SASLMechanism: getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
			SASLUsername:  getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:  getEnv("KAFKA_SASL_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			QuoteTTL: getEnvDuration("REDIS_QUOTE_TTL", time.Hour),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", ""),
		},
		Sweep: SweepConfig{
			Interval:   getEnvDuration("SWEEP_INTERVAL", 24*time.Hour),
			RunOnStart: getEnvBool("SWEEP_RUN_ON_START", true),
			Timezone:   getEnv("SWEEP_TIMEZONE", "UTC"),
			FallbackTo: getEnv("REMINDER_FALLBACK_TO", ""),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
			Retention:    getEnvDuration("OUTBOX_RETENTION", 7*24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled:      getEnvBool("AUTH_ENABLED", true),
			Secret:       getEnv("JWT_SECRET", ""),
			PublicKeyPEM: getEnv("JWT_PUBLIC_KEY", ""),
			Issuer:       getEnv("JWT_ISSUER", "loanbook"),
		},
		TLS: TLSConfig{
			CertFile:     getEnv("TLS_CERT_FILE", ""),
			KeyFile:      getEnv("TLS_KEY_FILE", ""),
			ClientCAFile: getEnv("TLS_CLIENT_CA_FILE", ""),
		},
		GRPCReflection: getEnvBool("GRPC_REFLECTION", false),
		RateConvention: getEnv("RATE_CONVENTION", "ANNUAL"),
		Currency:       getEnv("DEFAULT_CURRENCY", "BRL"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:    "loanbook",
	}
}

func (c Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Location is the zone whose calendar day counts as "today". Falls back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sweep.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
