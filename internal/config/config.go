package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Kafka        KafkaConfig
	Tracing      TracingConfig
	Scheduling   SchedulingConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME" envDefault:"visit-scheduling-service"`
	Env                   string `env:"APP_ENV" envDefault:"development"`
	Host                  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT" envDefault:"8080"`
	Version               string `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN             string `env:"POSTGRES_DSN"`
	ApplicationName string `env:"POSTGRES_APPLICATION_NAME" envDefault:"visit-scheduling-service"`
	MaxConns        int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns        int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations   bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	MigrationsDir   string `env:"POSTGRES_MIGRATIONS_DIR"`
	ConnMaxIdleSec  int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec  int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr                string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password            string `env:"REDIS_PASSWORD"`
	DB                  int    `env:"REDIS_DB" envDefault:"0"`
	DirectoryTTLSeconds int    `env:"REDIS_DIRECTORY_TTL_SECONDS" envDefault:"300"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string `env:"AUTH_JWT_SECRET" envDefault:"dev-secret"`
	AccessTokenTTLMinutes int    `env:"AUTH_ACCESS_TOKEN_TTL_MINUTES" envDefault:"60"`
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string `env:"NOTIFY_EMAIL_FROM" envDefault:"noreply@example.com"`
	WebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
}

// KafkaConfig configures the appointment event sink. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"visit.appointments"`
}

// TracingConfig configures OTLP trace export. Empty endpoint disables it.
type TracingConfig struct {
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// SchedulingConfig holds the visit scheduling rules.
type SchedulingConfig struct {
	WindowPolicy                string `env:"SCHEDULING_WINDOW_POLICY" envDefault:"midweek"`
	Timezone                    string `env:"SCHEDULING_TIMEZONE" envDefault:"UTC"`
	DailyLimit                  int    `env:"SCHEDULING_DAILY_LIMIT" envDefault:"2"`
	ConflictWindowMinutes       int    `env:"SCHEDULING_CONFLICT_WINDOW_MINUTES" envDefault:"60"`
	DailyLimitCountCanceled     bool   `env:"SCHEDULING_DAILY_LIMIT_COUNT_CANCELED" envDefault:"true"`
	VisitorConflictIgnoreCancel bool   `env:"SCHEDULING_VISITOR_CONFLICT_IGNORE_CANCELED" envDefault:"false"`
	TxTimeoutSeconds            int    `env:"SCHEDULING_TX_TIMEOUT_SECONDS" envDefault:"5"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Scheduling.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DirectoryTTL returns how long resolved references stay cached.
func (r RedisConfig) DirectoryTTL() time.Duration {
	if r.DirectoryTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(r.DirectoryTTLSeconds) * time.Second
}

// Enabled reports whether the Kafka sink is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && strings.TrimSpace(k.Brokers[0]) != ""
}

// Location resolves the facility timezone used for windows and calendar days.
func (s SchedulingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULING_TIMEZONE %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// ConflictWindow returns the half-width of the overlap window.
func (s SchedulingConfig) ConflictWindow() time.Duration {
	return time.Duration(s.ConflictWindowMinutes) * time.Minute
}

// TxTimeout returns the default timeout applied to scheduling transactions.
func (s SchedulingConfig) TxTimeout() time.Duration {
	if s.TxTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TxTimeoutSeconds) * time.Second
}

func (s SchedulingConfig) validate() error {
	if s.DailyLimit <= 0 {
		return fmt.Errorf("invalid SCHEDULING_DAILY_LIMIT: must be positive, got %d", s.DailyLimit)
	}
	if s.ConflictWindowMinutes < 0 {
		return fmt.Errorf("invalid SCHEDULING_CONFLICT_WINDOW_MINUTES: must not be negative, got %d", s.ConflictWindowMinutes)
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}
