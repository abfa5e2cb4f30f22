package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Env struct {
	AppEnv  string
	AppAddr string
	AppURL  string
	GinMode string

	LogLevel  string
	LogFormat string

	DBDSN          string
	DBMaxOpenConns int
	MigrationsPath string

	JWTSecret string
	TokenTTL  time.Duration

	StripeSecretKey       string
	StripeWebhookSecret   string
	AllowUnsignedWebhooks bool
	DefaultCurrency       string

	CronSecret       string
	AbandonThreshold time.Duration
	CleanupInterval  time.Duration

	RedisAddr     string
	RedisPassword string
	KafkaBrokers  []string
	KafkaTopic    string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetention    time.Duration

	CORSAllowedOrigins []string
	MetricsEnabled     bool
}

func (e Env) IsProduction() bool {
	return strings.EqualFold(e.AppEnv, EnvProduction)
}

// LoadEnv reads .env (when present) and the process environment.
func LoadEnv() Env {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return Env{
		AppEnv:  strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		AppAddr: strings.TrimSpace(v.GetString("APP_ADDR")),
		AppURL:  strings.TrimRight(v.GetString("APP_URL"), "/"),
		GinMode: strings.TrimSpace(v.GetString("GIN_MODE")),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		DBDSN:          v.GetString("DB_DSN"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),

		JWTSecret: v.GetString("JWT_SECRET"),
		TokenTTL:  v.GetDuration("TOKEN_TTL"),

		StripeSecretKey:       v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
		AllowUnsignedWebhooks: v.GetBool("ALLOW_UNSIGNED_WEBHOOKS"),
		DefaultCurrency:       strings.ToLower(v.GetString("DEFAULT_CURRENCY")),

		CronSecret:       v.GetString("CRON_SECRET"),
		AbandonThreshold: time.Duration(v.GetInt("ABANDON_THRESHOLD_MINUTES")) * time.Minute,
		CleanupInterval:  v.GetDuration("CLEANUP_INTERVAL"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		KafkaBrokers:  splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:    v.GetString("KAFKA_TOPIC"),

		OutboxPollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
		OutboxBatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
		OutboxMaxAttempts:  v.GetInt("OUTBOX_MAX_ATTEMPTS"),
		OutboxRetention:    v.GetDuration("OUTBOX_RETENTION"),

		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		MetricsEnabled:     v.GetBool("METRICS_ENABLED"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("DB_DSN", "root:@tcp(127.0.0.1:3306)/stays?parseTime=true&loc=UTC&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("DEFAULT_CURRENCY", "cad")
	v.SetDefault("ABANDON_THRESHOLD_MINUTES", 60)
	v.SetDefault("CLEANUP_INTERVAL", "0s")
	v.SetDefault("KAFKA_TOPIC", "booking-events")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 10)
	v.SetDefault("OUTBOX_RETENTION", "168h")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173")
	v.SetDefault("METRICS_ENABLED", true)
}

// Validate refuses configurations that must not ship to production.
func (e Env) Validate() error {
	var errs []error
	if e.AbandonThreshold <= 0 {
		errs = append(errs, errors.New("ABANDON_THRESHOLD_MINUTES must be positive"))
	}
	if e.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if e.IsProduction() {
		if e.AllowUnsignedWebhooks {
			errs = append(errs, errors.New("ALLOW_UNSIGNED_WEBHOOKS cannot be enabled in production"))
		}
		if e.StripeWebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required in production"))
		}
		if e.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required in production"))
		}
		if e.CronSecret == "" {
			errs = append(errs, errors.New("CRON_SECRET is required in production"))
		}
		if len(e.JWTSecret) < 32 {
			errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// WebhookUnsignedAllowed is true only for an explicitly flagged non-production run.
func (e Env) WebhookUnsignedAllowed() bool {
	return !e.IsProduction() && e.AllowUnsignedWebhooks
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
