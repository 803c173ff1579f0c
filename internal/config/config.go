package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Mail     MailConfig
	Storage  StorageConfig
	Contact  ContactConfig
	Feed     FeedConfig
	Jobs     JobsConfig
	Site     SiteConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME" envDefault:"cosmic-code-portal"`
	Env                   string `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production test"`
	Host                  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT" envDefault:"8080" validate:"required,numeric"`
	Version               string `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30" validate:"gte=0"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10" validate:"gte=0"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2" validate:"gte=0"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values. An empty Addr selects the
// in-process realtime hub and revocation list.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0" validate:"gte=0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `env:"AUTH_JWT_SECRET" envDefault:"dev-secret" validate:"required"`
	AccessTokenTTLMinutes int    `env:"AUTH_ACCESS_TOKEN_TTL_MINUTES" envDefault:"720" validate:"gt=0"`
	BcryptCost            int    `env:"AUTH_BCRYPT_COST" envDefault:"12" validate:"gte=4,lte=31"`
	CookieName            string `env:"AUTH_COOKIE_NAME" envDefault:"portal_session" validate:"required"`
	CookieSecure          bool   `env:"AUTH_COOKIE_SECURE" envDefault:"false"`
}

// MailConfig holds SMTP settings for the contact form relay.
type MailConfig struct {
	Host     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port     int    `env:"SMTP_PORT" envDefault:"587" validate:"gt=0"`
	Username string `env:"EMAIL_USER"`
	Password string `env:"EMAIL_APP_PASSWORD"`
	// From and To fall back to Username when empty.
	From string `env:"EMAIL_FROM"`
	To   string `env:"EMAIL_TO"`
}

// StorageConfig configures the document file store.
type StorageConfig struct {
	Root           string `env:"STORAGE_ROOT" envDefault:"./data/documents" validate:"required"`
	PublicBaseURL  string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/files" validate:"required"`
	MaxUploadBytes int64  `env:"STORAGE_MAX_UPLOAD_BYTES" envDefault:"26214400" validate:"gt=0"`
}

// ContactConfig bounds contact form submissions per client IP.
type ContactConfig struct {
	RatePerMinute int `env:"CONTACT_RATE_PER_MINUTE" envDefault:"5" validate:"gt=0"`
	Burst         int `env:"CONTACT_BURST" envDefault:"3" validate:"gt=0"`
}

// FeedConfig tunes live message feed sessions.
type FeedConfig struct {
	SubscriptionBuffer int `env:"FEED_SUBSCRIPTION_BUFFER" envDefault:"64" validate:"gt=0"`
	PingIntervalSec    int `env:"FEED_PING_INTERVAL_SECONDS" envDefault:"25" validate:"gt=0"`
}

// JobsConfig schedules background maintenance.
type JobsConfig struct {
	InvoiceSweepInterval time.Duration `env:"JOBS_INVOICE_SWEEP_INTERVAL" envDefault:"1h" validate:"gt=0"`
}

// SiteConfig points at marketing content overrides.
type SiteConfig struct {
	ContentPath string `env:"SITE_CONTENT_PATH"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
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

// AccessTokenTTL returns the session lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// Sender returns the envelope sender for outgoing mail.
func (m MailConfig) Sender() string {
	if m.From != "" {
		return m.From
	}
	return m.Username
}

// Inbox returns the address contact submissions are delivered to.
func (m MailConfig) Inbox() string {
	if m.To != "" {
		return m.To
	}
	return m.Username
}

// PingInterval returns the websocket keepalive period.
func (f FeedConfig) PingInterval() time.Duration {
	return time.Duration(f.PingIntervalSec) * time.Second
}
