// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	API      APIConfig
	Identity IdentityConfig
	Session  SessionConfig
	Roles    RolesConfig
	Lists    ListsConfig
	Payment  PaymentConfig
	Storage  StorageConfig
	App      AppConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// RequestTimeout cancels the context of slow requests, backend calls included.
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" env-default:"30s"`
	// AllowedOrigins enables CORS for JSON clients on other origins.
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// DatabaseConfig holds the session store connection settings.
// Driver is "sqlite" (Path is used) or "postgres".
type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" env-default:"sqlite"`
	Path     string `env:"DB_PATH" env-default:"microloan.db"`
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"microloan"`
	Password string `env:"DB_PASSWORD"`
	DBName   string `env:"DB_NAME" env-default:"microloan"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
}

// APIConfig points at the loan marketplace REST backend.
type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL" env-default:"http://localhost:5000"`
	Timeout time.Duration `env:"API_TIMEOUT" env-default:"10s"`
}

// IdentityConfig describes the external identity provider.
type IdentityConfig struct {
	SignInURL  string `env:"IDP_SIGNIN_URL" env-default:"http://localhost:9000/signin"`
	SignOutURL string `env:"IDP_SIGNOUT_URL"`
	Issuer     string `env:"IDP_ISSUER" env-default:"microloan-idp"`
	Audience   string `env:"IDP_AUDIENCE" env-default:"microloan-web"`
	Secret     string `env:"IDP_SECRET" env-default:"devidpsecret"`
	PublicURL  string `env:"PUBLIC_URL" env-default:"http://localhost:8080"`
}

// SessionConfig controls the server-side session cookie.
type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET" env-default:"devsessionsecret"`
	TTL          time.Duration `env:"SESSION_TTL" env-default:"336h"`
	SecureCookie bool          `env:"SESSION_SECURE_COOKIE" env-default:"false"`
	SweepSpec    string        `env:"SESSION_SWEEP" env-default:"@every 1h"`
}

// RolesConfig tunes role lookups.
type RolesConfig struct {
	CacheTTL      time.Duration `env:"ROLE_CACHE_TTL" env-default:"5m"`
	Wait          time.Duration `env:"ROLE_WAIT" env-default:"750ms"`
	FetchTimeout  time.Duration `env:"ROLE_FETCH_TIMEOUT" env-default:"5s"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
}

// ListsConfig tunes per-view working sets.
type ListsConfig struct {
	Staleness time.Duration `env:"LIST_STALENESS" env-default:"30s"`
}

// PaymentConfig describes the application fee.
type PaymentConfig struct {
	Fee              string `env:"PAYMENT_FEE" env-default:"10.00"`
	Currency         string `env:"PAYMENT_CURRENCY" env-default:"usd"`
	RequiresApproval bool   `env:"PAYMENT_REQUIRES_APPROVAL" env-default:"false"`
}

// FeeAmount parses Fee. Load has already validated it.
func (p PaymentConfig) FeeAmount() decimal.Decimal {
	d, _ := decimal.NewFromString(p.Fee)
	return d
}

// StorageConfig enables image uploads to an S3 compatible store when Endpoint is set.
type StorageConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"loan-images"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
	PublicURL string `env:"MINIO_PUBLIC_URL"`
}

// Enabled reports whether uploads are configured.
func (s StorageConfig) Enabled() bool { return s.Endpoint != "" }

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev          bool   `env:"DEV" env-default:"false"`
	Migrations   bool   `env:"MIGRATIONS" env-default:"true"`
	LogLevel     string `env:"LOG_LEVEL" env-default:"info"`
	Metrics      bool   `env:"METRICS" env-default:"true"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from a .env file (if present) and the environment.
// Real environment variables win over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("DB_DRIVER %q: want sqlite or postgres", c.Database.Driver)
	}
	fee, err := decimal.NewFromString(c.Payment.Fee)
	if err != nil || !fee.IsPositive() {
		return fmt.Errorf("PAYMENT_FEE %q: want a positive amount", c.Payment.Fee)
	}
	if c.Roles.Wait <= 0 || c.Roles.FetchTimeout <= 0 {
		return errors.New("ROLE_WAIT and ROLE_FETCH_TIMEOUT must be positive")
	}
	if !c.App.Dev && c.Session.Secret == "devsessionsecret" {
		return errors.New("SESSION_SECRET must be set outside dev mode")
	}
	return nil
}
