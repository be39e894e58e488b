package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the process configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Billing BillingConfig `yaml:"billing"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Sweep   SweepConfig   `yaml:"sweep"`
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Addr               string        `yaml:"addr"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and configures the ledger store.
type StoreConfig struct {
	Driver       string `yaml:"driver"`
	DatabaseURL  string `yaml:"database_url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	SeedFile     string `yaml:"seed_file"`
}

// BillingConfig holds ledger semantics settings.
type BillingConfig struct {
	Timezone         string        `yaml:"timezone"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SweepConfig schedules the consistency sweep. An empty schedule disables it.
type SweepConfig struct {
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:       DriverPostgres,
			MaxOpenConns: 10,
		},
		Billing: BillingConfig{
			Timezone:         "Africa/Windhoek",
			StatementTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sweep: SweepConfig{
			Schedule: "30 2 1 * *",
			Timeout:  30 * time.Minute,
		},
	}
}

// Load reads .env (when present), the YAML file named by PORTAL_CONFIG, then
// environment overrides, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("PORTAL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Addr = getenvDefault("HTTP_ADDR", cfg.HTTP.Addr)
	if origins := splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")); len(origins) > 0 {
		cfg.HTTP.CORSAllowedOrigins = origins
	}
	cfg.HTTP.ShutdownTimeout = getenvDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.Store.Driver = getenvDefault("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.Store.DatabaseURL))
	cfg.Store.MaxOpenConns = getenvIntDefault("DB_MAX_OPEN_CONNS", cfg.Store.MaxOpenConns)
	cfg.Store.SeedFile = getenvDefault("STORE_SEED_FILE", cfg.Store.SeedFile)

	cfg.Billing.Timezone = getenvDefault("BILLING_TIMEZONE", cfg.Billing.Timezone)
	cfg.Billing.StatementTimeout = getenvDuration("STATEMENT_TIMEOUT", cfg.Billing.StatementTimeout)

	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.Auth.JWTSecret))

	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("LOG_FORMAT", cfg.Log.Format)

	if value, ok := os.LookupEnv("SWEEP_SCHEDULE"); ok {
		cfg.Sweep.Schedule = strings.TrimSpace(value)
	}
	cfg.Sweep.Timeout = getenvDuration("SWEEP_TIMEOUT", cfg.Sweep.Timeout)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("config: store.database_url (DATABASE_URL) is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret (AUTH_JWT_SECRET) is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Billing.StatementTimeout < 0 {
		return errors.New("config: billing.statement_timeout must not be negative")
	}
	return nil
}

// Location resolves the billing timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Billing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: billing.timezone %q: %w", c.Billing.Timezone, err)
	}
	return loc, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
