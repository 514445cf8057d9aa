package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	AppEnv       string `env:"APP_ENV" default:"development"`
	Port         string `env:"PORT" default:"8080"`
	AppURL       string `env:"APP_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RedisURL     string `env:"REDIS_URL"`
	StoreBackend string `env:"STORE_BACKEND" default:"postgres"`
	LogLevel     string `env:"LOG_LEVEL" default:"info"`
	LogFormat    string `env:"LOG_FORMAT" default:"text"`
	Timezone     string `env:"TIMEZONE" default:"UTC"`

	RecentBufferSize int     `env:"RECENT_BUFFER_SIZE" default:"10"`
	VoteRateLimit    float64 `env:"VOTE_RATE_LIMIT" default:"5"`
	VoteRateBurst    int     `env:"VOTE_RATE_BURST" default:"10"`
	EventBufferSize  int     `env:"EVENT_BUFFER_SIZE" default:"256"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" default:"0s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves TIMEZONE. validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND is postgres")
		}
		if cfg.AppEnv == "production" {
			if err := requireSecureSSL(cfg.DatabaseURL); err != nil {
				return err
			}
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, cfg.StoreBackend)
	}

	if cfg.RecentBufferSize < 1 {
		return fmt.Errorf("RECENT_BUFFER_SIZE must be positive, got %d", cfg.RecentBufferSize)
	}
	if cfg.VoteRateLimit <= 0 {
		return fmt.Errorf("VOTE_RATE_LIMIT must be positive, got %v", cfg.VoteRateLimit)
	}
	if cfg.VoteRateBurst < 1 {
		return fmt.Errorf("VOTE_RATE_BURST must be positive, got %d", cfg.VoteRateBurst)
	}
	if cfg.EventBufferSize < 1 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be positive, got %d", cfg.EventBufferSize)
	}
	if cfg.ReconcileInterval < 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must not be negative, got %s", cfg.ReconcileInterval)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is not a known location: %w", err)
	}

	return nil
}

func requireSecureSSL(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
