// Package config loads process configuration from the environment.
//
// A .env file in the working directory is read first if present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/sakif/gridiron-picks/internal/service"
)

// Config holds all application configuration
type Config struct {
	// HTTP server
	Port               int      `envconfig:"PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	AppURL             string   `envconfig:"APP_URL" default:"http://localhost:8080"`

	// Database
	DBPath string `envconfig:"DB_PATH" default:"data/picks.db"`

	// Access control. An empty secret disables that principal kind.
	AdminAuthToken string `envconfig:"ADMIN_AUTH_TOKEN"`
	CronSecret     string `envconfig:"CRON_SECRET"`

	// Score feed
	ESPNBaseURL        string        `envconfig:"ESPN_API_BASE_URL" default:"https://site.api.espn.com/apis/site/v2/sports/football/nfl"`
	ESPNTimeout        time.Duration `envconfig:"ESPN_TIMEOUT" default:"10s"`
	ESPNScoreboardTTL  time.Duration `envconfig:"ESPN_SCOREBOARD_TTL" default:"5m"`
	ESPNCurrentWeekTTL time.Duration `envconfig:"ESPN_CURRENT_WEEK_TTL" default:"1h"`

	// Redis (optional shared feed cache; empty address means in-process cache)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Season defaults for requests that do not name one
	CurrentSeason     int `envconfig:"CURRENT_SEASON" default:"2025"`
	CurrentSeasonType int `envconfig:"CURRENT_SEASON_TYPE" default:"2"`

	// Grading
	ExemptPairings string `envconfig:"EXEMPT_PAIRINGS" default:""`

	// Application
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Scheduler (cmd/sync -cron)
	SyncCron string `envconfig:"SYNC_CRON" default:"*/15 * * * *"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.CurrentSeasonType < 1 || c.CurrentSeasonType > 3 {
		return fmt.Errorf("CURRENT_SEASON_TYPE must be 1, 2 or 3, got %d", c.CurrentSeasonType)
	}
	if c.CurrentSeason < 1900 || c.CurrentSeason > 3000 {
		return fmt.Errorf("CURRENT_SEASON is out of range: %d", c.CurrentSeason)
	}
	if c.ESPNTimeout <= 0 {
		return fmt.Errorf("ESPN_TIMEOUT must be positive")
	}
	if _, err := service.ParseExemptPairings(c.ExemptPairings); err != nil {
		return fmt.Errorf("EXEMPT_PAIRINGS: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.SyncCron) == "" {
		return fmt.Errorf("SYNC_CRON is required")
	}
	return nil
}

// Exempt returns the parsed EXEMPT_PAIRINGS. Validate has already checked it.
func (c *Config) Exempt() service.ExemptPairings {
	pairs, _ := service.ParseExemptPairings(c.ExemptPairings)
	return pairs
}

// SlogLevel returns LOG_LEVEL as a slog level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// NewLogger builds the process logger: text output on stdout at LOG_LEVEL.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: c.SlogLevel()}))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: want debug, info, warn or error", s)
	}
	return level, nil
}

// MustLoad loads configuration or exits on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
