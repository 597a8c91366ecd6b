// Package main is the entry point for the pick'em API server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (environment variables, optionally from .env)
// 2. Create dependencies (logger, database, score feed client)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// This project has three: cmd/server (HTTP API), cmd/sync (score sync and
// scheduler) and cmd/tokens (token backfill). Each gets its own main.go.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/gridiron-picks/internal/config"
	"github.com/sakif/gridiron-picks/internal/espn"
	"github.com/sakif/gridiron-picks/internal/handler"
	sqliteRepo "github.com/sakif/gridiron-picks/internal/repository/sqlite"
	"github.com/sakif/gridiron-picks/internal/server"
)

func main() {
	// === 1. CONFIGURATION AND LOGGING ===
	// MustLoad exits with a readable message if any variable is malformed.
	cfg := config.MustLoad()
	logger := cfg.NewLogger()

	// run owns every deferred Close, so they have all fired by the time
	// main decides the exit code.
	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// === 2. DATABASE ===
	// os.MkdirAll creates the data directory if needed (like `mkdir -p`).
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dbDir, err)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// === 3. SCORE FEED ===
	// Redis is optional: with REDIS_ADDR set, feed responses are shared across
	// processes; otherwise each process keeps its own in-memory cache.
	var cache espn.Cache = espn.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		cache = espn.NewRedisCache(rdb)
		logger.Info("using redis feed cache", slog.String("addr", cfg.RedisAddr))
	}

	feed := espn.NewClient(espn.Options{
		BaseURL:        cfg.ESPNBaseURL,
		Timeout:        cfg.ESPNTimeout,
		ScoreboardTTL:  cfg.ESPNScoreboardTTL,
		CurrentWeekTTL: cfg.ESPNCurrentWeekTTL,
		Cache:          cache,
	}, logger)

	if cfg.AdminAuthToken == "" {
		logger.Warn("ADMIN_AUTH_TOKEN not set, admin routes are unreachable")
	}
	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET not set, the scheduler cannot authenticate")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv := server.New(server.Config{
		Port:               cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminAuthToken:     cfg.AdminAuthToken,
		CronSecret:         cfg.CronSecret,
		Season:             handler.Season{Year: cfg.CurrentSeason, Type: cfg.CurrentSeasonType},
		Exempt:             cfg.Exempt(),
	}, db, feed, logger)

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}
