// Command sync pulls scores from the feed outside the HTTP server.
//
// Usage:
//
//	sync current                         sync the feed's current week
//	sync week -week 5 [-season-type 2]   sync one week
//	sync season [-season-year 2025]      sync every week of a season
//	sync -cron                           run "current" on SYNC_CRON until interrupted
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/gridiron-picks/internal/config"
	"github.com/sakif/gridiron-picks/internal/espn"
	sqliteRepo "github.com/sakif/gridiron-picks/internal/repository/sqlite"
	"github.com/sakif/gridiron-picks/internal/scheduler"
	"github.com/sakif/gridiron-picks/internal/service"
)

// errUsage makes main exit 2 instead of 1.
var errUsage = errors.New("usage")

func main() {
	cfg := config.MustLoad()
	logger := cfg.NewLogger()

	if err := run(cfg, logger, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logger.Error("sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	cronMode := fs.Bool("cron", false, "run the current-week sync on SYNC_CRON until SIGINT/SIGTERM")
	week := fs.Int("week", 0, "week number (week command)")
	seasonType := fs.Int("season-type", cfg.CurrentSeasonType, "1 preseason, 2 regular, 3 postseason")
	seasonYear := fs.Int("season-year", 0, "season year (defaults to the feed's, or CURRENT_SEASON for season)")

	command := "current"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}
	_ = fs.Parse(args)
	switch command {
	case "current", "week", "season":
	default:
		return fmt.Errorf("%w: unknown command %q (want current, week or season)", errUsage, command)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var cache espn.Cache = espn.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		cache = espn.NewRedisCache(rdb)
	}
	feed := espn.NewClient(espn.Options{
		BaseURL:        cfg.ESPNBaseURL,
		Timeout:        cfg.ESPNTimeout,
		ScoreboardTTL:  cfg.ESPNScoreboardTTL,
		CurrentWeekTTL: cfg.ESPNCurrentWeekTTL,
		Cache:          cache,
	}, logger)

	scoring := service.NewScoringService(db, db, db, cfg.Exempt(), logger)
	syncSvc := service.NewSyncService(feed, db, scoring, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *cronMode {
		sched := scheduler.New(cfg.SyncCron, syncSvc, logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		<-ctx.Done()
		sched.Stop()
		return nil
	}

	var result *service.SyncResult
	switch command {
	case "current":
		result, err = syncSvc.SyncCurrentWeek(ctx)
	case "week":
		var year *int
		if *seasonYear != 0 {
			year = seasonYear
		}
		result, err = syncSvc.SyncWeek(ctx, *seasonType, *week, year, true)
	case "season":
		year := *seasonYear
		if year == 0 {
			year = cfg.CurrentSeason
		}
		result, err = syncSvc.SyncEntireSeason(ctx, year, *seasonType)
	}

	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}
