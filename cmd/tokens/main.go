// Command tokens issues access tokens to users that have none and prints
// each user's personal link.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/gridiron-picks/internal/config"
	sqliteRepo "github.com/sakif/gridiron-picks/internal/repository/sqlite"
	"github.com/sakif/gridiron-picks/internal/service"
)

func main() {
	cfg := config.MustLoad()
	logger := cfg.NewLogger()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("token backfill failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	users := service.NewUserService(db, logger)

	updated, err := users.BackfillTokens(ctx)
	if err != nil {
		return err
	}
	logger.Info("token backfill finished", slog.Int("updated", len(updated)))

	all, err := users.List(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	base := strings.TrimRight(cfg.AppURL, "/")
	for _, u := range all {
		if u.Token == nil {
			continue
		}
		fmt.Printf("%-30s %s/user/%s\n", u.DisplayName, base, *u.Token)
	}
	return nil
}
