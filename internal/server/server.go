// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes:
// - Which URL patterns map to which handler functions
// - Which principal kinds each route admits
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go creates config, logger, database and score feed client → passed to Server
// Server.New() creates: services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/gridiron-picks/internal/auth"
	"github.com/sakif/gridiron-picks/internal/handler"
	"github.com/sakif/gridiron-picks/internal/middleware"
	sqliteRepo "github.com/sakif/gridiron-picks/internal/repository/sqlite"
	"github.com/sakif/gridiron-picks/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port               int
	CORSAllowedOrigins []string
	AdminAuthToken     string
	CronSecret         string
	Season             handler.Season
	Exempt             service.ExemptPairings
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server does not own the database: main opens it and closes it after
// Start returns, so cmd/sync and tests can build the same stack around their
// own connection.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	source service.ScoreSource
}

// New creates a new Server with the given config.
//
// Each layer only receives what it needs:
// - Services get repository interfaces (satisfied by *sqlite.DB)
// - Handlers get services (never the repository or DB)
func New(cfg Config, db *sqliteRepo.DB, source service.ScoreSource, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		source: source,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /metrics                            → Prometheus scrape         (public)
// GET    /api/health                         → liveness + DB ping        (public)
// GET    /api/current-week                   → feed current week         (public)
// GET    /api/games                          → week games + predictions  (public)
// GET    /api/leaderboard                    → ranked leaderboard        (public)
// POST   /api/register                       → self-registration         (public)
// GET    /api/me                             → principal introspection   (user, admin)
// POST   /api/predictions                    → bulk save                 (user, admin)
// PUT    /api/predictions/{gameId}           → single pick               (user, admin)
// DELETE /api/predictions/{gameId}           → remove pick               (user, admin)
// GET    /api/cron/sync-scores               → sync scores               (scheduler, admin, user)
// POST   /api/cron/sync-scores               → sync scores               (scheduler, admin, user)
// POST   /api/import                         → bulk import               (scheduler, admin)
// POST   /api/admin/seed                     → sync entire season        (scheduler, admin)
// POST   /api/admin/leaderboard/recompute    → rebuild leaderboard       (admin)
// GET    /api/admin/users                    → list users with tokens    (admin)
// POST   /api/admin/users                    → create user               (admin)
// DELETE /api/admin/users/{id}               → delete user               (admin)
// POST   /api/admin/users/{id}/token         → rotate token              (admin)
// POST   /api/admin/tokens/backfill          → issue missing tokens      (admin)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request and records HTTP metrics
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: answers preflight requests before any auth runs
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// === Services ===
	scoring := service.NewScoringService(s.db, s.db, s.db, s.config.Exempt, s.logger)
	syncSvc := service.NewSyncService(s.source, s.db, scoring, s.logger)
	predictions := service.NewPredictionService(s.db, s.logger)
	users := service.NewUserService(s.db, s.logger)
	queries := service.NewQueryService(s.db, s.db, s.db)
	importer := service.NewImporter(s.db, s.logger)

	// === Handlers ===
	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	gameHandler := handler.NewGameHandler(queries, s.source, s.config.Season, s.logger)
	predictionHandler := handler.NewPredictionHandler(predictions, s.logger)
	userHandler := handler.NewUserHandler(users, queries, s.config.Season, s.logger)
	syncHandler := handler.NewSyncHandler(syncSvc, scoring, importer, s.config.Season, s.logger)

	// === Access control ===
	authn := auth.NewAuthenticator(s.config.AdminAuthToken, s.config.CronSecret, s.db)
	userOrAdmin := auth.Require(authn, s.logger, auth.KindUser, auth.KindAdmin)
	anySync := auth.Require(authn, s.logger, auth.KindScheduler, auth.KindAdmin, auth.KindUser)
	schedulerOrAdmin := auth.Require(authn, s.logger, auth.KindScheduler, auth.KindAdmin)
	adminOnly := auth.Require(authn, s.logger, auth.KindAdmin)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)
		r.Get("/current-week", gameHandler.HandleCurrentWeek)
		r.Get("/games", gameHandler.HandleGames)
		r.Get("/leaderboard", gameHandler.HandleLeaderboard)
		r.Post("/register", userHandler.HandleRegister)

		r.Group(func(r chi.Router) {
			r.Use(userOrAdmin)
			r.Get("/me", userHandler.HandleMe)
			r.Post("/predictions", predictionHandler.HandleBulk)
			r.Put("/predictions/{gameId}", predictionHandler.HandlePut)
			r.Delete("/predictions/{gameId}", predictionHandler.HandleDelete)
		})

		r.With(anySync).Get("/cron/sync-scores", syncHandler.HandleSyncScores)
		r.With(anySync).Post("/cron/sync-scores", syncHandler.HandleSyncScores)

		r.With(schedulerOrAdmin).Post("/import", syncHandler.HandleImport)

		r.Route("/admin", func(r chi.Router) {
			r.With(schedulerOrAdmin).Post("/seed", syncHandler.HandleSeed)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/leaderboard/recompute", syncHandler.HandleRecompute)
				r.Get("/users", userHandler.HandleList)
				r.Post("/users", userHandler.HandleCreate)
				r.Delete("/users/{id}", userHandler.HandleDelete)
				r.Post("/users/{id}/token", userHandler.HandleRegenerateToken)
				r.Post("/tokens/backfill", userHandler.HandleBackfillTokens)
			})
		})
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Return; main closes the database (flushes WAL, releases file lock)
func (s *Server) Start() error {
	// WriteTimeout covers a full-season seed: up to 18 feed calls of 10s each.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.Int("season", s.config.Season.Year),
			slog.Int("season_type", s.config.Season.Type),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
