// Package scheduler runs the score sync on a cron schedule for deployments
// without an external scheduler hitting /api/cron/sync-scores.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/sakif/gridiron-picks/internal/service"
)

// CurrentWeekSyncer is the slice of SyncService the scheduler drives.
type CurrentWeekSyncer interface {
	SyncCurrentWeek(ctx context.Context) (*service.SyncResult, error)
}

// Scheduler triggers SyncCurrentWeek on a cron spec. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	spec   string
	syncer CurrentWeekSyncer
	logger *slog.Logger
	cron   *cron.Cron

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(spec string, syncer CurrentWeekSyncer, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		spec:   spec,
		syncer: syncer,
		logger: logger,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}
}

// Start registers the job and starts the cron loop in the background.
// Runs are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule sync %q: %w", s.spec, err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("sync scheduled", slog.String("schedule", s.spec))
	return nil
}

// Stop halts the schedule, cancels any in-flight run and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce performs a single current-week sync and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	result, err := s.syncer.SyncCurrentWeek(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled sync finished",
		slog.String("run_id", result.RunID),
		slog.Int("season", result.SeasonYear),
		slog.Int("season_type", result.SeasonType),
		slog.Int("week", result.Week),
		slog.Int("processed", result.Processed),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("errors", len(result.Errors)),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
