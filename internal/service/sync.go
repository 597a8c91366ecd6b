package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/espn"
	"github.com/sakif/gridiron-picks/internal/metrics"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
)

// ScoreSource is the external feed sync reads from. *espn.Client implements it.
// A seasonYear of zero asks for the season the feed is currently on.
type ScoreSource interface {
	Scoreboard(ctx context.Context, seasonYear, seasonType, week int, fresh bool) (*espn.ScoreboardResponse, error)
	CurrentWeek(ctx context.Context, fresh bool) (*espn.CurrentWeek, error)
}

// Grader settles predictions on a final game. *ScoringService implements it.
type Grader interface {
	GradeGame(ctx context.Context, gameID int64) error
}

// SyncResult summarises one sync call. Errors holds per-event failures;
// a failure to reach the feed at all is returned as the call's error instead.
type SyncResult struct {
	RunID      string   `json:"runId"`
	SeasonYear int      `json:"seasonYear"`
	SeasonType int      `json:"seasonType"`
	Week       int      `json:"week"`
	Processed  int      `json:"processed"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Errors     []string `json:"errors"`
}

func (r *SyncResult) add(other *SyncResult) {
	r.Processed += other.Processed
	r.Created += other.Created
	r.Updated += other.Updated
	r.Errors = append(r.Errors, other.Errors...)
}

// SyncService pulls games from the score feed into the store and hands
// finished games to the grader.
type SyncService struct {
	source ScoreSource
	games  repository.GameRepository
	grader Grader
	logger *slog.Logger
	now    func() time.Time
}

func NewSyncService(source ScoreSource, games repository.GameRepository, grader Grader, logger *slog.Logger) *SyncService {
	return &SyncService{
		source: source,
		games:  games,
		grader: grader,
		logger: logger,
		now:    time.Now,
	}
}

// SyncWeek syncs one week of one season type.
//
// seasonYear may be nil; the feed's own season year is used then, and the
// current calendar year if the feed does not say. fresh=true skips the
// response cache.
//
// PER-EVENT ISOLATION:
// Each event is transformed, upserted and (if final with a winner) graded on
// its own. A failure is recorded in the result and the loop moves on; nothing
// already written is undone.
func (s *SyncService) SyncWeek(ctx context.Context, seasonType, week int, seasonYear *int, fresh bool) (*SyncResult, error) {
	start := time.Now()
	defer func() { metrics.SyncDuration.WithLabelValues("week").Observe(time.Since(start).Seconds()) }()

	return s.syncWeek(ctx, xid.New().String(), seasonType, week, seasonYear, fresh)
}

func (s *SyncService) syncWeek(ctx context.Context, runID string, seasonType, week int, seasonYear *int, fresh bool) (*SyncResult, error) {
	if seasonType < model.SeasonTypePreseason || seasonType > model.SeasonTypePostseason {
		return nil, apperror.ValidationFailed("seasonType", "season type must be 1, 2 or 3")
	}
	if week < 1 {
		return nil, apperror.ValidationFailed("week", "week must be at least 1")
	}

	log := s.logger.With(
		slog.String("run_id", runID),
		slog.Int("season_type", seasonType),
		slog.Int("week", week),
	)

	requestedYear := 0
	if seasonYear != nil && *seasonYear > 0 {
		requestedYear = *seasonYear
	}

	sb, err := s.source.Scoreboard(ctx, requestedYear, seasonType, week, fresh)
	if err != nil {
		log.Error("fetching scoreboard failed", slog.String("error", err.Error()))
		return nil, err
	}

	year := s.now().Year()
	switch {
	case requestedYear > 0:
		year = requestedYear
	case sb.SeasonYear() > 0:
		year = sb.SeasonYear()
	}

	result := &SyncResult{
		RunID:      runID,
		SeasonYear: year,
		SeasonType: seasonType,
		Week:       week,
		Errors:     []string{},
	}

	if len(sb.Events) == 0 {
		log.Info("no games found for week")
		return result, nil
	}

	for _, event := range sb.Events {
		result.Processed++

		game, err := espn.TransformEvent(event, year, seasonType, week)
		if err != nil {
			s.recordFailure(log, result, event.ID, err)
			continue
		}

		existed, err := s.games.UpsertGame(ctx, game)
		if err != nil {
			s.recordFailure(log, result, event.ID, err)
			continue
		}
		if existed {
			result.Updated++
			metrics.SyncEventsTotal.WithLabelValues("updated").Inc()
		} else {
			result.Created++
			metrics.SyncEventsTotal.WithLabelValues("created").Inc()
		}

		// Grade on every pass, not only on the transition to final: a corrected
		// score regrades idempotently.
		if game.IsGradable() {
			if err := s.grader.GradeGame(ctx, game.ID); err != nil {
				s.recordFailure(log, result, event.ID, fmt.Errorf("grading: %w", err))
			}
		}
	}

	log.Info("sync complete",
		slog.Int("season_year", year),
		slog.Int("processed", result.Processed),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *SyncService) recordFailure(log *slog.Logger, result *SyncResult, eventID string, err error) {
	msg := fmt.Sprintf("failed to process game %s: %v", eventID, err)
	log.Warn("event sync failed", slog.String("event_id", eventID), slog.String("error", err.Error()))
	result.Errors = append(result.Errors, msg)
	metrics.SyncEventsTotal.WithLabelValues("failed").Inc()
}

// SyncCurrentWeek syncs whatever week the feed reports as current, always
// bypassing the feed caches.
//
// The feed keeps reporting a finished week as current until the next one is
// published (Tuesday, after Monday night's game). When every game of the
// reported week is over, that week is synced once more so its last results
// are stored and graded, and then the following week is synced too, up to
// the last week of the season type. The result describes both passes, with
// Week set to the later one.
func (s *SyncService) SyncCurrentWeek(ctx context.Context) (*SyncResult, error) {
	start := time.Now()
	defer func() { metrics.SyncDuration.WithLabelValues("current").Observe(time.Since(start).Seconds()) }()

	runID := xid.New().String()

	cw, err := s.source.CurrentWeek(ctx, true)
	if err != nil {
		s.logger.Error("resolving current week failed", slog.String("run_id", runID), slog.String("error", err.Error()))
		return nil, err
	}

	var year *int
	if cw.Year > 0 {
		year = &cw.Year
	}

	result, err := s.syncWeek(ctx, runID, cw.SeasonType, cw.Week, year, true)
	if err != nil {
		return nil, err
	}

	week := EffectiveWeek(cw)
	if week == cw.Week {
		return result, nil
	}

	s.logger.Info("reported week is finished, advancing",
		slog.String("run_id", runID),
		slog.Int("reported_week", cw.Week),
		slog.Int("week", week),
	)
	next, err := s.syncWeek(ctx, runID, cw.SeasonType, week, year, true)
	if err != nil {
		return result, err
	}
	next.add(result)
	return next, nil
}

// EffectiveWeek applies the finished-week rule to a current-week report.
func EffectiveWeek(cw *espn.CurrentWeek) int {
	if cw.Completed && cw.Week < model.MaxWeeks(cw.SeasonType) {
		return cw.Week + 1
	}
	return cw.Week
}

// SyncEntireSeason syncs weeks 1..MaxWeeks(seasonType) in order and stops at
// the first week with no games. On a feed failure the weeks synced so far are
// returned together with the error.
func (s *SyncService) SyncEntireSeason(ctx context.Context, seasonYear, seasonType int) (*SyncResult, error) {
	start := time.Now()
	defer func() { metrics.SyncDuration.WithLabelValues("season").Observe(time.Since(start).Seconds()) }()

	if err := validateSeason(seasonYear, seasonType); err != nil {
		return nil, err
	}

	runID := xid.New().String()
	total := &SyncResult{
		RunID:      runID,
		SeasonYear: seasonYear,
		SeasonType: seasonType,
		Errors:     []string{},
	}

	for week := 1; week <= model.MaxWeeks(seasonType); week++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		res, err := s.syncWeek(ctx, runID, seasonType, week, &seasonYear, false)
		if err != nil {
			return total, err
		}
		total.Week = week
		total.add(res)

		if res.Processed == 0 {
			s.logger.Info("no games found, stopping season sync",
				slog.String("run_id", runID),
				slog.Int("week", week),
			)
			break
		}
	}

	return total, nil
}
