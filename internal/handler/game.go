package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/gridiron-picks/internal/espn"
	"github.com/sakif/gridiron-picks/internal/repository"
	"github.com/sakif/gridiron-picks/internal/service"
)

// CurrentWeekSource resolves the week the score feed considers current.
type CurrentWeekSource interface {
	CurrentWeek(ctx context.Context, fresh bool) (*espn.CurrentWeek, error)
}

// GameHandler serves the public read views: schedule, current week, leaderboard.
type GameHandler struct {
	queries  *service.QueryService
	source   CurrentWeekSource
	defaults Season
	logger   *slog.Logger
}

func NewGameHandler(queries *service.QueryService, source CurrentWeekSource, defaults Season, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		queries:  queries,
		source:   source,
		defaults: defaults,
		logger:   logger,
	}
}

// HandleCurrentWeek returns the feed's current week. Browsers poll this, so
// the cached answer is fine.
//
// HTTP: GET /api/current-week
//
// RESPONSE FORMAT:
//
//	{"seasonType":2,"week":5,"year":2025,"completed":false}
func (h *GameHandler) HandleCurrentWeek(w http.ResponseWriter, r *http.Request) {
	cw, err := h.source.CurrentWeek(r.Context(), false)
	if err != nil {
		h.logger.Error("current week lookup failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cw)
}

// HandleGames returns one week's games together with every prediction on them.
//
// HTTP: GET /api/games?seasonYear=2025&seasonType=2&week=1
//
// Missing parameters default to the configured season and week 1.
func (h *GameHandler) HandleGames(w http.ResponseWriter, r *http.Request) {
	year, seasonType, err := seasonScope(r, h.defaults)
	if err != nil {
		writeError(w, err)
		return
	}
	week, err := queryInt(r, "week", 1)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.queries.Week(r.Context(), repository.WeekKey{SeasonYear: year, SeasonType: seasonType, Week: week})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleLeaderboard returns the ranked leaderboard for a season scope.
//
// HTTP: GET /api/leaderboard?seasonYear=2025&seasonType=2
func (h *GameHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	year, seasonType, err := seasonScope(r, h.defaults)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.queries.Leaderboard(r.Context(), year, seasonType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
