package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/gridiron-picks/internal/service"
)

// SyncHandler exposes the score pipeline and data loading to the scheduler
// and to admins.
type SyncHandler struct {
	sync     *service.SyncService
	scoring  *service.ScoringService
	importer *service.Importer
	defaults Season
	logger   *slog.Logger
}

func NewSyncHandler(
	sync *service.SyncService,
	scoring *service.ScoringService,
	importer *service.Importer,
	defaults Season,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		sync:     sync,
		scoring:  scoring,
		importer: importer,
		defaults: defaults,
		logger:   logger,
	}
}

type syncResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Result  *service.SyncResult `json:"result"`
}

// HandleSyncScores refreshes scores and grades finished games.
//
// HTTP: GET|POST /api/cron/sync-scores[?week=5&seasonType=2&seasonYear=2025]
//
// Without week, the feed's current week is synced (advancing past a finished
// week). With week, exactly that week is synced; seasonType defaults to the
// configured one and seasonYear to whatever the feed reports.
func (h *SyncHandler) HandleSyncScores(w http.ResponseWriter, r *http.Request) {
	week, err := queryIntPtr(r, "week")
	if err != nil {
		writeError(w, err)
		return
	}

	var result *service.SyncResult
	if week == nil {
		result, err = h.sync.SyncCurrentWeek(r.Context())
	} else {
		seasonType, qerr := queryInt(r, "seasonType", h.defaults.Type)
		if qerr != nil {
			writeError(w, qerr)
			return
		}
		seasonYear, qerr := queryIntPtr(r, "seasonYear")
		if qerr != nil {
			writeError(w, qerr)
			return
		}
		result, err = h.sync.SyncWeek(r.Context(), seasonType, *week, seasonYear, true)
	}
	if err != nil {
		h.logger.Error("score sync failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{Success: true, Result: result})
}

// HandleSeed loads every week of a season.
//
// HTTP: POST /api/admin/seed[?seasonYear=2025&seasonType=2]
//
// If the feed fails partway through, the weeks already stored stay stored;
// the error is reported and the sync can simply be run again.
func (h *SyncHandler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	year, seasonType, err := seasonScope(r, h.defaults)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.sync.SyncEntireSeason(r.Context(), year, seasonType)
	if err != nil {
		attrs := []any{slog.String("error", err.Error())}
		if result != nil {
			attrs = append(attrs, slog.Int("weeks_synced", result.Week), slog.Int("processed", result.Processed))
		}
		h.logger.Error("season seed failed", attrs...)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{Success: true, Message: "games seeded", Result: result})
}

// HandleImport loads users and predictions from a previous deployment.
//
// HTTP: POST /api/import
// REQUEST BODY:
//
//	{"users": [{"id": 1, "displayName": "Alice"}],
//	 "predictions": [{"userDisplayName": "Alice", "espnEventId": "401", "predictedWinnerTeamId": "12"}]}
func (h *SyncHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req service.ImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.importer.Import(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleRecompute rebuilds the leaderboard for a season scope.
//
// HTTP: POST /api/admin/leaderboard/recompute[?seasonYear=2025&seasonType=2]
func (h *SyncHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	year, seasonType, err := seasonScope(r, h.defaults)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.scoring.Recompute(r.Context(), year, seasonType); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "seasonYear": year, "seasonType": seasonType})
}
