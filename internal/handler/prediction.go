package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/auth"
	"github.com/sakif/gridiron-picks/internal/service"
)

// PredictionHandler manages user picks.
type PredictionHandler struct {
	predictions *service.PredictionService
	logger      *slog.Logger
}

func NewPredictionHandler(predictions *service.PredictionService, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{predictions: predictions, logger: logger}
}

type bulkPredictionRequest struct {
	Predictions []service.PredictionInput `json:"predictions" validate:"required,min=1,dive"`
}

// HandleBulk applies a batch of picks.
//
// HTTP: POST /api/predictions
// REQUEST BODY:
//
//	{"predictions": [
//	  {"userId": 3, "gameId": 41, "predictedWinnerTeamId": "12"},
//	  {"userId": 3, "gameId": 42, "predictedWinnerTeamId": null}
//	]}
//
// A null pick deletes the prediction. Picks on games that have kicked off are
// skipped rather than failing the batch:
//
//	{"applied": 1, "skipped": 1}
func (h *PredictionHandler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkPredictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	result, err := h.predictions.BulkSave(r.Context(), p, req.Predictions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type singlePredictionRequest struct {
	UserID                int64  `json:"userId" validate:"omitempty,gt=0"`
	PredictedWinnerTeamID string `json:"predictedWinnerTeamId" validate:"required"`
}

// HandlePut sets one pick.
//
// HTTP: PUT /api/predictions/{gameId}
// REQUEST BODY: {"predictedWinnerTeamId": "12"}
//
// userId may be given by an admin acting for someone else; a user token
// always acts for its own user. A game that has kicked off answers 409 locked.
func (h *PredictionHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	var req singlePredictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	userID, err := actingUser(p, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.predictions.SavePrediction(r.Context(), p, userID, gameID, req.PredictedWinnerTeamID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":                userID,
		"gameId":                gameID,
		"predictedWinnerTeamId": req.PredictedWinnerTeamID,
	})
}

// HandleDelete removes one pick.
//
// HTTP: DELETE /api/predictions/{gameId}?userId=3
func (h *PredictionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r, "gameId")
	if err != nil {
		writeError(w, err)
		return
	}
	requested, err := queryInt(r, "userId", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	userID, err := actingUser(p, int64(requested))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.predictions.DeletePrediction(r.Context(), p, userID, gameID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actingUser picks the user a single-item request is about. Ownership itself
// is checked by the service.
func actingUser(p *auth.Principal, requested int64) (int64, error) {
	if p == nil {
		return 0, apperror.Unauthorized("authentication required")
	}
	if requested > 0 {
		return requested, nil
	}
	if p.Kind == auth.KindUser {
		return p.UserID, nil
	}
	return 0, apperror.ValidationFailed("userId", "userId is required")
}
