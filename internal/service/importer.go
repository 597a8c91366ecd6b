package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/repository"
)

// ImportRequest is a migration export: users first, then their predictions.
type ImportRequest struct {
	Users       []ImportUserInput       `json:"users" validate:"dive"`
	Predictions []ImportPredictionInput `json:"predictions" validate:"dive"`
}

type ImportUserInput struct {
	ID          *int64 `json:"id" validate:"omitempty,gt=0"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName" validate:"max=50"`
}

// ImportPredictionInput names its user by userId or userDisplayName, and its
// game by gameId or espnEventId.
type ImportPredictionInput struct {
	UserID                *int64  `json:"userId" validate:"omitempty,gt=0"`
	GameID                *int64  `json:"gameId" validate:"omitempty,gt=0"`
	UserDisplayName       string  `json:"userDisplayName"`
	ESPNEventID           string  `json:"espnEventId"`
	PredictedWinnerTeamID *string `json:"predictedWinnerTeamId"`
}

// Exports from earlier deployments spell fields in snake_case (display_name,
// user_id, game_id, predicted_winner_team_id). Both spellings are accepted;
// the camelCase one wins when a record carries both.

func (u *ImportUserInput) UnmarshalJSON(data []byte) error {
	type plain ImportUserInput
	var aux struct {
		plain
		SnakeDisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = ImportUserInput(aux.plain)
	if u.DisplayName == "" {
		u.DisplayName = aux.SnakeDisplayName
	}
	return nil
}

func (p *ImportPredictionInput) UnmarshalJSON(data []byte) error {
	type plain ImportPredictionInput
	var aux struct {
		plain
		SnakeUserID          *int64  `json:"user_id"`
		SnakeGameID          *int64  `json:"game_id"`
		SnakeUserDisplayName string  `json:"user_display_name"`
		SnakeESPNEventID     string  `json:"espn_event_id"`
		SnakePick            *string `json:"predicted_winner_team_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = ImportPredictionInput(aux.plain)
	if p.UserID == nil {
		p.UserID = aux.SnakeUserID
	}
	if p.GameID == nil {
		p.GameID = aux.SnakeGameID
	}
	if p.UserDisplayName == "" {
		p.UserDisplayName = aux.SnakeUserDisplayName
	}
	if p.ESPNEventID == "" {
		p.ESPNEventID = aux.SnakeESPNEventID
	}
	if p.PredictedWinnerTeamID == nil {
		p.PredictedWinnerTeamID = aux.SnakePick
	}
	return nil
}

type ImportResult struct {
	UsersImported       int `json:"usersImported"`
	PredictionsImported int `json:"predictionsImported"`
	Skipped             int `json:"skipped"`
}

// Importer loads data from an export of a previous deployment. It only ever
// inserts: existing users and predictions are never overwritten.
type Importer struct {
	repo   repository.ImportRepository
	logger *slog.Logger
}

func NewImporter(repo repository.ImportRepository, logger *slog.Logger) *Importer {
	return &Importer{repo: repo, logger: logger}
}

func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	users := make([]repository.ImportUser, 0, len(req.Users))
	for i, u := range req.Users {
		display := strings.TrimSpace(u.DisplayName)
		if display == "" {
			display = strings.TrimSpace(u.Name)
		}
		if display == "" {
			return nil, apperror.ValidationFailed(fmt.Sprintf("users[%d].displayName", i), "displayName or name is required")
		}
		users = append(users, repository.ImportUser{
			ID:          u.ID,
			Name:        strings.ToLower(strings.TrimSpace(u.Name)),
			DisplayName: display,
		})
	}

	preds := make([]repository.ImportPrediction, 0, len(req.Predictions))
	for i, p := range req.Predictions {
		if p.UserID == nil && strings.TrimSpace(p.UserDisplayName) == "" {
			return nil, apperror.ValidationFailed(fmt.Sprintf("predictions[%d]", i), "userId or userDisplayName is required")
		}
		if p.GameID == nil && strings.TrimSpace(p.ESPNEventID) == "" {
			return nil, apperror.ValidationFailed(fmt.Sprintf("predictions[%d]", i), "gameId or espnEventId is required")
		}
		preds = append(preds, repository.ImportPrediction{
			UserID:          p.UserID,
			GameID:          p.GameID,
			UserDisplayName: p.UserDisplayName,
			ESPNEventID:     strings.TrimSpace(p.ESPNEventID),
			Pick:            p.PredictedWinnerTeamID,
		})
	}

	counts, err := im.repo.Import(ctx, users, preds)
	if err != nil {
		return nil, err
	}

	im.logger.Info("import complete",
		slog.Int("users_imported", counts.UsersImported),
		slog.Int("predictions_imported", counts.PredictionsImported),
		slog.Int("skipped", counts.Skipped),
	)
	return &ImportResult{
		UsersImported:       counts.UsersImported,
		PredictionsImported: counts.PredictionsImported,
		Skipped:             counts.Skipped,
	}, nil
}
