package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/auth"
	"github.com/sakif/gridiron-picks/internal/metrics"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
)

// MaxBatchSize bounds one bulk prediction request. A full regular-season week
// is 16 games; an admin correcting a whole season for one user stays well under.
const MaxBatchSize = 500

// PredictionInput is one item of a bulk save. A nil PredictedWinnerTeamID
// deletes the user's prediction for the game.
type PredictionInput struct {
	UserID                int64   `json:"userId" validate:"required,gt=0"`
	GameID                int64   `json:"gameId" validate:"required,gt=0"`
	PredictedWinnerTeamID *string `json:"predictedWinnerTeamId"`
}

type BulkResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// PredictionService applies user picks.
type PredictionService struct {
	repo   repository.PredictionRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewPredictionService(repo repository.PredictionRepository, logger *slog.Logger) *PredictionService {
	return &PredictionService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// BulkSave applies a batch of picks for principal p.
//
// ORDER OF CHECKS:
//  1. Shape: non-empty, bounded, positive ids, no empty pick. Any failure
//     rejects the whole batch with ErrValidation.
//  2. Ownership: every item must belong to a user p can act for. Any foreign
//     user id rejects the whole batch with ErrForbidden, before any write.
//  3. One transaction, items in order. A missing user or game (ErrNotFound) or a pick
//     that is neither team (ErrValidation) rolls the batch back. An item whose
//     game has kicked off is skipped and counted; the rest still apply.
//
// Items are applied in order, so a later item for the same (user, game) wins.
func (s *PredictionService) BulkSave(ctx context.Context, p *auth.Principal, items []PredictionInput) (*BulkResult, error) {
	if err := validateBatch(items); err != nil {
		return nil, err
	}
	if err := checkOwnership(p, items); err != nil {
		if p != nil {
			s.logger.Warn("bulk prediction rejected: foreign user id",
				slog.String("principal", string(p.Kind)),
				slog.Int64("principal_user_id", p.UserID),
			)
		}
		return nil, err
	}

	now := s.now()
	result := &BulkResult{}

	err := s.repo.WithPredictionTx(ctx, func(tx repository.PredictionTx) error {
		result.Applied, result.Skipped = 0, 0

		for i, item := range items {
			game, err := loadTarget(ctx, tx, item)
			if err != nil {
				return err
			}
			if item.PredictedWinnerTeamID != nil && !game.HasTeam(*item.PredictedWinnerTeamID) {
				return apperror.ValidationFailed(
					fmt.Sprintf("predictions[%d].predictedWinnerTeamId", i),
					fmt.Sprintf("team %s is not playing in game %d", *item.PredictedWinnerTeamID, game.ID),
				)
			}
			if game.IsLocked(now) {
				lockErr := apperror.Locked(game.ID)
				s.logger.Info("skipping locked prediction",
					slog.Int64("user_id", item.UserID),
					slog.Int64("game_id", game.ID),
					slog.String("reason", lockErr.Error()),
				)
				result.Skipped++
				continue
			}

			if err := applyPrediction(ctx, tx, item); err != nil {
				return err
			}
			result.Applied++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PredictionWritesTotal.WithLabelValues("applied").Add(float64(result.Applied))
	metrics.PredictionWritesTotal.WithLabelValues("skipped_locked").Add(float64(result.Skipped))
	return result, nil
}

// SavePrediction sets a single pick. Unlike BulkSave, a kicked-off game is
// reported to the caller as ErrLocked.
func (s *PredictionService) SavePrediction(ctx context.Context, p *auth.Principal, userID, gameID int64, pick string) error {
	return s.single(ctx, p, PredictionInput{UserID: userID, GameID: gameID, PredictedWinnerTeamID: &pick})
}

// DeletePrediction removes a single pick, with the same lock rule as SavePrediction.
func (s *PredictionService) DeletePrediction(ctx context.Context, p *auth.Principal, userID, gameID int64) error {
	return s.single(ctx, p, PredictionInput{UserID: userID, GameID: gameID})
}

func (s *PredictionService) single(ctx context.Context, p *auth.Principal, item PredictionInput) error {
	items := []PredictionInput{item}
	if err := validateBatch(items); err != nil {
		return err
	}
	if err := checkOwnership(p, items); err != nil {
		return err
	}

	now := s.now()
	return s.repo.WithPredictionTx(ctx, func(tx repository.PredictionTx) error {
		game, err := loadTarget(ctx, tx, item)
		if err != nil {
			return err
		}
		if item.PredictedWinnerTeamID != nil && !game.HasTeam(*item.PredictedWinnerTeamID) {
			return apperror.ValidationFailed("predictedWinnerTeamId",
				fmt.Sprintf("team %s is not playing in game %d", *item.PredictedWinnerTeamID, game.ID))
		}
		if game.IsLocked(now) {
			return apperror.Locked(game.ID)
		}
		return applyPrediction(ctx, tx, item)
	})
}

// loadTarget checks the item's user exists and returns its game. Either one
// missing is ErrNotFound.
func loadTarget(ctx context.Context, tx repository.PredictionTx, item PredictionInput) (*model.Game, error) {
	ok, err := tx.UserExists(ctx, item.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(item.UserID, 10))
	}
	return tx.GetGameByID(ctx, item.GameID)
}

func applyPrediction(ctx context.Context, tx repository.PredictionTx, item PredictionInput) error {
	if item.PredictedWinnerTeamID == nil {
		return tx.DeletePrediction(ctx, item.UserID, item.GameID)
	}
	return tx.UpsertPrediction(ctx, item.UserID, item.GameID, *item.PredictedWinnerTeamID)
}

func validateBatch(items []PredictionInput) error {
	if len(items) == 0 {
		return apperror.ValidationFailed("predictions", "at least one prediction is required")
	}
	if len(items) > MaxBatchSize {
		return apperror.ValidationFailed("predictions",
			fmt.Sprintf("at most %d predictions per request", MaxBatchSize))
	}
	for i, item := range items {
		if item.UserID <= 0 {
			return apperror.ValidationFailed(fmt.Sprintf("predictions[%d].userId", i), "userId must be a positive integer")
		}
		if item.GameID <= 0 {
			return apperror.ValidationFailed(fmt.Sprintf("predictions[%d].gameId", i), "gameId must be a positive integer")
		}
		if item.PredictedWinnerTeamID != nil && strings.TrimSpace(*item.PredictedWinnerTeamID) == "" {
			return apperror.ValidationFailed(fmt.Sprintf("predictions[%d].predictedWinnerTeamId", i),
				"predictedWinnerTeamId must be a team id or null")
		}
	}
	return nil
}

// checkOwnership fails closed: one foreign item rejects everything.
func checkOwnership(p *auth.Principal, items []PredictionInput) error {
	if p == nil {
		return apperror.Unauthorized("authentication required")
	}
	for _, item := range items {
		if !p.CanActFor(item.UserID) {
			return apperror.Forbidden(fmt.Sprintf("not allowed to change predictions for user %d", item.UserID))
		}
	}
	return nil
}
