package service

import (
	"context"
	"errors"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
)

// maxWeekNumber is a sanity bound on week query parameters, not a schedule rule.
const maxWeekNumber = 25

// WeekGames is one week's schedule with every prediction made on it.
type WeekGames struct {
	Games       []model.Game       `json:"games"`
	Predictions []model.Prediction `json:"predictions"`
}

// QueryService serves the read-only views: schedules, leaderboard, stats.
type QueryService struct {
	games       repository.GameRepository
	predictions repository.PredictionRepository
	leaderboard repository.LeaderboardRepository
}

func NewQueryService(games repository.GameRepository, predictions repository.PredictionRepository, leaderboard repository.LeaderboardRepository) *QueryService {
	return &QueryService{games: games, predictions: predictions, leaderboard: leaderboard}
}

func (q *QueryService) Week(ctx context.Context, key repository.WeekKey) (*WeekGames, error) {
	if err := validateSeason(key.SeasonYear, key.SeasonType); err != nil {
		return nil, err
	}
	if key.Week < 1 || key.Week > maxWeekNumber {
		return nil, apperror.ValidationFailed("week", "week is out of range")
	}

	games, err := q.games.ListGamesByWeek(ctx, key)
	if err != nil {
		return nil, err
	}
	preds, err := q.predictions.ListPredictionsByWeek(ctx, key)
	if err != nil {
		return nil, err
	}
	return &WeekGames{Games: games, Predictions: preds}, nil
}

func (q *QueryService) Leaderboard(ctx context.Context, seasonYear, seasonType int) ([]model.LeaderboardEntry, error) {
	if err := validateSeason(seasonYear, seasonType); err != nil {
		return nil, err
	}
	return q.leaderboard.GetLeaderboard(ctx, seasonYear, seasonType)
}

// Stats returns a user's record for a season scope. A user with no graded or
// pending picks gets an all-zero record rather than ErrNotFound.
func (q *QueryService) Stats(ctx context.Context, userID int64, seasonYear, seasonType int) (*model.LeaderboardStats, error) {
	if err := validateSeason(seasonYear, seasonType); err != nil {
		return nil, err
	}
	stats, err := q.leaderboard.GetStats(ctx, userID, seasonYear, seasonType)
	if errors.Is(err, apperror.ErrNotFound) {
		return &model.LeaderboardStats{UserID: userID, SeasonYear: seasonYear, SeasonType: seasonType}, nil
	}
	return stats, err
}
