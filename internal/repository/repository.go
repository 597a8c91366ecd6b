// Package repository declares the storage contracts the services depend on.
// The sqlite subpackage is the only implementation; tests use it in-memory.
package repository

import (
	"context"

	"github.com/sakif/gridiron-picks/internal/model"
)

// WeekKey identifies one week of one season scope.
type WeekKey struct {
	SeasonYear int
	SeasonType int
	Week       int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByName(ctx context.Context, displayName string) (*model.User, error)
	GetUserByToken(ctx context.Context, token string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, id int64) error
	SetUserToken(ctx context.Context, id int64, token string) error
}

type GameRepository interface {
	// UpsertGame inserts or updates by ESPNEventID and reports whether the row already existed.
	UpsertGame(ctx context.Context, game *model.Game) (existed bool, err error)
	GetGameByID(ctx context.Context, id int64) (*model.Game, error)
	GetGameByESPNID(ctx context.Context, espnEventID string) (*model.Game, error)
	ListGamesByWeek(ctx context.Context, key WeekKey) ([]model.Game, error)
}

// PredictionWrite is one item of a bulk prediction write.
// A nil Pick deletes the (user, game) prediction.
type PredictionWrite struct {
	UserID int64
	GameID int64
	Pick   *string
}

// PredictionTx is the view of the store available inside a prediction transaction.
type PredictionTx interface {
	GetGameByID(ctx context.Context, id int64) (*model.Game, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	UpsertPrediction(ctx context.Context, userID, gameID int64, pick string) error
	DeletePrediction(ctx context.Context, userID, gameID int64) error
}

type PredictionRepository interface {
	// WithPredictionTx runs fn inside one write transaction; fn's error rolls it back.
	WithPredictionTx(ctx context.Context, fn func(tx PredictionTx) error) error
	GetPrediction(ctx context.Context, userID, gameID int64) (*model.Prediction, error)
	ListPredictionsByWeek(ctx context.Context, key WeekKey) ([]model.Prediction, error)
	ListPredictionsByGame(ctx context.Context, gameID int64) ([]model.Prediction, error)
	// GradeGame inserts missing-pick losses (unless penalizeMissing is false)
	// and overwrites is_correct for every prediction on the game.
	GradeGame(ctx context.Context, gameID int64, winnerTeamID string, penalizeMissing bool) (GradeCounts, error)
}

// GradeCounts summarises one grading pass.
type GradeCounts struct {
	MissingInserted int64
	Graded          int64
}

type LeaderboardRepository interface {
	Recompute(ctx context.Context, seasonYear, seasonType int) error
	GetLeaderboard(ctx context.Context, seasonYear, seasonType int) ([]model.LeaderboardEntry, error)
	GetStats(ctx context.Context, userID int64, seasonYear, seasonType int) (*model.LeaderboardStats, error)
}

// ImportUser is a user row from a migration export.
type ImportUser struct {
	ID          *int64
	Name        string
	DisplayName string
}

// ImportPrediction references its user and game either by internal ids
// or by (user display name, external event id).
type ImportPrediction struct {
	UserID          *int64
	GameID          *int64
	UserDisplayName string
	ESPNEventID     string
	Pick            *string
}

// ImportCounts summarises a bulk import.
type ImportCounts struct {
	UsersImported       int
	PredictionsImported int
	Skipped             int
}

type ImportRepository interface {
	Import(ctx context.Context, users []ImportUser, predictions []ImportPrediction) (ImportCounts, error)
}
