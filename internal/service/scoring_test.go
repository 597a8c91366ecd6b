package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
	"github.com/sakif/gridiron-picks/internal/repository/sqlite"
)

func finishGame(t *testing.T, db *sqlite.DB, g *model.Game, winner string) {
	t.Helper()
	g.Status = model.GameStatusFinal
	g.WinnerTeamID = &winner
	if _, err := db.UpsertGame(context.Background(), g); err != nil {
		t.Fatalf("failed to finish game: %v", err)
	}
}

func pick(t *testing.T, db *sqlite.DB, userID, gameID int64, team string) {
	t.Helper()
	ctx := context.Background()
	err := db.WithPredictionTx(ctx, func(tx repository.PredictionTx) error {
		return tx.UpsertPrediction(ctx, userID, gameID, team)
	})
	if err != nil {
		t.Fatalf("failed to set pick: %v", err)
	}
}

func TestParseExemptPairings(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ExemptPairings
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"blank items ignored", " , ", nil, false},
		{"single", "GB:DET", ExemptPairings{{A: "GB", B: "DET"}}, false},
		{"several with spaces", " GB : DET , 12:2 ", ExemptPairings{{A: "GB", B: "DET"}, {A: "12", B: "2"}}, false},
		{"missing colon", "GBDET", nil, true},
		{"missing side", "GB:", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExemptPairings(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExemptPairings_Matches(t *testing.T) {
	game := &model.Game{
		HomeTeam: model.Team{ID: "9", Abbreviation: "GB"},
		AwayTeam: model.Team{ID: "8", Abbreviation: "DET"},
	}

	assert.True(t, ExemptPairings{{A: "GB", B: "DET"}}.Matches(game))
	assert.True(t, ExemptPairings{{A: "det", B: "gb"}}.Matches(game), "order and case do not matter")
	assert.True(t, ExemptPairings{{A: "8", B: "9"}}.Matches(game), "team ids match too")
	assert.False(t, ExemptPairings{{A: "GB", B: "CHI"}}.Matches(game))
	assert.False(t, ExemptPairings{{A: "GB", B: "GB"}}.Matches(game))
	assert.False(t, ExemptPairings(nil).Matches(game))
}

func TestGradeGame_GradesPicksAndPenalizesMissing(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	svc := NewScoringService(db, db, db, nil, testLogger())

	right := createUser(t, db, "Right")
	wrong := createUser(t, db, "Wrong")
	none := createUser(t, db, "None")
	game := createGame(t, db, "g1", time.Now().Add(-3*time.Hour))
	pick(t, db, right.ID, game.ID, "12")
	pick(t, db, wrong.ID, game.ID, "2")
	finishGame(t, db, game, "12")

	require.NoError(t, svc.GradeGame(ctx, game.ID))

	preds, err := db.ListPredictionsByGame(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, preds, 3)

	byUser := map[int64]model.Prediction{}
	for _, p := range preds {
		byUser[p.UserID] = p
	}
	require.NotNil(t, byUser[right.ID].IsCorrect)
	assert.True(t, *byUser[right.ID].IsCorrect)
	require.NotNil(t, byUser[wrong.ID].IsCorrect)
	assert.False(t, *byUser[wrong.ID].IsCorrect)
	assert.Nil(t, byUser[none.ID].PredictedWinnerTeamID)
	require.NotNil(t, byUser[none.ID].IsCorrect)
	assert.False(t, *byUser[none.ID].IsCorrect)

	stats, err := db.GetStats(ctx, right.ID, 2025, model.SeasonTypeRegular)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CorrectPredictions)
	assert.InDelta(t, 100.0, stats.WinPercentage, 0.001)
}

func TestGradeGame_IsIdempotent(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	svc := NewScoringService(db, db, db, nil, testLogger())

	user := createUser(t, db, "Alice")
	createUser(t, db, "Bob")
	game := createGame(t, db, "g1", time.Now().Add(-3*time.Hour))
	pick(t, db, user.ID, game.ID, "2")
	finishGame(t, db, game, "2")

	require.NoError(t, svc.GradeGame(ctx, game.ID))
	first, err := db.GetLeaderboard(ctx, 2025, model.SeasonTypeRegular)
	require.NoError(t, err)

	require.NoError(t, svc.GradeGame(ctx, game.ID))
	second, err := db.GetLeaderboard(ctx, 2025, model.SeasonTypeRegular)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	preds, err := db.ListPredictionsByGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Len(t, preds, 2, "penalty rows are not duplicated")
}

func TestGradeGame_CorrectedWinnerRegrades(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	svc := NewScoringService(db, db, db, nil, testLogger())

	user := createUser(t, db, "Alice")
	game := createGame(t, db, "g1", time.Now().Add(-3*time.Hour))
	pick(t, db, user.ID, game.ID, "12")

	finishGame(t, db, game, "2")
	require.NoError(t, svc.GradeGame(ctx, game.ID))
	finishGame(t, db, game, "12")
	require.NoError(t, svc.GradeGame(ctx, game.ID))

	p, err := db.GetPrediction(ctx, user.ID, game.ID)
	require.NoError(t, err)
	require.NotNil(t, p.IsCorrect)
	assert.True(t, *p.IsCorrect)

	stats, err := db.GetStats(ctx, user.ID, 2025, model.SeasonTypeRegular)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CorrectPredictions)
	assert.Equal(t, 0, stats.IncorrectPredictions)
}

func TestGradeGame_ExemptMatchupSkipsPenalty(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	svc := NewScoringService(db, db, db, ExemptPairings{{A: "BUF", B: "KC"}}, testLogger())

	picker := createUser(t, db, "Picker")
	idle := createUser(t, db, "Idle")
	game := createGame(t, db, "g1", time.Now().Add(-3*time.Hour))
	pick(t, db, picker.ID, game.ID, "2")
	finishGame(t, db, game, "12")

	require.NoError(t, svc.GradeGame(ctx, game.ID))

	_, err := db.GetPrediction(ctx, idle.ID, game.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	p, err := db.GetPrediction(ctx, picker.ID, game.ID)
	require.NoError(t, err)
	require.NotNil(t, p.IsCorrect)
	assert.False(t, *p.IsCorrect, "existing picks are still graded")
}

func TestGradeGame_NoWinnerIsNoop(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	svc := NewScoringService(db, db, db, nil, testLogger())

	user := createUser(t, db, "Alice")
	game := createGame(t, db, "g1", time.Now().Add(-3*time.Hour))
	pick(t, db, user.ID, game.ID, "12")

	require.NoError(t, svc.GradeGame(ctx, game.ID))

	p, err := db.GetPrediction(ctx, user.ID, game.ID)
	require.NoError(t, err)
	assert.Nil(t, p.IsCorrect)

	board, err := db.GetLeaderboard(ctx, 2025, model.SeasonTypeRegular)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 0, board[0].TotalPredictions, "leaderboard is not recomputed")
}

func TestGradeGame_UnknownGame(t *testing.T) {
	db := newTestStore(t)
	svc := NewScoringService(db, db, db, nil, testLogger())

	err := svc.GradeGame(context.Background(), 999)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestScoringRecompute_ValidatesScope(t *testing.T) {
	db := newTestStore(t)
	svc := NewScoringService(db, db, db, nil, testLogger())

	assert.True(t, errors.Is(svc.Recompute(context.Background(), 2025, 4), apperror.ErrValidation))
	assert.True(t, errors.Is(svc.Recompute(context.Background(), 0, 2), apperror.ErrValidation))
	assert.NoError(t, svc.Recompute(context.Background(), 2025, 2))
}
