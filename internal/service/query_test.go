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
)

func TestQueryWeek(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	q := NewQueryService(db, db, db)

	user := createUser(t, db, "Alice")
	g1 := createGame(t, db, "g1", time.Now().Add(time.Hour))
	createGame(t, db, "g2", time.Now().Add(2*time.Hour))
	pick(t, db, user.ID, g1.ID, "12")

	week, err := q.Week(ctx, week1())
	require.NoError(t, err)
	assert.Len(t, week.Games, 2)
	require.Len(t, week.Predictions, 1)
	assert.Equal(t, g1.ID, week.Predictions[0].GameID)

	other, err := q.Week(ctx, repository.WeekKey{SeasonYear: 2025, SeasonType: model.SeasonTypeRegular, Week: 2})
	require.NoError(t, err)
	assert.Empty(t, other.Games)
	assert.Empty(t, other.Predictions)
}

func TestQueryWeek_Validation(t *testing.T) {
	q := NewQueryService(newTestStore(t), nil, nil)

	for _, key := range []repository.WeekKey{
		{SeasonYear: 2025, SeasonType: 2, Week: 0},
		{SeasonYear: 2025, SeasonType: 2, Week: maxWeekNumber + 1},
		{SeasonYear: 2025, SeasonType: 0, Week: 1},
		{SeasonYear: 1, SeasonType: 2, Week: 1},
	} {
		_, err := q.Week(context.Background(), key)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "key %+v", key)
	}
}

func TestQueryStats_NoRowIsZero(t *testing.T) {
	db := newTestStore(t)
	q := NewQueryService(db, db, db)
	user := createUser(t, db, "Alice")

	stats, err := q.Stats(context.Background(), user.ID, 2025, model.SeasonTypeRegular)
	require.NoError(t, err)
	assert.Equal(t, &model.LeaderboardStats{UserID: user.ID, SeasonYear: 2025, SeasonType: model.SeasonTypeRegular}, stats)
}

func TestQueryLeaderboard(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	q := NewQueryService(db, db, db)
	scoring := NewScoringService(db, db, db, nil, testLogger())

	alice := createUser(t, db, "Alice")
	bob := createUser(t, db, "Bob")
	game := createGame(t, db, "g1", time.Now().Add(-3*time.Hour))
	pick(t, db, alice.ID, game.ID, "12")
	pick(t, db, bob.ID, game.ID, "2")
	finishGame(t, db, game, "12")
	require.NoError(t, scoring.GradeGame(ctx, game.ID))

	board, err := q.Leaderboard(ctx, 2025, model.SeasonTypeRegular)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "Alice", board[0].DisplayName)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "Bob", board[1].DisplayName)
	assert.Equal(t, 2, board[1].Rank)

	_, err = q.Leaderboard(ctx, 2025, 7)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
