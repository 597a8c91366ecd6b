package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
)

var _ repository.LeaderboardRepository = (*DB)(nil)

// Recompute rebuilds leaderboard_stats for one season scope from scratch.
//
// The DELETE and the INSERT ... SELECT share one transaction, so readers see
// either the old table or the new one, never a half-built scope. Users with
// no prediction on an in-scope game get no row (the WHERE on g drops them).
//
// win_percentage counts graded rows only: pending picks never move it, and a
// user with nothing graded yet sits at 0.
func (db *DB) Recompute(ctx context.Context, seasonYear, seasonType int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM leaderboard_stats WHERE season_year = ? AND season_type = ?`,
			seasonYear, seasonType,
		); err != nil {
			return fmt.Errorf("sqlite: clearing leaderboard %d/%d: %w", seasonYear, seasonType, err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO leaderboard_stats (
				user_id, season_year, season_type,
				total_predictions, correct_predictions, incorrect_predictions, pending_predictions,
				win_percentage, updated_at
			)
			SELECT
				u.id, ?, ?,
				COUNT(p.id),
				SUM(CASE WHEN p.is_correct = 1 THEN 1 ELSE 0 END),
				SUM(CASE WHEN p.is_correct = 0 THEN 1 ELSE 0 END),
				SUM(CASE WHEN p.is_correct IS NULL THEN 1 ELSE 0 END),
				CASE
					WHEN SUM(CASE WHEN p.is_correct IS NOT NULL THEN 1 ELSE 0 END) > 0
					THEN CAST(SUM(CASE WHEN p.is_correct = 1 THEN 1 ELSE 0 END) AS REAL) * 100.0 /
					     SUM(CASE WHEN p.is_correct IS NOT NULL THEN 1 ELSE 0 END)
					ELSE 0.0
				END,
				?
			FROM users u
			JOIN predictions p ON p.user_id = u.id
			JOIN games g ON g.id = p.game_id
			WHERE g.season_year = ? AND g.season_type = ?
			GROUP BY u.id
			HAVING COUNT(p.id) > 0`,
			seasonYear, seasonType, time.Now(), seasonYear, seasonType,
		)
		if err != nil {
			return fmt.Errorf("sqlite: rebuilding leaderboard %d/%d: %w", seasonYear, seasonType, err)
		}
		return nil
	})
}

// GetLeaderboard returns every user ranked for one season scope.
//
// Users without a stats row still appear with zero counts. Rank is a dense
// rank over (win%, correct): equal records share a rank, and display name only
// orders rows inside a tie.
func (db *DB) GetLeaderboard(ctx context.Context, seasonYear, seasonType int) ([]model.LeaderboardEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT
			u.id,
			u.display_name,
			COALESCE(ls.total_predictions, 0),
			COALESCE(ls.correct_predictions, 0),
			COALESCE(ls.incorrect_predictions, 0),
			COALESCE(ls.pending_predictions, 0),
			COALESCE(ls.win_percentage, 0.0),
			DENSE_RANK() OVER (
				ORDER BY COALESCE(ls.win_percentage, 0.0) DESC,
				         COALESCE(ls.correct_predictions, 0) DESC
			)
		FROM users u
		LEFT JOIN leaderboard_stats ls
			ON ls.user_id = u.id AND ls.season_year = ? AND ls.season_type = ?
		ORDER BY
			COALESCE(ls.win_percentage, 0.0) DESC,
			COALESCE(ls.correct_predictions, 0) DESC,
			u.display_name ASC`,
		seasonYear, seasonType,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]model.LeaderboardEntry, 0)
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(
			&e.UserID, &e.DisplayName,
			&e.TotalPredictions, &e.CorrectPredictions, &e.IncorrectPredictions, &e.PendingPredictions,
			&e.WinPercentage, &e.Rank,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating leaderboard: %w", err)
	}
	return entries, nil
}

// GetStats returns one user's stored stats row for a season scope.
func (db *DB) GetStats(ctx context.Context, userID int64, seasonYear, seasonType int) (*model.LeaderboardStats, error) {
	s := model.LeaderboardStats{UserID: userID, SeasonYear: seasonYear, SeasonType: seasonType}
	err := db.conn.QueryRowContext(ctx,
		`SELECT total_predictions, correct_predictions, incorrect_predictions, pending_predictions, win_percentage
		 FROM leaderboard_stats
		 WHERE user_id = ? AND season_year = ? AND season_type = ?`,
		userID, seasonYear, seasonType,
	).Scan(&s.TotalPredictions, &s.CorrectPredictions, &s.IncorrectPredictions, &s.PendingPredictions, &s.WinPercentage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("leaderboard stats", strconv.FormatInt(userID, 10))
		}
		return nil, fmt.Errorf("sqlite: getting stats for user %d: %w", userID, err)
	}
	return &s, nil
}
