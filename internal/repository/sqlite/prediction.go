package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
)

var _ repository.PredictionRepository = (*DB)(nil)

const predictionColumns = `p.id, p.user_id, p.game_id, p.predicted_winner_team_id, p.is_correct, p.created_at, p.updated_at`

// predictionTx is the transaction-scoped view handed to WithPredictionTx callbacks.
// Everything it does goes through tx: with a single-connection pool, touching
// db.conn here would wait forever for the connection the tx already holds.
type predictionTx struct {
	tx *sql.Tx
}

var _ repository.PredictionTx = (*predictionTx)(nil)

// WithPredictionTx runs fn inside one write transaction.
// A non-nil error from fn rolls back every write fn made.
func (db *DB) WithPredictionTx(ctx context.Context, fn func(tx repository.PredictionTx) error) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&predictionTx{tx: tx})
	})
}

func (p *predictionTx) GetGameByID(ctx context.Context, id int64) (*model.Game, error) {
	return getGameByID(ctx, p.tx, id)
}

func (p *predictionTx) UserExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := p.tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking user %d: %w", id, err)
	}
	return true, nil
}

// UpsertPrediction sets the user's pick for a game. Changing a pick clears
// any previous grade; the next grading pass decides it again.
func (p *predictionTx) UpsertPrediction(ctx context.Context, userID, gameID int64, pick string) error {
	now := time.Now()
	_, err := p.tx.ExecContext(ctx,
		`INSERT INTO predictions (user_id, game_id, predicted_winner_team_id, is_correct, created_at, updated_at)
		 VALUES (?, ?, ?, NULL, ?, ?)
		 ON CONFLICT (user_id, game_id) DO UPDATE SET
			predicted_winner_team_id = excluded.predicted_winner_team_id,
			is_correct = NULL,
			updated_at = excluded.updated_at`,
		userID, gameID, pick, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting prediction (%d, %d): %w", userID, gameID, err)
	}
	return nil
}

// DeletePrediction removes the (user, game) prediction. Deleting a row that
// does not exist is not an error.
func (p *predictionTx) DeletePrediction(ctx context.Context, userID, gameID int64) error {
	_, err := p.tx.ExecContext(ctx,
		`DELETE FROM predictions WHERE user_id = ? AND game_id = ?`, userID, gameID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting prediction (%d, %d): %w", userID, gameID, err)
	}
	return nil
}

// GetPrediction returns the (user, game) prediction or apperror.ErrNotFound.
func (db *DB) GetPrediction(ctx context.Context, userID, gameID int64) (*model.Prediction, error) {
	pred, err := scanPrediction(db.conn.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions p WHERE p.user_id = ? AND p.game_id = ?`,
		userID, gameID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("prediction", fmt.Sprintf("%d/%d", userID, gameID))
		}
		return nil, fmt.Errorf("sqlite: getting prediction (%d, %d): %w", userID, gameID, err)
	}
	return pred, nil
}

// ListPredictionsByWeek returns every prediction on one week's games.
func (db *DB) ListPredictionsByWeek(ctx context.Context, key repository.WeekKey) ([]model.Prediction, error) {
	return db.listPredictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions p
		 JOIN games g ON g.id = p.game_id
		 WHERE g.season_year = ? AND g.season_type = ? AND g.week = ?
		 ORDER BY p.game_id, p.user_id`,
		key.SeasonYear, key.SeasonType, key.Week,
	)
}

// ListPredictionsByGame returns every prediction on one game.
func (db *DB) ListPredictionsByGame(ctx context.Context, gameID int64) ([]model.Prediction, error) {
	return db.listPredictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions p WHERE p.game_id = ? ORDER BY p.user_id`,
		gameID,
	)
}

func (db *DB) listPredictions(ctx context.Context, query string, args ...any) ([]model.Prediction, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing predictions: %w", err)
	}
	defer rows.Close()

	preds := make([]model.Prediction, 0)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning prediction row: %w", err)
		}
		preds = append(preds, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating predictions: %w", err)
	}
	return preds, nil
}

// GradeGame grades every prediction on a final game in one transaction.
//
// GRADING IN TWO STATEMENTS:
//  1. Users who never picked get a row with a NULL pick (skipped when
//     penalizeMissing is false, for exempt games).
//  2. Every row on the game is overwritten with predicted == winner. A NULL
//     pick compares as NULL, which falls through to the ELSE branch: a loss.
//
// Both statements are idempotent, so regrading the same result changes nothing,
// and regrading a corrected result flips exactly the rows it should.
func (db *DB) GradeGame(ctx context.Context, gameID int64, winnerTeamID string, penalizeMissing bool) (repository.GradeCounts, error) {
	var counts repository.GradeCounts

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()

		if penalizeMissing {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO predictions (user_id, game_id, predicted_winner_team_id, is_correct, created_at, updated_at)
				 SELECT u.id, ?, NULL, 0, ?, ?
				 FROM users u
				 WHERE NOT EXISTS (
					SELECT 1 FROM predictions p WHERE p.user_id = u.id AND p.game_id = ?
				 )`,
				gameID, now, now, gameID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: inserting missing picks for game %d: %w", gameID, err)
			}
			if counts.MissingInserted, err = res.RowsAffected(); err != nil {
				return fmt.Errorf("sqlite: checking rows affected: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE predictions
			 SET is_correct = CASE WHEN predicted_winner_team_id = ? THEN 1 ELSE 0 END,
			     updated_at = ?
			 WHERE game_id = ?`,
			winnerTeamID, now, gameID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: grading game %d: %w", gameID, err)
		}
		if counts.Graded, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return repository.GradeCounts{}, err
	}
	return counts, nil
}

func scanPrediction(row rowScanner) (*model.Prediction, error) {
	var (
		p         model.Prediction
		pick      sql.NullString
		isCorrect sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.GameID, &pick, &isCorrect, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.PredictedWinnerTeamID = stringPtr(pick)
	p.IsCorrect = boolPtr(isCorrect)
	return &p, nil
}
