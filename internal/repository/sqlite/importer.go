package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/gridiron-picks/internal/repository"
)

var _ repository.ImportRepository = (*DB)(nil)

// Import loads users and predictions from a migration export, all or nothing.
//
// Both kinds are insert-if-absent (INSERT OR IGNORE): rows that already exist
// are left untouched, so running the same import twice is harmless. A
// prediction whose user or game cannot be resolved is counted as skipped.
func (db *DB) Import(ctx context.Context, users []repository.ImportUser, predictions []repository.ImportPrediction) (repository.ImportCounts, error) {
	var counts repository.ImportCounts

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()

		for _, u := range users {
			name := u.Name
			if name == "" {
				name = NormalizeName(u.DisplayName)
			}
			var id sql.NullInt64
			if u.ID != nil {
				id = sql.NullInt64{Int64: *u.ID, Valid: true}
			}
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO users (id, name, display_name, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?)`,
				id, name, u.DisplayName, now, now,
			)
			if err != nil {
				return fmt.Errorf("sqlite: importing user %q: %w", name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlite: checking rows affected: %w", err)
			}
			counts.UsersImported += int(n)
		}

		for _, p := range predictions {
			userID, gameID, ok, err := resolveImportRefs(ctx, tx, p)
			if err != nil {
				return err
			}
			if !ok {
				counts.Skipped++
				continue
			}
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO predictions (user_id, game_id, predicted_winner_team_id, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?)`,
				userID, gameID, nullString(p.Pick), now, now,
			)
			if err != nil {
				return fmt.Errorf("sqlite: importing prediction (%d, %d): %w", userID, gameID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlite: checking rows affected: %w", err)
			}
			counts.PredictionsImported += int(n)
		}
		return nil
	})
	if err != nil {
		return repository.ImportCounts{}, err
	}
	return counts, nil
}

// resolveImportRefs turns an import row into (user id, game id). Direct ids
// win; otherwise the user is found by normalized display name and the game by
// external event id. ok is false when either side does not exist.
func resolveImportRefs(ctx context.Context, tx *sql.Tx, p repository.ImportPrediction) (userID, gameID int64, ok bool, err error) {
	userQuery, userArg := `SELECT id FROM users WHERE name = ?`, any(NormalizeName(p.UserDisplayName))
	if p.UserID != nil {
		userQuery, userArg = `SELECT id FROM users WHERE id = ?`, any(*p.UserID)
	}
	gameQuery, gameArg := `SELECT id FROM games WHERE espn_event_id = ?`, any(p.ESPNEventID)
	if p.GameID != nil {
		gameQuery, gameArg = `SELECT id FROM games WHERE id = ?`, any(*p.GameID)
	}

	if err := tx.QueryRowContext(ctx, userQuery, userArg).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("sqlite: resolving import user: %w", err)
	}
	if err := tx.QueryRowContext(ctx, gameQuery, gameArg).Scan(&gameID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("sqlite: resolving import game: %w", err)
	}
	return userID, gameID, true, nil
}
