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

var _ repository.GameRepository = (*DB)(nil)

const gameColumns = `id, espn_event_id, season_year, season_type, week,
	home_team_id, home_team_name, home_team_abbreviation, home_team_logo,
	away_team_id, away_team_name, away_team_abbreviation, away_team_logo,
	game_date, game_status, home_score, away_score, winner_team_id,
	created_at, updated_at`

// UpsertGame inserts or updates a game keyed by its ESPN event id.
//
// The existence check and the write happen in one transaction, so "existed"
// is accurate even if two syncs race. ON CONFLICT makes the write itself
// idempotent: the same event id can never produce a second row.
//
// On return *game is the stored row, ID and timestamps included.
func (db *DB) UpsertGame(ctx context.Context, game *model.Game) (bool, error) {
	var existed bool

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var existingID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM games WHERE espn_event_id = ?`, game.ESPNEventID,
		).Scan(&existingID)
		switch {
		case err == nil:
			existed = true
		case errors.Is(err, sql.ErrNoRows):
			existed = false
		default:
			return fmt.Errorf("sqlite: looking up game %s: %w", game.ESPNEventID, err)
		}

		now := time.Now()
		err = tx.QueryRowContext(ctx,
			`INSERT INTO games (
				espn_event_id, season_year, season_type, week,
				home_team_id, home_team_name, home_team_abbreviation, home_team_logo,
				away_team_id, away_team_name, away_team_abbreviation, away_team_logo,
				game_date, game_status, home_score, away_score, winner_team_id,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (espn_event_id) DO UPDATE SET
				season_year = excluded.season_year,
				season_type = excluded.season_type,
				week = excluded.week,
				home_team_id = excluded.home_team_id,
				home_team_name = excluded.home_team_name,
				home_team_abbreviation = excluded.home_team_abbreviation,
				home_team_logo = excluded.home_team_logo,
				away_team_id = excluded.away_team_id,
				away_team_name = excluded.away_team_name,
				away_team_abbreviation = excluded.away_team_abbreviation,
				away_team_logo = excluded.away_team_logo,
				game_date = excluded.game_date,
				game_status = excluded.game_status,
				home_score = excluded.home_score,
				away_score = excluded.away_score,
				winner_team_id = excluded.winner_team_id,
				updated_at = excluded.updated_at
			RETURNING id`,
			game.ESPNEventID, game.SeasonYear, game.SeasonType, game.Week,
			game.HomeTeam.ID, game.HomeTeam.Name, game.HomeTeam.Abbreviation, nullString(game.HomeTeam.Logo),
			game.AwayTeam.ID, game.AwayTeam.Name, game.AwayTeam.Abbreviation, nullString(game.AwayTeam.Logo),
			game.GameDate.UTC(), string(game.Status), game.HomeScore, game.AwayScore, nullString(game.WinnerTeamID),
			now, now,
		).Scan(&game.ID)
		if err != nil {
			return fmt.Errorf("sqlite: upserting game %s: %w", game.ESPNEventID, err)
		}

		// Read the row back so timestamps come from the table, not the caller.
		stored, err := getGameByID(ctx, tx, game.ID)
		if err != nil {
			return err
		}
		*game = *stored
		return nil
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// GetGameByID retrieves a game by internal id.
func (db *DB) GetGameByID(ctx context.Context, id int64) (*model.Game, error) {
	return getGameByID(ctx, db.conn, id)
}

func getGameByID(ctx context.Context, q querier, id int64) (*model.Game, error) {
	g, err := scanGame(q.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("game", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting game %d: %w", id, err)
	}
	return g, nil
}

// GetGameByESPNID retrieves a game by its external event id.
func (db *DB) GetGameByESPNID(ctx context.Context, espnEventID string) (*model.Game, error) {
	g, err := scanGame(db.conn.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE espn_event_id = ?`, espnEventID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("game", espnEventID)
		}
		return nil, fmt.Errorf("sqlite: getting game %s: %w", espnEventID, err)
	}
	return g, nil
}

// ListGamesByWeek returns one week's games in kickoff order.
func (db *DB) ListGamesByWeek(ctx context.Context, key repository.WeekKey) ([]model.Game, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE season_year = ? AND season_type = ? AND week = ?
		 ORDER BY game_date ASC, id ASC`,
		key.SeasonYear, key.SeasonType, key.Week,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing games: %w", err)
	}
	defer rows.Close()

	games := make([]model.Game, 0, 16)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning game row: %w", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating games: %w", err)
	}
	return games, nil
}

func scanGame(row rowScanner) (*model.Game, error) {
	var (
		g                  model.Game
		homeLogo, awayLogo sql.NullString
		winner             sql.NullString
		status             string
	)
	err := row.Scan(
		&g.ID, &g.ESPNEventID, &g.SeasonYear, &g.SeasonType, &g.Week,
		&g.HomeTeam.ID, &g.HomeTeam.Name, &g.HomeTeam.Abbreviation, &homeLogo,
		&g.AwayTeam.ID, &g.AwayTeam.Name, &g.AwayTeam.Abbreviation, &awayLogo,
		&g.GameDate, &status, &g.HomeScore, &g.AwayScore, &winner,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.HomeTeam.Logo = stringPtr(homeLogo)
	g.AwayTeam.Logo = stringPtr(awayLogo)
	g.WinnerTeamID = stringPtr(winner)
	g.Status = model.GameStatus(status)
	return &g, nil
}
