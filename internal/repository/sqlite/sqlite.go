// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// The whole pool is a few dozen users and ~300 games a season. An embedded
// database in a single file is all the app needs, and it ships inside the binary.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of the SQLite C code, no C
// compiler needed, cross-compiles like any other Go package.
//
// CONCURRENCY MODEL:
// SQLite allows one writer at a time. Three settings make that work for a web server:
//   - journal_mode=WAL: readers never block the writer and vice versa
//   - busy_timeout(5000): a writer that finds the lock taken waits up to 5s
//     instead of failing immediately with SQLITE_BUSY
//   - _txlock=immediate: write transactions grab the write lock at BEGIN, so two
//     transactions can't both read and then deadlock trying to upgrade
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a driver
	// named "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

// busyTimeoutMillis matches the lock wait the app has always used.
const busyTimeoutMillis = 5000

// querier is satisfied by both *sql.DB and *sql.Tx, so query helpers can run
// either standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and provides repository methods.
// It implements every interface in internal/repository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/picks.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests)
//
// PER-CONNECTION PRAGMAS:
// sql.DB is a pool, and PRAGMAs like foreign_keys apply to ONE connection.
// Passing them as _pragma DSN parameters makes the driver apply them to every
// connection it opens, not just the first. _time_format=sqlite stores times
// as "2006-01-02 15:04:05.999999999-07:00", which sorts correctly as text.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a brand new, empty database.
	// Pin the pool to a single connection so all queries see the same one.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode is persistent in the database file, so setting it once is enough.
	// In-memory databases report "memory" and ignore it.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	params := fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=immediate&_time_format=sqlite", busyTimeoutMillis)
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + params
}

func isMemory(dbPath string) bool {
	return strings.Contains(dbPath, ":memory:") || strings.Contains(dbPath, "mode=memory")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// withTx runs fn in a transaction, committing on nil and rolling back otherwise.
//
// The deferred Rollback is a no-op after a successful Commit (it returns
// sql.ErrTxDone, which we ignore), so this is safe on every path.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate runs all database migrations.
// CREATE TABLE IF NOT EXISTS keeps every step safe to re-run on startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			name         TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// auth_token arrived after the first deployments; add it in place.
	if err := db.addColumnIfNotExists("users", "auth_token", "TEXT"); err != nil {
		return fmt.Errorf("adding auth_token to users: %w", err)
	}
	if _, err := db.conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_auth_token ON users(auth_token)`,
	); err != nil {
		return fmt.Errorf("creating users auth_token index: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			espn_event_id          TEXT NOT NULL UNIQUE,
			season_year            INTEGER NOT NULL,
			season_type            INTEGER NOT NULL,
			week                   INTEGER NOT NULL,
			home_team_id           TEXT NOT NULL,
			home_team_name         TEXT NOT NULL,
			home_team_abbreviation TEXT NOT NULL,
			home_team_logo         TEXT,
			away_team_id           TEXT NOT NULL,
			away_team_name         TEXT NOT NULL,
			away_team_abbreviation TEXT NOT NULL,
			away_team_logo         TEXT,
			game_date              DATETIME NOT NULL,
			game_status            TEXT NOT NULL DEFAULT 'scheduled'
			                       CHECK (game_status IN ('scheduled', 'in_progress', 'final')),
			home_score             INTEGER NOT NULL DEFAULT 0,
			away_score             INTEGER NOT NULL DEFAULT 0,
			winner_team_id         TEXT,
			created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_games_week ON games(season_year, season_type, week);
	`)
	if err != nil {
		return fmt.Errorf("creating games table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id                       INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id                  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_id                  INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			predicted_winner_team_id TEXT,
			is_correct               INTEGER,
			created_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, game_id)
		);
		CREATE INDEX IF NOT EXISTS idx_predictions_game ON predictions(game_id);
	`)
	if err != nil {
		return fmt.Errorf("creating predictions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS leaderboard_stats (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id               INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			season_year           INTEGER NOT NULL,
			season_type           INTEGER NOT NULL,
			total_predictions     INTEGER NOT NULL DEFAULT 0,
			correct_predictions   INTEGER NOT NULL DEFAULT 0,
			incorrect_predictions INTEGER NOT NULL DEFAULT 0,
			pending_predictions   INTEGER NOT NULL DEFAULT 0,
			win_percentage        REAL NOT NULL DEFAULT 0,
			updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, season_year, season_type)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating leaderboard_stats table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent, safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// Nullable helpers. SQLite has no boolean type; is_correct is stored as 0/1/NULL.

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolPtr(ni sql.NullInt64) *bool {
	if !ni.Valid {
		return nil
	}
	b := ni.Int64 != 0
	return &b
}
