package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, display_name, auth_token, created_at, updated_at`

// NormalizeName is the canonical form used for the UNIQUE users.name column.
func NormalizeName(displayName string) string {
	return strings.ToLower(strings.TrimSpace(displayName))
}

// CreateUser inserts a user. Name is derived from DisplayName; a clash on the
// normalized name (or on the token) is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.Name = NormalizeName(user.DisplayName)
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (name, display_name, auth_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.Name,
		user.DisplayName,
		nullString(user.AuthToken),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Name)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Name, err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByName looks a user up by display name, normalizing it first.
func (db *DB) GetUserByName(ctx context.Context, displayName string) (*model.User, error) {
	name := NormalizeName(displayName)
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE name = ?`, name,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", name)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", name, err)
	}
	return u, nil
}

// GetUserByToken resolves a bearer token to its user.
// An empty token never matches (NULL tokens are not equal to anything).
func (db *DB) GetUserByToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.NotFound("user", "token")
	}
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE auth_token = ?`, token,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Never echo the token back into an error message.
			return nil, apperror.NotFound("user", "token")
		}
		return nil, fmt.Errorf("sqlite: getting user by token: %w", err)
	}
	return u, nil
}

// ListUsers returns every user ordered by display name.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY display_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// DeleteUser removes a user. ON DELETE CASCADE removes their predictions
// and leaderboard rows with them.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// SetUserToken stores (or replaces) a user's bearer token.
func (db *DB) SetUserToken(ctx context.Context, id int64, token string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET auth_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting token for user %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// rowScanner is the common subset of *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u     model.User
		token sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.DisplayName, &token, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.AuthToken = stringPtr(token)
	return &u, nil
}

// isUniqueViolation detects SQLITE_CONSTRAINT_UNIQUE without importing the
// driver's internal error codes.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
