package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/dbx"
	"github.com/sakif/secrets/internal/model"
	"github.com/sakif/secrets/internal/repository"
)

// Create inserts a new user.
//
// ID GENERATION:
// IDs are generated here with xid rather than by the database. xid values are
// short, URL-safe and roughly time-ordered, and every backend (SQLite,
// Postgres, Mongo) can store them the same way.
//
// The username UNIQUE constraint is the source of truth for "username taken".
// We don't SELECT first and INSERT second; two concurrent registrations
// could both pass the SELECT. Instead we INSERT and translate the constraint
// error into apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, password_hash, google_id, facebook_id, secret, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		dbx.NullString(user.Username),
		user.DisplayName,
		dbx.NullString(user.PasswordHash),
		dbx.NullString(user.GoogleID),
		dbx.NullString(user.FacebookID),
		dbx.NullString(user.Secret),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetUserByID returns the user with the given internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+dbx.UserColumns+` FROM users WHERE id = ?`, id)

	user, err := dbx.ScanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetByUsername returns the local account registered under username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+dbx.UserColumns+` FROM users WHERE username = ?`, username)

	user, err := dbx.ScanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by username %q: %w", username, err)
	}
	return user, nil
}

// FindOrCreateByProvider resolves an OAuth identity to exactly one user.
//
// HOW IT STAYS ATOMIC:
//
//	INSERT ... ON CONFLICT(google_id) DO NOTHING
//
// either inserts a fresh row or silently does nothing because a row with that
// provider ID already exists. Either way the SELECT that follows finds exactly
// one row. Two concurrent first-time logins cannot create two users because
// the UNIQUE index rejects the second INSERT.
func (db *DB) FindOrCreateByProvider(ctx context.Context, provider, providerID, displayName string) (*model.User, error) {
	col, ok := repository.ProviderColumn(provider)
	if !ok {
		return nil, apperror.ValidationFailed("provider", fmt.Sprintf("unsupported provider %q", provider))
	}
	if providerID == "" {
		return nil, apperror.ValidationFailed("providerID", "provider account ID is required")
	}

	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, display_name, `+col+`, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(`+col+`) DO NOTHING`,
		xid.New().String(), displayName, providerID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting %s user %s: %w", provider, providerID, err)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+dbx.UserColumns+` FROM users WHERE `+col+` = ?`, providerID)
	user, err := dbx.ScanUser(row)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading %s user %s: %w", provider, providerID, err)
	}
	return user, nil
}

// UpdateSecret overwrites the user's secret. The last write wins.
func (db *DB) UpdateSecret(ctx context.Context, id, secret string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET secret = ?, updated_at = ? WHERE id = ?`,
		dbx.NullString(secret), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating secret for user %s: %w", id, err)
	}

	// RowsAffected == 0 means the WHERE matched nothing.
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// ListWithSecrets returns every user with a non-empty secret, oldest update first.
func (db *DB) ListWithSecrets(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+dbx.UserColumns+` FROM users
		 WHERE secret IS NOT NULL AND secret <> ''
		 ORDER BY updated_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing secrets: %w", err)
	}
	defer rows.Close()

	// Start with an empty slice, not nil, so JSON encodes [] rather than null.
	users := []model.User{}
	for rows.Next() {
		u, err := dbx.ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of user records.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}
