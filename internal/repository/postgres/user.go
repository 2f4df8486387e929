package postgres

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

// Create inserts a new user with a fresh xid. A taken username yields apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, password_hash, google_id, facebook_id, secret, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
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
		return fmt.Errorf("postgres: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetUserByID returns the user with the given internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getOne(ctx, "id", id)
}

// GetByUsername returns the local account registered under username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getOne(ctx, "username", username)
}

// getOne selects a single user by a trusted column name.
func (db *DB) getOne(ctx context.Context, col, value string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+dbx.UserColumns+` FROM users WHERE `+col+` = $1`, value)

	user, err := dbx.ScanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", value)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting user by %s: %w", col, err)
	}
	return user, nil
}

// FindOrCreateByProvider inserts with ON CONFLICT DO NOTHING and then reads
// the row back, so concurrent first logins converge on one record.
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
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (`+col+`) DO NOTHING`,
		xid.New().String(), displayName, providerID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: upserting %s user %s: %w", provider, providerID, err)
	}

	user, err := db.getOne(ctx, col, providerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: loading %s user: %w", provider, err)
	}
	return user, nil
}

// UpdateSecret overwrites the user's secret. The last write wins.
func (db *DB) UpdateSecret(ctx context.Context, id, secret string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET secret = $1, updated_at = $2 WHERE id = $3`,
		dbx.NullString(secret), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating secret for user %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
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
		return nil, fmt.Errorf("postgres: listing secrets: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := dbx.ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating user rows: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of user records.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting users: %w", err)
	}
	return n, nil
}
