package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FindSession returns the payload stored under token. Expired rows count as missing.
func (db *DB) FindSession(ctx context.Context, token string) ([]byte, bool, error) {
	var data []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE token = $1 AND expiry > now()`, token,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: finding session: %w", err)
	}
	return data, true, nil
}

// CommitSession upserts the payload and expiry for token.
func (db *DB) CommitSession(ctx context.Context, token string, data []byte, expiry time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (token, data, expiry) VALUES ($1, $2, $3)
		 ON CONFLICT (token) DO UPDATE SET data = EXCLUDED.data, expiry = EXCLUDED.expiry`,
		token, data, expiry.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: committing session: %w", err)
	}
	return nil
}

// DeleteSession removes token. Unknown tokens are not an error.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("postgres: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every expired session and returns how many went.
func (db *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expiry <= now()`)
	if err != nil {
		return 0, fmt.Errorf("postgres: deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}
