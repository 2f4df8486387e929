// Package dbx holds the small database/sql helpers shared by the SQLite and
// Postgres repositories.
package dbx

import (
	"database/sql"

	"github.com/sakif/secrets/internal/model"
)

// UserColumns is the column list every user SELECT uses, in ScanUser order.
const UserColumns = `id, username, display_name, password_hash, google_id, facebook_id, secret, created_at, updated_at`

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanUser reads one row selected with UserColumns.
// NULL columns come back as empty strings.
func ScanUser(s Scanner) (*model.User, error) {
	var (
		u                                         model.User
		username, hash, googleID, fbID, secretCol sql.NullString
	)
	err := s.Scan(
		&u.ID,
		&username,
		&u.DisplayName,
		&hash,
		&googleID,
		&fbID,
		&secretCol,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.PasswordHash = hash.String
	u.GoogleID = googleID.String
	u.FacebookID = fbID.String
	u.Secret = secretCol.String
	return &u, nil
}

// NullString maps "" to NULL so UNIQUE constraints ignore absent values.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
