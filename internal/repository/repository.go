// Package repository declares the storage contracts used by the services
// and the session manager. Implementations live in the sqlite, postgres and
// mongodb sub-packages; all of them return apperror.ErrNotFound for missing
// records and apperror.ErrConflict for unique-index violations.
package repository

import (
	"context"
	"time"

	"github.com/sakif/secrets/internal/model"
)

// UserRepository is the Credential Store.
type UserRepository interface {
	// Create inserts a new user and fills in ID, CreatedAt and UpdatedAt.
	// A taken username yields apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// FindOrCreateByProvider returns the user linked to (provider, providerID),
	// creating it with the given display name if none exists. Calling it
	// repeatedly with the same provider ID always resolves to the same record.
	FindOrCreateByProvider(ctx context.Context, provider, providerID, displayName string) (*model.User, error)
	// UpdateSecret overwrites the secret of exactly one user (last write wins).
	UpdateSecret(ctx context.Context, id, secret string) error
	// ListWithSecrets returns every user whose secret is non-empty, oldest update first.
	ListWithSecrets(ctx context.Context) ([]model.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// SessionRepository persists server-side session payloads keyed by the
// opaque token handed to the client.
type SessionRepository interface {
	// FindSession returns found=false for unknown or expired tokens.
	FindSession(ctx context.Context, token string) (data []byte, found bool, err error)
	CommitSession(ctx context.Context, token string, data []byte, expiry time.Time) error
	// DeleteSession is a no-op for unknown tokens.
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Store is everything one backend provides.
type Store interface {
	UserRepository
	SessionRepository
	Ping(ctx context.Context) error
	Close() error
}

// ProviderColumn maps an OAuth provider name to the column/field that holds
// its account ID. Only known providers are accepted, so the result is safe to
// splice into a query.
func ProviderColumn(provider string) (string, bool) {
	switch provider {
	case model.ProviderGoogle:
		return "google_id", true
	case model.ProviderFacebook:
		return "facebook_id", true
	default:
		return "", false
	}
}
