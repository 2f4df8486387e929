package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/model"
)

// UserLookup is the slice of repository.UserRepository the local strategy needs.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// PasswordVerifier is satisfied by *auth.PasswordService.
type PasswordVerifier interface {
	Verify(hash, plaintext string) error
}

// Local checks a username and password against the credential store.
type Local struct {
	users    UserLookup
	verifier PasswordVerifier
}

func NewLocal(users UserLookup, verifier PasswordVerifier) *Local {
	return &Local{users: users, verifier: verifier}
}

func (l *Local) Name() string { return model.ProviderLocal }

// Authenticate fails closed: an empty hash (OAuth-only record) or ANY
// verifier error counts as a bad credential.
func (l *Local) Authenticate(ctx context.Context, p Presentation) (*model.User, error) {
	if p.Username == "" || p.Password == "" {
		return nil, ErrBadCredential
	}

	user, err := l.users.GetByUsername(ctx, p.Username)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, ErrNoSuchUser
	}
	if err != nil {
		return nil, fmt.Errorf("strategy: local: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, ErrBadCredential
	}
	if err := l.verifier.Verify(user.PasswordHash, p.Password); err != nil {
		return nil, ErrBadCredential
	}
	return user, nil
}
