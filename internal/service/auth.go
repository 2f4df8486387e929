// Package service holds the business rules, between the HTTP handlers and
// the repository/strategy layers:
//
//	AuthHandler   (HTTP) → AuthService   → strategy.Registry → UserRepository
//	SecretHandler (HTTP) → SecretService → UserRepository
//
// Services accept plain values (never *http.Request) and return domain
// errors from apperror; the handlers translate those into status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/auth"
	"github.com/sakif/secrets/internal/model"
	"github.com/sakif/secrets/internal/repository"
	"github.com/sakif/secrets/internal/strategy"
)

// MaxUsernameLength fits any e-mail address (RFC 5321 caps them at 254).
const MaxUsernameLength = 254

// invalidLogin is deliberately identical for "no such user" and "wrong
// password" so the login form does not reveal which usernames exist.
const invalidLogin = "invalid username or password"

// Hasher is satisfied by *auth.PasswordService.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// AuthService handles registration and the three login paths.
type AuthService struct {
	users      repository.UserRepository
	passwords  Hasher
	strategies *strategy.Registry
	logger     *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	passwords Hasher,
	strategies *strategy.Registry,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		passwords:  passwords,
		strategies: strategies,
		logger:     logger,
	}
}

// Register creates a local account. The caller establishes the session.
//
// Errors:
//   - apperror.ErrValidation: empty/too long username, empty/too long password
//   - apperror.ErrConflict: username already taken
//   - anything else: hashing or store failure; no record was created
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("registering %q: %w", username, err)
	}

	user := &model.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("registering %q: %w", username, err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Login runs the local strategy. Wrong password and unknown username both
// come back as the same apperror.ErrUnauthorized; store failures do not.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.strategies.Authenticate(ctx, model.ProviderLocal, strategy.Presentation{
		Username: strings.TrimSpace(username),
		Password: password,
	})
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, strategy.ErrNoSuchUser), errors.Is(err, strategy.ErrBadCredential):
		s.logger.Info("login rejected", slog.String("reason", err.Error()))
		return nil, apperror.Unauthorized(invalidLogin)
	default:
		return nil, fmt.Errorf("logging in: %w", err)
	}
}

// CompleteOAuth runs the named provider's strategy with the callback's code.
func (s *AuthService) CompleteOAuth(ctx context.Context, provider, code string) (*model.User, error) {
	if !model.IsOAuthProvider(provider) {
		return nil, apperror.NotFound("provider", provider)
	}
	user, err := s.strategies.Authenticate(ctx, provider, strategy.Presentation{Code: code})
	if err != nil {
		return nil, fmt.Errorf("completing %s login: %w", provider, err)
	}
	s.logger.Info("oauth login", slog.String("provider", provider), slog.String("user_id", user.ID))
	return user, nil
}

// OAuthProviders lists the configured OAuth providers, for the login page.
func (s *AuthService) OAuthProviders() []string {
	var out []string
	for _, name := range s.strategies.Names() {
		if model.IsOAuthProvider(name) {
			out = append(out, name)
		}
	}
	return out
}

var _ Hasher = (*auth.PasswordService)(nil)
