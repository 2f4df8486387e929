package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/repository"
)

// MaxSecretLength caps a secret at roughly a long paragraph.
const MaxSecretLength = 1000

// SecretService manages each user's single secret.
type SecretService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewSecretService(users repository.UserRepository, logger *slog.Logger) *SecretService {
	return &SecretService{users: users, logger: logger}
}

// Submit replaces the secret of userID. userID always comes from the
// session, never from the request, so a user can only touch their own record.
// An owner that no longer exists yields apperror.ErrNotFound.
func (s *SecretService) Submit(ctx context.Context, userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperror.ValidationFailed("secret", "secret is required")
	}
	if utf8.RuneCountInString(text) > MaxSecretLength {
		return apperror.ValidationFailed("secret",
			fmt.Sprintf("secret must be %d characters or less", MaxSecretLength))
	}

	if err := s.users.UpdateSecret(ctx, userID, text); err != nil {
		return fmt.Errorf("submitting secret: %w", err)
	}

	s.logger.Info("secret submitted", slog.String("user_id", userID))
	return nil
}

// List returns every non-empty secret. Owners are not included: the page is
// public and shows secrets anonymously.
func (s *SecretService) List(ctx context.Context) ([]string, error) {
	users, err := s.users.ListWithSecrets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing secrets: %w", err)
	}

	secrets := make([]string, 0, len(users))
	for _, u := range users {
		if u.HasSecret() {
			secrets = append(secrets, u.Secret)
		}
	}
	return secrets, nil
}
