package strategy

import (
	"context"
	"fmt"

	"github.com/sakif/secrets/internal/auth"
	"github.com/sakif/secrets/internal/model"
)

// Exchanger is satisfied by *auth.Provider.
type Exchanger interface {
	Name() string
	Exchange(ctx context.Context, code string) (*auth.Profile, error)
}

// UserLinker is the slice of repository.UserRepository the OAuth strategy needs.
type UserLinker interface {
	FindOrCreateByProvider(ctx context.Context, provider, providerID, displayName string) (*model.User, error)
}

// OAuth authenticates an authorization code from one provider.
// The strategy's name is the provider's name.
type OAuth struct {
	provider Exchanger
	users    UserLinker
}

func NewOAuth(provider Exchanger, users UserLinker) *OAuth {
	return &OAuth{provider: provider, users: users}
}

func (o *OAuth) Name() string { return o.provider.Name() }

// Authenticate exchanges the code and resolves the profile to exactly one
// record: the first login creates it, every later login finds it.
func (o *OAuth) Authenticate(ctx context.Context, p Presentation) (*model.User, error) {
	if p.Code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrProvider)
	}

	profile, err := o.provider.Exchange(ctx, p.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	user, err := o.users.FindOrCreateByProvider(ctx, o.provider.Name(), profile.ProviderID, profile.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("strategy: %s: %w", o.provider.Name(), err)
	}
	return user, nil
}
