// Package strategy is the authentication pipeline: a registry of named
// strategies, each of which turns a credential presentation into a user
// record or a typed failure.
//
// TWO KINDS OF STRATEGY
//   - Local ("local"): username + password checked against the stored
//     bcrypt hash. Never creates records.
//   - OAuth ("google", "facebook"): an authorization code exchanged with the
//     provider for a profile, then find-or-create on the provider ID.
//
// Handlers never talk to a strategy directly; they go through the Registry
// by name, so adding a provider is a single Register call at startup.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sakif/secrets/internal/model"
)

// Failure reasons. Store errors are passed through wrapped, so callers can
// tell "wrong password" (401) from "database down" (500).
var (
	ErrNoSuchUser      = errors.New("strategy: no such user")
	ErrBadCredential   = errors.New("strategy: bad credential")
	ErrProvider        = errors.New("strategy: provider exchange failed")
	ErrUnknownStrategy = errors.New("strategy: unknown strategy")
)

// Presentation is what the client presented. Local strategies read
// Username/Password; OAuth strategies read Code.
type Presentation struct {
	Username string
	Password string
	Code     string
}

// Strategy authenticates one kind of presentation.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, p Presentation) (*model.User, error)
}

// Registry maps names to strategies. Build it once at startup; after that it
// is only read, so concurrent requests can share it without locking.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry holding the given strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing any strategy with the same name.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get looks up a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Authenticate runs the named strategy.
func (r *Registry) Authenticate(ctx context.Context, name string, p Presentation) (*model.User, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s.Authenticate(ctx, p)
}
