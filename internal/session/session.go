// Package session is the Session Manager: it establishes, restores and
// destroys authenticated sessions on top of alexedwards/scs.
//
// REFERENCE TOKENS, NOT SELF-CONTAINED ONES
// The cookie holds only a random token. The payload (the user ID) lives in
// the server-side store and is looked up on every request, and the user ID
// is then redeemed against the credential store. Consequences:
//   - logout is immediate: deleting the row kills the token everywhere
//   - a user deleted from the store is anonymous on their next request
//   - nothing about the user is readable from the cookie
//
// REQUEST FLOW
//
//	LoadAndSave  (scs: cookie → token → payload in ctx; commits on write)
//	    ↓
//	Authenticate (payload userID → *model.User in ctx, or anonymous)
//	    ↓
//	RequireUser  (only on protected routes: anonymous → 303 /login)
//	    ↓
//	handler
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/model"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// userIDKey is the payload key holding the authenticated user's ID.
const userIDKey = "userID"

// UserGetter is the slice of repository.UserRepository used to redeem a
// session's user ID.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Options configures the session cookie.
type Options struct {
	Lifetime time.Duration // absolute session lifetime; 0 means 24h
	Secure   bool          // set the cookie's Secure flag (HTTPS deployments)
}

// Manager wraps *scs.SessionManager with the user lookup.
type Manager struct {
	scs    *scs.SessionManager
	users  UserGetter
	logger *slog.Logger
}

// NewManager creates a Manager persisting payloads in store.
func NewManager(store scs.Store, users UserGetter, opts Options, logger *slog.Logger) *Manager {
	sm := scs.New()
	sm.Store = store
	sm.Lifetime = opts.Lifetime
	if sm.Lifetime <= 0 {
		sm.Lifetime = 24 * time.Hour
	}
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = opts.Secure
	sm.Cookie.Persist = true

	m := &Manager{scs: sm, users: users, logger: logger}
	sm.ErrorFunc = m.serverError
	return m
}

// Establish binds userID to the request's session.
//
// The token is renewed first: whatever token the client had before logging
// in (possibly one planted by an attacker) stops being valid, which defeats
// session fixation. scs writes the new cookie when the response is sent.
func (m *Manager) Establish(ctx context.Context, userID string) error {
	if err := m.scs.RenewToken(ctx); err != nil {
		return fmt.Errorf("session: renewing token: %w", err)
	}
	m.scs.Put(ctx, userIDKey, userID)
	return nil
}

// Restore resolves a raw session token to its user without an HTTP request.
// It returns (nil, nil) when the session is absent: unknown or expired
// token, no user ID in the payload, or a user that no longer exists.
func (m *Manager) Restore(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	sctx, err := m.scs.Load(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("session: loading: %w", err)
	}
	return m.redeem(sctx)
}

// Destroy deletes the request's session from the store and expires the
// cookie. Destroying an absent or already-destroyed session is a no-op.
func (m *Manager) Destroy(ctx context.Context) error {
	if err := m.scs.Destroy(ctx); err != nil {
		return fmt.Errorf("session: destroying: %w", err)
	}
	return nil
}

// LoadAndSave is the scs middleware. It must wrap every route that reads or
// writes the session.
func (m *Manager) LoadAndSave(next http.Handler) http.Handler {
	return m.scs.LoadAndSave(next)
}

// redeem reads the user ID from a loaded session and looks it up.
func (m *Manager) redeem(ctx context.Context) (*model.User, error) {
	id := m.scs.GetString(ctx, userIDKey)
	if id == "" {
		return nil, nil
	}

	user, err := m.users.GetUserByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: loading user %s: %w", id, err)
	}
	return user, nil
}

func (m *Manager) serverError(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Error("session store error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
