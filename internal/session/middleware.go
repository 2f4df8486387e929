package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/secrets/internal/model"
)

// contextKey is an unexported type for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue accepts any key. A plain string key like "user" could be
// read or shadowed by any package that knows the string. Only this package
// can create a contextKey, so only this package can set the current user.
type contextKey string

const userKey contextKey = "user"

// Authenticate puts the session's user (if any) into the request context.
// It never blocks a request: anonymous visitors pass through with no user.
// A store failure while redeeming the session is a 500.
func (m *Manager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.redeem(r.Context())
		if err != nil {
			m.serverError(w, r, err)
			return
		}
		if user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser redirects anonymous requests to /login.
//
// A 303 (not a 401) because the client is a browser following links: the
// login form is the useful response.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Middleware returns LoadAndSave followed by Authenticate, in that order.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return m.LoadAndSave(m.Authenticate(next))
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or (nil, false) for an
// anonymous request.
//
//	user, ok := session.UserFromContext(r.Context())
//	if !ok {
//	    // anonymous
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// LogAttrs returns the user_id attribute for log lines, or nothing for
// anonymous requests.
func LogAttrs(ctx context.Context) []any {
	if u, ok := UserFromContext(ctx); ok {
		return []any{slog.String("user_id", u.ID)}
	}
	return nil
}
