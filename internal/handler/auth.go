package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/auth"
	"github.com/sakif/secrets/internal/model"
	"github.com/sakif/secrets/internal/service"
	"github.com/sakif/secrets/internal/session"
)

// stateCookie carries the signed OAuth state between the consent redirect
// and the callback.
const stateCookie = "oauth_state"

// maxFormBytes caps form bodies. The largest legitimate form is a secret.
const maxFormBytes = 64 << 10

// ConsentProvider is the part of an OAuth provider the handler needs.
// *auth.Provider implements it.
type ConsentProvider interface {
	Name() string
	AuthURL(state string) string
}

// AuthHandler handles registration, both login paths, logout and /api/me.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister      → create a local account and log it in
//   - HandleLogin         → local username/password login
//   - HandleOAuthBegin    → redirect the browser to the provider's consent page
//   - HandleOAuthCallback → verify state, exchange the code, log the user in
//   - HandleLogout        → destroy the session
//   - HandleMe            → JSON profile of the current user
type AuthHandler struct {
	auth         *service.AuthService
	sessions     *session.Manager
	states       *auth.StateService
	providers    map[string]ConsentProvider
	render       *Renderer
	logger       *slog.Logger
	secureCookie bool
}

// NewAuthHandler creates an AuthHandler. providers holds only the
// configured providers; routes for the others answer 404.
func NewAuthHandler(
	authSvc *service.AuthService,
	sessions *session.Manager,
	states *auth.StateService,
	providers []ConsentProvider,
	render *Renderer,
	logger *slog.Logger,
	secureCookie bool,
) *AuthHandler {
	byName := make(map[string]ConsentProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &AuthHandler{
		auth:         authSvc,
		sessions:     sessions,
		states:       states,
		providers:    byName,
		render:       render,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

// HandleRegister handles POST /register.
//
// On success the new account is logged in straight away (303 → /secrets).
// On failure the form is re-rendered with the username filled in:
// 400 for validation, 409 for a taken username, 500 otherwise.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	user, err := h.auth.Register(r.Context(), username, password)
	if err != nil {
		h.rerender(w, r, PageRegister, "Register", username, err)
		return
	}

	h.establish(w, r, user)
}

// HandleLogin handles POST /login.
//
// A wrong password or unknown username is a 401 with the login form
// re-rendered. No session is created, and no record is ever created here.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	user, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		h.rerender(w, r, PageLogin, "Login", username, err)
		return
	}

	h.establish(w, r, user)
}

// HandleOAuthBegin handles GET /auth/{provider} (and the
// /login/federated/{provider} alias).
//
// CSRF PROTECTION VIA STATE:
// A signed, single-use state goes both into a short-lived cookie and into
// the consent URL. The callback only proceeds when the two match and the
// signature checks out, proving this browser started this flow.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: still sent on the provider's top-level redirect back to us
//   - short-lived: it expires with the state itself
func (h *AuthHandler) HandleOAuthBegin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		renderError(h.render, h.logger, w, r, apperror.NotFound("provider", chi.URLParam(r, "provider")))
		return
	}

	state, err := h.states.Issue(provider.Name())
	if err != nil {
		renderError(h.render, h.logger, w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(auth.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleOAuthCallback handles GET /auth/{provider}/secrets?code=...&state=...
//
// FLOW:
//  1. Check the state (cookie == query, valid signature, unused)
//  2. Bail out if the user denied consent (?error=access_denied)
//  3. Exchange the code and find-or-create the user (OAuth strategy)
//  4. Establish the session and redirect to /secrets
//
// Every failure before step 4 sends the browser back to /login.
func (h *AuthHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	if _, ok := h.providers[name]; !ok {
		renderError(h.render, h.logger, w, r, apperror.NotFound("provider", name))
		return
	}

	// The state cookie is single-use: clear it whatever happens next.
	cookie, cookieErr := r.Cookie(stateCookie)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	q := r.URL.Query()
	state := q.Get("state")
	if cookieErr != nil || cookie.Value == "" || cookie.Value != state {
		h.logger.Warn("oauth callback: state cookie missing or mismatched", slog.String("provider", name))
		h.toLogin(w, r)
		return
	}
	if err := h.states.Validate(state, name); err != nil {
		h.logger.Warn("oauth callback: state rejected",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		h.toLogin(w, r)
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("oauth callback: consent denied",
			slog.String("provider", name),
			slog.String("error", errParam),
		)
		h.toLogin(w, r)
		return
	}

	user, err := h.auth.CompleteOAuth(r.Context(), name, q.Get("code"))
	if err != nil {
		h.logger.Warn("oauth callback: authentication failed",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		h.toLogin(w, r)
		return
	}

	h.establish(w, r, user)
}

// HandleLogout handles GET and POST /logout.
//
// A failure to destroy the session is a 500 page. It never takes the
// process down, and logging out twice is fine.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context()); err != nil {
		renderError(h.render, h.logger, w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// meResponse is the JSON shape of GET /api/me.
type meResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username,omitempty"`
	DisplayName string   `json:"displayName"`
	Providers   []string `json:"providers"`
	HasSecret   bool     `json:"hasSecret"`
}

// HandleMe handles GET /api/me: 200 with the profile, 401 when anonymous.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := session.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid session required"))
		return
	}

	providers := []string{}
	if user.PasswordHash != "" {
		providers = append(providers, model.ProviderLocal)
	}
	for _, p := range []string{model.ProviderGoogle, model.ProviderFacebook} {
		if user.ProviderID(p) != "" {
			providers = append(providers, p)
		}
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Providers:   providers,
		HasSecret:   user.HasSecret(),
	})
}

// establish starts the session for user and redirects to /secrets.
func (h *AuthHandler) establish(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := h.sessions.Establish(r.Context(), user.ID); err != nil {
		renderError(h.render, h.logger, w, r, err)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusSeeOther)
}

// rerender shows a login/register form again with the error message, or the
// error page for internal failures.
func (h *AuthHandler) rerender(w http.ResponseWriter, r *http.Request, page, title, username string, err error) {
	status, _ := statusFor(err)
	if status >= http.StatusInternalServerError || errors.Is(err, apperror.ErrNotFound) {
		renderError(h.render, h.logger, w, r, err)
		return
	}

	user, _ := session.UserFromContext(r.Context())
	h.render.Render(w, status, page, PageData{
		Title:     title,
		User:      user,
		Error:     userMessage(err),
		Username:  username,
		Providers: h.auth.OAuthProviders(),
	})
}

func (h *AuthHandler) toLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
