package handler

import (
	"net/http"

	"github.com/sakif/secrets/internal/service"
	"github.com/sakif/secrets/internal/session"
)

// PageHandler serves the static pages: home, login form, register form.
type PageHandler struct {
	render *Renderer
	auth   *service.AuthService
}

func NewPageHandler(render *Renderer, auth *service.AuthService) *PageHandler {
	return &PageHandler{render: render, auth: auth}
}

// HandleHome serves GET /.
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, _ := session.UserFromContext(r.Context())
	h.render.Render(w, http.StatusOK, PageHome, PageData{Title: "Secrets", User: user})
}

// HandleLoginForm serves GET /login.
func (h *PageHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	user, _ := session.UserFromContext(r.Context())
	h.render.Render(w, http.StatusOK, PageLogin, PageData{
		Title:     "Login",
		User:      user,
		Providers: h.auth.OAuthProviders(),
	})
}

// HandleRegisterForm serves GET /register.
func (h *PageHandler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	user, _ := session.UserFromContext(r.Context())
	h.render.Render(w, http.StatusOK, PageRegister, PageData{
		Title:     "Register",
		User:      user,
		Providers: h.auth.OAuthProviders(),
	})
}
