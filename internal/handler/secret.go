package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/service"
	"github.com/sakif/secrets/internal/session"
)

// SecretHandler serves the public secrets page and the submit form.
type SecretHandler struct {
	secrets  *service.SecretService
	sessions *session.Manager
	render   *Renderer
	logger   *slog.Logger
}

func NewSecretHandler(secrets *service.SecretService, sessions *session.Manager, render *Renderer, logger *slog.Logger) *SecretHandler {
	return &SecretHandler{secrets: secrets, sessions: sessions, render: render, logger: logger}
}

// HandleList handles GET /secrets. The page is public.
func (h *SecretHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	secrets, err := h.secrets.List(r.Context())
	if err != nil {
		renderError(h.render, h.logger, w, r, err)
		return
	}

	user, _ := session.UserFromContext(r.Context())
	h.render.Render(w, http.StatusOK, PageSecrets, PageData{
		Title:   "Secrets",
		User:    user,
		Secrets: secrets,
	})
}

// HandleSubmitForm handles GET /submit. Mounted behind session.RequireUser.
func (h *SecretHandler) HandleSubmitForm(w http.ResponseWriter, r *http.Request) {
	user, _ := session.UserFromContext(r.Context())
	h.render.Render(w, http.StatusOK, PageSubmit, PageData{Title: "Submit a secret", User: user})
}

// HandleSubmit handles POST /submit. Mounted behind session.RequireUser.
//
// The owner is ALWAYS the session's user; no form field can name a
// different record.
func (h *SecretHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := session.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	text := r.PostFormValue("secret")

	err := h.secrets.Submit(r.Context(), user.ID, text)
	switch {
	case err == nil:
		http.Redirect(w, r, "/secrets", http.StatusSeeOther)

	case errors.Is(err, apperror.ErrValidation):
		h.render.Render(w, http.StatusBadRequest, PageSubmit, PageData{
			Title:  "Submit a secret",
			User:   user,
			Error:  userMessage(err),
			Secret: text,
		})

	case errors.Is(err, apperror.ErrNotFound):
		// The record behind the session is gone. Drop the session so the
		// next login starts clean.
		if derr := h.sessions.Destroy(r.Context()); derr != nil {
			h.logger.Error("failed to destroy orphaned session", slog.String("error", derr.Error()))
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)

	default:
		renderError(h.render, h.logger, w, r, err)
	}
}
