package handler

// RESPONSE HELPERS:
// These functions standardise how errors become responses.
//
// Browser routes answer with an HTML error page (renderError); the single
// JSON route (/api/me) answers with {"error": ..., "message": ...}
// (writeError). Both share one mapping from domain error to status code
// (statusFor), so a validation error is a 400 whichever way it is rendered.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/session"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable type, e.g. "unauthorized"
	Message string `json:"message"` // human-readable description
}

// statusFor maps a domain error to an HTTP status and a machine-readable type.
//
// errors.Is walks the whole wrap chain, so
//
//	fmt.Errorf("registering: %w", apperror.Conflict("username", "a@x.com"))
//
// still maps to 409.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// userMessage returns the message that is safe to show to the client.
// NEVER expose internal error text: it can contain SQL, hostnames or paths.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An internal error occurred"
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body. Once Encode writes, the
// headers are gone and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its status and sends it as JSON.
func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	writeJSON(w, status, ErrorResponse{Error: kind, Message: userMessage(err)})
}

// renderError renders the HTML error page. 5xx errors are logged with the
// request context; 4xx are the client's problem and are not.
func renderError(rnd *Renderer, logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	if status >= http.StatusInternalServerError {
		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		}
		logger.Error("request failed", append(attrs, session.LogAttrs(r.Context())...)...)
	}

	user, _ := session.UserFromContext(r.Context())
	rnd.Render(w, status, PageError, PageData{
		Title:      http.StatusText(status),
		User:       user,
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    userMessageFor(status, err),
	})
}

// userMessageFor hides the message for 5xx so the template shows its
// generic text.
func userMessageFor(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return ""
	}
	return userMessage(err)
}
