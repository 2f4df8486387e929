// Package handler contains the HTTP request handlers.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements http.Handler:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly an http.HandlerFunc: a function with the right signature.
// Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (form fields, URL params, cookies)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, rendered HTML or JSON)
//
// Handlers contain no business rules; they are the glue between HTTP and the services.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/secrets/internal/model"
)

// Page names. Each is a file "<name>.html" defining a "content" block.
const (
	PageHome     = "home"
	PageLogin    = "login"
	PageRegister = "register"
	PageSecrets  = "secrets"
	PageSubmit   = "submit"
	PageError    = "error"
)

var pages = []string{PageHome, PageLogin, PageRegister, PageSecrets, PageSubmit, PageError}

// PageData is the single data type passed to every template. Pages ignore
// the fields they don't use.
type PageData struct {
	Title     string
	User      *model.User // nil for anonymous visitors
	Error     string      // message shown above the form
	Username  string      // login/register form refill (never the password)
	Secret    string      // submit form refill
	Secrets   []string
	Providers []string // configured OAuth providers, for the sign-in buttons

	// error page
	Status     int
	StatusText string
	Message    string
}

// Renderer holds one parsed template set per page.
//
// WHY ONE SET PER PAGE?
// Every page defines a block named "content" that base.html pulls in. If all
// pages were parsed into ONE set, the last "content" definition would win.
// Parsing base + page together, once per page, at startup keeps them apart
// and means requests never pay for parsing.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses the templates in fsys (see web.Templates).
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages)), logger: logger}
	for _, p := range pages {
		t, err := template.New("base").ParseFS(fsys, "base.html", "providers.html", p+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", p, err)
		}
		r.pages[p] = t
	}
	return r, nil
}

// Render writes page with the given status.
//
// The template is executed into a buffer first: if execution fails halfway
// we can still send a clean 500 instead of half a page with a 200 header.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) {
	t, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
