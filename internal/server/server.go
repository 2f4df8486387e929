// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the store, services,
// strategies, session manager and handlers, and decides:
//   - which URL patterns map to which handler functions
//   - what middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config ─→ OpenStore ─→ repository.Store (sqlite | postgres | mongodb)
//	                                  │
//	         ┌────────────────────────┼─────────────────────────┐
//	         ↓                        ↓                         ↓
//	 strategy.Registry         session.Manager            SecretService
//	 (local + oauth)        (scs over session.Store)
//	         ↓                        ↓                         ↓
//	    AuthService  ──────────→  handlers  ←───────────────────┘
//
// This is the "composition root" pattern: everything is built here, once,
// and nothing below reaches for a global.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/secrets/internal/auth"
	"github.com/sakif/secrets/internal/config"
	"github.com/sakif/secrets/internal/handler"
	"github.com/sakif/secrets/internal/middleware"
	"github.com/sakif/secrets/internal/repository"
	"github.com/sakif/secrets/internal/service"
	"github.com/sakif/secrets/internal/session"
	"github.com/sakif/secrets/internal/strategy"
	"github.com/sakif/secrets/web"
)

// OAuthProvider is one configured third-party sign-in provider: the consent
// redirect for the handler and the code exchange for the strategy.
// *auth.Provider implements it; tests substitute fakes.
type OAuthProvider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Profile, error)
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store connection and the nonce cache. Close releases
// both; Start calls it during graceful shutdown.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	store    repository.Store
	sessions *session.Store
	nonces   *auth.NonceGuard

	// cancel stops the background work bound to the server's lifetime
	// (nonce cache janitor, expired-session cleanup).
	ctx    context.Context
	cancel context.CancelFunc
}

// New opens the store named by cfg.DatabaseURL, builds the configured OAuth
// providers and assembles the server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, target, err := OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("credential store ready", slog.String("backend", target.Backend))

	var providers []OAuthProvider
	if cfg.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleProvider(
			cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.CallbackURL("google")))
	}
	if cfg.FacebookEnabled() {
		providers = append(providers, auth.NewFacebookProvider(
			cfg.Facebook.ClientID, cfg.Facebook.ClientSecret, cfg.CallbackURL("facebook")))
	}

	s, err := NewWithStore(cfg, store, providers, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore assembles the server around an already-open store. The
// server takes ownership of store and closes it in Close.
func NewWithStore(cfg *config.Config, store repository.Store, providers []OAuthProvider, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	nonces, err := auth.NewNonceGuard(ctx, auth.StateTTL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("server: creating nonce guard: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		sessions: session.NewStore(store, logger),
		nonces:   nonces,
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := s.setupRoutes(providers); err != nil {
		cancel()
		nonces.Close()
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /                            → home page
//	GET  /login, /register            → forms
//	POST /login, /register            → local login / registration
//	GET  /secrets                     → public list of secrets
//	GET  /submit   POST /submit       → [session] submit form / save secret
//	GET  /logout   POST /logout       → destroy session
//	GET  /auth/{provider}             → OAuth consent redirect
//	GET  /login/federated/{provider}  → alias of the above
//	GET  /auth/{provider}/secrets     → OAuth callback
//	GET  /api/me                      → JSON profile (401 when anonymous)
//	GET  /healthz                     → store ping
//	GET  /static/*                    → embedded CSS
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
// Session middleware is added only to the routes that render pages, so
// static files and probes never touch the session store.
func (s *Server) setupRoutes(providers []OAuthProvider) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Static Files ===
	// Served from the binary (see package web), so the working directory
	// doesn't matter. GET /static/css/styles.css → css/styles.css
	fileServer := http.FileServerFS(web.Static())
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// === Services ===
	passwords := auth.NewPasswordService()
	registry := strategy.NewRegistry(strategy.NewLocal(s.store, passwords))
	consent := make([]handler.ConsentProvider, 0, len(providers))
	for _, p := range providers {
		registry.Register(strategy.NewOAuth(p, s.store))
		consent = append(consent, p)
		s.logger.Info("oauth provider enabled", slog.String("provider", p.Name()))
	}

	authService := service.NewAuthService(s.store, passwords, registry, s.logger)
	secretService := service.NewSecretService(s.store, s.logger)

	states, err := auth.NewStateService(s.stateSecret(), s.nonces)
	if err != nil {
		return err
	}

	sessions := session.NewManager(s.sessions, s.store, session.Options{
		Lifetime: s.config.SessionLifetime,
		Secure:   s.config.CookieSecure,
	}, s.logger)

	// === Handlers ===
	render, err := handler.NewRenderer(web.Templates(), s.logger)
	if err != nil {
		return err
	}
	pageHandler := handler.NewPageHandler(render, authService)
	authHandler := handler.NewAuthHandler(authService, sessions, states, consent, render, s.logger, s.config.CookieSecure)
	secretHandler := handler.NewSecretHandler(secretService, sessions, render, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	// === Session Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)

		r.Get("/", pageHandler.HandleHome)
		r.Get("/login", pageHandler.HandleLoginForm)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/register", pageHandler.HandleRegisterForm)
		r.Post("/register", authHandler.HandleRegister)
		r.Get("/secrets", secretHandler.HandleList)

		r.Get("/logout", authHandler.HandleLogout)
		r.Post("/logout", authHandler.HandleLogout)

		r.Get("/auth/{provider}", authHandler.HandleOAuthBegin)
		r.Get("/login/federated/{provider}", authHandler.HandleOAuthBegin)
		r.Get("/auth/{provider}/secrets", authHandler.HandleOAuthCallback)

		r.Get("/api/me", authHandler.HandleMe)

		// === Protected Routes ===
		r.Group(func(r chi.Router) {
			r.Use(session.RequireUser)
			r.Get("/submit", secretHandler.HandleSubmitForm)
			r.Post("/submit", secretHandler.HandleSubmit)
		})
	})

	return nil
}

// stateSecret returns the configured SESSION_SECRET, or a random key when
// none is set. With a random key, OAuth flows in flight when the process
// restarts fail and the user simply signs in again.
func (s *Server) stateSecret() string {
	if s.config.SessionSecret != "" {
		return s.config.SessionSecret
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("server: reading random bytes: %v", err))
	}
	s.logger.Warn("SESSION_SECRET not set; using a random key for this process")
	return hex.EncodeToString(b)
}

// Handler returns the assembled router (for tests and custom listeners).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and releases the nonce cache and the store.
func (s *Server) Close() error {
	s.cancel()
	return errors.Join(s.nonces.Close(), s.store.Close())
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the session cleanup loop and close the store
//
// Start returns after shutdown; the deferred Close runs in every case.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupDone := s.sessions.StartCleanup(s.ctx, s.config.SessionCleanupInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.PublicURL()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		s.cancel()
		<-cleanupDone
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		s.cancel()
		<-cleanupDone
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
