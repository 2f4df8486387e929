// Package main is the entry point for the secrets server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts in main() of package main. It should stay minimal:
//  1. Read configuration (flags, env vars, config file)
//  2. Create the logger
//  3. Hand both to internal/server and wait
//
// All actual logic lives in internal/...; this file only parses and wires.
//
// CONFIGURATION PRECEDENCE (lowest to highest):
//
//	built-in defaults  <  --config file (TOML)  <  environment  <  flags
//
// Every flag is also bound to an environment variable, e.g. --port / PORT.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/sakif/secrets/internal/config"
	"github.com/sakif/secrets/internal/server"
)

func main() {
	app := newApp(run)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newApp builds the CLI. run receives the fully layered, validated config.
func newApp(run func(ctx context.Context, cfg *config.Config) error) *cli.App {
	return &cli.App{
		Name:  "secrets",
		Usage: "Share your secrets anonymously",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"CONFIG"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "TCP port to listen on",
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Credential store: mongodb://..., postgres://..., sqlite://path or a file path",
				EnvVars: []string{"DATABASE_URL", "MONGO_URI"},
			},
			&cli.StringFlag{
				Name:    "session-secret",
				Usage:   "HMAC key for OAuth state tokens (random per process when unset)",
				EnvVars: []string{"SESSION_SECRET"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Public origin, used for OAuth callback URLs",
				EnvVars: []string{"BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "google-client-id",
				EnvVars: []string{"GOOGLE_CLIENT_ID", "CLIENT_ID"},
			},
			&cli.StringFlag{
				Name:    "google-client-secret",
				EnvVars: []string{"GOOGLE_CLIENT_SECRET", "CLIENT_SECRET"},
			},
			&cli.StringFlag{
				Name:    "facebook-app-id",
				EnvVars: []string{"FACEBOOK_APP_ID"},
			},
			&cli.StringFlag{
				Name:    "facebook-app-secret",
				EnvVars: []string{"FACEBOOK_APP_SECRET"},
			},
			&cli.BoolFlag{
				Name:    "cookie-secure",
				Usage:   "Mark cookies Secure (serve over HTTPS)",
				EnvVars: []string{"COOKIE_SECURE"},
			},
			&cli.DurationFlag{
				Name:    "session-lifetime",
				Usage:   "Absolute session lifetime",
				EnvVars: []string{"SESSION_LIFETIME"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return run(c.Context, cfg)
		},
	}
}

// loadConfig applies the layers in order and validates the result. Flags
// override the file only when actually given (on the command line or
// through their environment variable).
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	if path := c.String("config"); path != "" {
		if err := cfg.LoadTOML(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	setString := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	setString("database-url", &cfg.DatabaseURL)
	setString("session-secret", &cfg.SessionSecret)
	setString("base-url", &cfg.BaseURL)
	setString("google-client-id", &cfg.Google.ClientID)
	setString("google-client-secret", &cfg.Google.ClientSecret)
	setString("facebook-app-id", &cfg.Facebook.ClientID)
	setString("facebook-app-secret", &cfg.Facebook.ClientSecret)
	setString("log-level", &cfg.LogLevel)
	if c.IsSet("cookie-secure") {
		cfg.CookieSecure = c.Bool("cookie-secure")
	}
	if c.IsSet("session-lifetime") {
		cfg.SessionLifetime = c.Duration("session-lifetime")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run creates the logger and the server, then blocks until shutdown.
//
// Log levels (from least to most severe): Debug → Info → Warn → Error.
func run(ctx context.Context, cfg *config.Config) error {
	level, _ := cfg.Level() // validated already
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}
