// Package config holds the server's runtime settings.
//
// LAYERING:
// Settings are applied in order, each layer overriding the one before:
//
//  1. LoadDefaults (development-friendly values)
//  2. an optional TOML file (LoadTOML)
//  3. command-line flags and their environment variables (cmd/server)
//
// Validate runs last, once every layer has been applied.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sakif/secrets/internal/model"
)

// MinSessionSecretLength is the shortest accepted SESSION_SECRET.
const MinSessionSecretLength = 16

// OAuthCredentials are one provider's client credentials. A provider is
// enabled only when both are set.
type OAuthCredentials struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Enabled reports whether both halves of the credentials are present.
func (c OAuthCredentials) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config holds the runtime settings.
//
// Fields:
//   - Port: TCP port to listen on.
//   - DatabaseURL: credential store location; the scheme picks the backend
//     (mongodb://, postgres://, sqlite:// or a file path).
//   - SessionSecret: HMAC key for OAuth state tokens. Empty means a random
//     key per process (states then die with the process).
//   - BaseURL: public origin used to build OAuth callback URLs.
//   - CookieSecure: mark cookies Secure (HTTPS deployments).
//   - SessionLifetime: absolute session lifetime.
//   - SessionCleanupInterval: how often expired sessions are purged.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	Port                   int              `toml:"port"`
	DatabaseURL            string           `toml:"database_url"`
	SessionSecret          string           `toml:"session_secret"`
	BaseURL                string           `toml:"base_url"`
	CookieSecure           bool             `toml:"cookie_secure"`
	SessionLifetime        time.Duration    `toml:"session_lifetime"`
	SessionCleanupInterval time.Duration    `toml:"session_cleanup_interval"`
	LogLevel               string           `toml:"log_level"`
	Google                 OAuthCredentials `toml:"google"`
	Facebook               OAuthCredentials `toml:"facebook"`
}

// LoadDefaults populates c with development defaults. DatabaseURL stays
// empty: there is no sensible default store, so startup fails without one.
func (c *Config) LoadDefaults() {
	c.Port = 3000
	c.SessionLifetime = 24 * time.Hour
	c.SessionCleanupInterval = 5 * time.Minute
	c.LogLevel = "info"
}

// LoadTOML overlays the values present in the TOML file at path onto c.
// Keys absent from the file leave the current values untouched.
//
//	port = 8080
//	database_url = "postgres://localhost/secrets"
//	session_lifetime = "12h"
//
//	[google]
//	client_id = "..."
//	client_secret = "..."
func (c *Config) LoadTOML(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks the final configuration. All problems are reported at
// once, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("database URL is required (DATABASE_URL or MONGO_URI)"))
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("session secret must be at least %d characters", MinSessionSecretLength))
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("base URL %q must be an absolute http(s) URL", c.BaseURL))
		}
	}
	if c.SessionLifetime <= 0 {
		errs = append(errs, errors.New("session lifetime must be positive"))
	}
	if c.SessionCleanupInterval <= 0 {
		errs = append(errs, errors.New("session cleanup interval must be positive"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	for name, creds := range map[string]OAuthCredentials{"google": c.Google, "facebook": c.Facebook} {
		if (creds.ClientID == "") != (creds.ClientSecret == "") {
			errs = append(errs, fmt.Errorf("%s: client ID and secret must be set together", name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// PublicURL is BaseURL without a trailing slash, or http://localhost:<port>
// when BaseURL is unset.
func (c *Config) PublicURL() string {
	if c.BaseURL == "" {
		return fmt.Sprintf("http://localhost:%d", c.Port)
	}
	return strings.TrimRight(c.BaseURL, "/")
}

// CallbackURL is where the provider redirects back to after consent.
func (c *Config) CallbackURL(provider string) string {
	return c.PublicURL() + "/auth/" + provider + "/secrets"
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool { return c.Google.Enabled() }

// FacebookEnabled reports whether Facebook sign-in is configured.
func (c *Config) FacebookEnabled() bool { return c.Facebook.Enabled() }

// EnabledProviders lists the configured OAuth providers.
func (c *Config) EnabledProviders() []string {
	var out []string
	if c.GoogleEnabled() {
		out = append(out, model.ProviderGoogle)
	}
	if c.FacebookEnabled() {
		out = append(out, model.ProviderFacebook)
	}
	return out
}
