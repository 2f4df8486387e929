package server

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/secrets/internal/repository"
	mongoRepo "github.com/sakif/secrets/internal/repository/mongodb"
	postgresRepo "github.com/sakif/secrets/internal/repository/postgres"
	sqliteRepo "github.com/sakif/secrets/internal/repository/sqlite"
)

// Backend names, as logged at startup.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongodb"
)

// StoreTarget is a parsed DATABASE_URL.
type StoreTarget struct {
	Backend  string
	DSN      string // what the backend's New receives
	Database string // MongoDB only: database name from the URL path
}

// ParseDatabaseURL picks the backend from the URL scheme:
//
//	mongodb://host/db, mongodb+srv://...   → MongoDB
//	postgres://..., postgresql://...       → PostgreSQL
//	sqlite://data/secrets.db, sqlite://:memory:
//	file:data/secrets.db, data/secrets.db  → SQLite
func ParseDatabaseURL(raw string) (StoreTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StoreTarget{}, fmt.Errorf("server: empty database URL")
	}

	scheme, rest, hasScheme := strings.Cut(raw, "://")
	if !hasScheme {
		// "file:x" and bare paths both go straight to the SQLite driver.
		return StoreTarget{Backend: BackendSQLite, DSN: raw}, nil
	}

	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		u, err := url.Parse(raw)
		if err != nil {
			return StoreTarget{}, fmt.Errorf("server: parsing MongoDB URI: %w", err)
		}
		return StoreTarget{Backend: BackendMongo, DSN: raw, Database: strings.Trim(u.Path, "/")}, nil
	case "postgres", "postgresql":
		return StoreTarget{Backend: BackendPostgres, DSN: raw}, nil
	case "sqlite", "sqlite3":
		if rest == "" {
			return StoreTarget{}, fmt.Errorf("server: sqlite URL %q has no path", raw)
		}
		return StoreTarget{Backend: BackendSQLite, DSN: rest}, nil
	default:
		return StoreTarget{}, fmt.Errorf("server: unsupported database scheme %q", scheme)
	}
}

// OpenStore opens (and migrates) the credential store named by raw.
func OpenStore(ctx context.Context, raw string) (repository.Store, StoreTarget, error) {
	target, err := ParseDatabaseURL(raw)
	if err != nil {
		return nil, target, err
	}

	var store repository.Store
	switch target.Backend {
	case BackendMongo:
		store, err = mongoRepo.New(ctx, target.DSN, target.Database)
	case BackendPostgres:
		store, err = postgresRepo.New(ctx, target.DSN)
	default:
		if err := ensureDir(target.DSN); err != nil {
			return nil, target, err
		}
		store, err = sqliteRepo.New(target.DSN)
	}
	if err != nil {
		return nil, target, fmt.Errorf("server: opening %s store: %w", target.Backend, err)
	}
	return store, target, nil
}

// ensureDir creates the parent directory of a SQLite database file
// (like `mkdir -p`), so "data/secrets.db" works on a fresh checkout.
func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("server: creating database directory %s: %w", dir, err)
	}
	return nil
}
