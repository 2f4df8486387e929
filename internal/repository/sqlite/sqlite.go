// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database; it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - Learning database patterns without infrastructure complexity
// - Single-server deployments (which is most apps, honestly)
// - Development and testing (use ":memory:" for in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code; no C compiler needed, works everywhere Go works.
//
// DATABASE/SQL OVERVIEW:
// Go's standard library provides "database/sql": a generic interface for SQL databases.
// It works with any database through "drivers" (SQLite, Postgres, MySQL, etc.).
// Key types:
//   - sql.DB: a connection pool (NOT a single connection!)
//   - sql.Tx: a transaction
//   - sql.Row: a single result row
//   - sql.Rows: multiple result rows (must be closed!)
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// DRIVER REGISTRATION:
	// Importing modernc.org/sqlite runs its init(), which registers itself with
	// database/sql as a driver named "sqlite". We also use its *sqlite.Error type
	// to recognise UNIQUE constraint violations (see isUniqueViolation).
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/secrets/internal/repository"
)

// DB wraps a sql.DB connection pool and provides repository methods.
//
// WHY WRAP sql.DB IN A STRUCT?
// 1. We can attach methods to it (Create, GetUserByID, CommitSession, etc.)
// 2. It implements repository.Store; users and sessions live in one file
// 3. We control the lifecycle (New creates it, Close destroys it)
type DB struct {
	conn *sql.DB
}

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/secrets.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (great for tests, lost on close)
//
// CONNECTION POOL:
// sql.Open() does NOT actually open a connection; it just creates a pool manager.
// The first real connection happens when you run your first query.
// We call db.Ping() to force an immediate connection and verify it works.
func New(dbPath string) (*DB, error) {
	// Open a connection pool to the SQLite database.
	// "sqlite" is the driver name registered by the blank import above.
	conn, err := sql.Open("sqlite", withPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping verifies the connection actually works.
	// Without this, a bad path or permissions issue would only surface
	// on the first query, which is much harder to debug.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// Every connection to ":memory:" opens its OWN empty database. Pinning the
	// pool to a single connection keeps all queries on the same one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn}

	// Run database migrations to create/update tables
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// connPragmas are applied by the driver to EVERY connection it opens.
//
// PRAGMA STATEMENTS:
// SQLite has special "PRAGMA" commands that configure its behaviour, and most
// of them are per connection. Running "PRAGMA busy_timeout" once through
// sql.DB only configures whichever pooled connection happened to run it; the
// rest of the pool would still fail with SQLITE_BUSY the moment two requests
// write at once. modernc.org/sqlite reads _pragma parameters from the DSN and
// runs them on each new connection, so the whole pool behaves the same.
//
//   - busy_timeout(5000): a writer waits up to 5s for the lock instead of
//     failing straight away. SQLite allows one writer at a time, so writes
//     queue up and the last one wins.
//   - journal_mode(WAL): readers keep reading while a write is in progress.
var connPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// withPragmas appends connPragmas to a file DSN.
//
//	data/secrets.db        → data/secrets.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)
//	file:x.db?mode=rwc     → file:x.db?mode=rwc&_pragma=...
//
// ":memory:" is left alone: its pool is a single connection and WAL does not
// apply to it.
func withPragmas(dsn string) string {
	if dsn == ":memory:" {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range connPragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// Close closes the database connection pool.
//
// ALWAYS DEFER CLOSE:
// Wherever you call New(), immediately defer Close():
//
//	db, err := sqlite.New("data/secrets.db")
//	if err != nil { ... }
//	defer db.Close()
//
// This ensures the connection is cleaned up even if a panic occurs.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate runs all database migrations.
//
// MIGRATIONS IN PRODUCTION:
// For a single-file SQLite database, embedding SQL as string constants is fine.
// The Postgres backend uses goose with versioned migration files instead.
//
// CREATE TABLE IF NOT EXISTS is safe; it won't error if the table exists.
func (db *DB) migrate() error {
	// users: one row per account.
	// username, google_id and facebook_id are UNIQUE but nullable; SQLite
	// allows any number of NULLs in a UNIQUE column, which is exactly the
	// "unique when present" rule we need.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE,
			display_name  TEXT NOT NULL DEFAULT '',
			password_hash TEXT,
			google_id     TEXT UNIQUE,
			facebook_id   TEXT UNIQUE,
			secret        TEXT,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// sessions: server-side session payloads. expiry is stored as Unix
	// nanoseconds so comparisons are plain integer comparisons.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			token  TEXT PRIMARY KEY,
			data   BLOB NOT NULL,
			expiry INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expiry);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE / PRIMARY KEY constraint
// failure. The driver returns extended result codes; the low byte is the
// primary code (SQLITE_CONSTRAINT).
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
