package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/secrets/internal/model"
)

// newFileDB opens a database file in a per-test temp dir. Unlike ":memory:",
// its pool hands out as many connections as the callers ask for.
func newFileDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "secrets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWithPragmas(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:"},
		{"data/secrets.db", "data/secrets.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		{"file:x.db?mode=rwc", "file:x.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, withPragmas(tt.dsn))
		})
	}
}

func TestNew_PragmasOnEveryConnection(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	// Hold several connections at once so the pool must open new ones.
	for i := 0; i < 4; i++ {
		c, err := db.conn.Conn(ctx)
		require.NoError(t, err)
		defer c.Close()

		var timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout, "connection %d", i)

		var mode string
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode, "connection %d", i)
	}
}

func TestNew_FileDBConcurrentWrites(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers*4)
	ids := make([]string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			user := &model.User{Username: fmt.Sprintf("user-%d", i), DisplayName: "u", PasswordHash: "h"}
			if err := db.Create(ctx, user); err != nil {
				errs <- err
				return
			}
			if err := db.UpdateSecret(ctx, user.ID, fmt.Sprintf("secret %d", i)); err != nil {
				errs <- err
			}
			if err := db.CommitSession(ctx, fmt.Sprintf("token-%d", i), []byte("payload"), time.Now().Add(time.Hour)); err != nil {
				errs <- err
			}
			shared, err := db.FindOrCreateByProvider(ctx, model.ProviderGoogle, "g-shared", "Gina")
			if err != nil {
				errs <- err
				return
			}
			ids[i] = shared.ID
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write failed: %v", err)
	}

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	n, err := db.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers+1, n)

	withSecrets, err := db.ListWithSecrets(ctx)
	require.NoError(t, err)
	assert.Len(t, withSecrets, workers)
}
