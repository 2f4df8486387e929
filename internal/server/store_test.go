package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		raw  string
		want StoreTarget
	}{
		{"mongodb://localhost:27017/userDB", StoreTarget{Backend: BackendMongo, DSN: "mongodb://localhost:27017/userDB", Database: "userDB"}},
		{"mongodb+srv://u:p@cluster.example.net/", StoreTarget{Backend: BackendMongo, DSN: "mongodb+srv://u:p@cluster.example.net/"}},
		{"postgres://u:p@localhost/secrets?sslmode=disable", StoreTarget{Backend: BackendPostgres, DSN: "postgres://u:p@localhost/secrets?sslmode=disable"}},
		{"postgresql://localhost/secrets", StoreTarget{Backend: BackendPostgres, DSN: "postgresql://localhost/secrets"}},
		{"sqlite://data/secrets.db", StoreTarget{Backend: BackendSQLite, DSN: "data/secrets.db"}},
		{"sqlite://:memory:", StoreTarget{Backend: BackendSQLite, DSN: ":memory:"}},
		{"file:secrets.db?cache=shared", StoreTarget{Backend: BackendSQLite, DSN: "file:secrets.db?cache=shared"}},
		{"data/secrets.db", StoreTarget{Backend: BackendSQLite, DSN: "data/secrets.db"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDatabaseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDatabaseURL_Errors(t *testing.T) {
	for _, raw := range []string{"", "   ", "mysql://localhost/db", "sqlite://"} {
		_, err := ParseDatabaseURL(raw)
		assert.Error(t, err, "ParseDatabaseURL(%q)", raw)
	}
}

func TestOpenStore_SQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "secrets.db")

	store, target, err := OpenStore(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, BackendSQLite, target.Backend)
	assert.NoError(t, store.Ping(context.Background()))
	n, err := store.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
