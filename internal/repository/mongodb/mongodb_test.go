package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/secrets/internal/model"
	"github.com/sakif/secrets/internal/repository"
	"github.com/sakif/secrets/internal/repository/repotest"
)

func TestUserDocRoundTrip(t *testing.T) {
	u := &model.User{
		ID:           "abc",
		Username:     "alice",
		DisplayName:  "Alice",
		PasswordHash: "h",
		GoogleID:     "g",
		Secret:       "s",
		CreatedAt:    time.Unix(10, 0).UTC(),
		UpdatedAt:    time.Unix(20, 0).UTC(),
	}

	assert.Equal(t, u, fromModel(u).toModel())
}

// TestStore runs the shared suite against a real server. Each subtest gets
// its own throwaway database.
//
//	TEST_MONGO_URI=mongodb://localhost:27017 go test ./...
func TestStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	repotest.Run(t, func(t *testing.T) repository.Store {
		ctx := context.Background()
		name := "secrets_test_" + xid.New().String()
		db, err := New(ctx, uri, name)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = db.client.Database(name).Drop(context.Background())
			db.Close()
		})
		return db
	})
}
