// Package repotest is a behaviour suite every repository.Store must pass.
// Backends that need an external server (Postgres, Mongo) run it only when a
// connection string is supplied through the environment.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/model"
	"github.com/sakif/secrets/internal/repository"
)

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &model.User{Username: "alice", DisplayName: "alice", PasswordHash: "hash"}
		require.NoError(t, s.Create(ctx, u))
		require.NotEmpty(t, u.ID)

		byName, err := s.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)
		assert.Equal(t, "hash", byName.PasswordHash)

		byID, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, &model.User{Username: "bob", PasswordHash: "h"}))
		err := s.Create(ctx, &model.User{Username: "bob", PasswordHash: "h2"})
		assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetByUsername(ctx, "ghost")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
		_, err = s.GetUserByID(ctx, "ghost")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
		err = s.UpdateSecret(ctx, "ghost", "x")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})

	t.Run("FindOrCreateByProvider", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.FindOrCreateByProvider(ctx, model.ProviderGoogle, "g-1", "John Smith")
		require.NoError(t, err)
		again, err := s.FindOrCreateByProvider(ctx, model.ProviderGoogle, "g-1", "Johnny")
		require.NoError(t, err)
		other, err := s.FindOrCreateByProvider(ctx, model.ProviderGoogle, "g-2", "John Smith")
		require.NoError(t, err)
		fb, err := s.FindOrCreateByProvider(ctx, model.ProviderFacebook, "g-1", "John Smith")
		require.NoError(t, err)

		assert.Equal(t, a.ID, again.ID)
		assert.NotEqual(t, a.ID, other.ID)
		assert.NotEqual(t, a.ID, fb.ID)
		assert.Equal(t, "g-1", a.GoogleID)
		assert.Equal(t, "g-1", fb.FacebookID)

		n, err := s.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("Secrets", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &model.User{Username: "carol", PasswordHash: "h"}
		require.NoError(t, s.Create(ctx, u))
		require.NoError(t, s.Create(ctx, &model.User{Username: "dave", PasswordHash: "h"}))

		list, err := s.ListWithSecrets(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		require.NoError(t, s.UpdateSecret(ctx, u.ID, "one"))
		require.NoError(t, s.UpdateSecret(ctx, u.ID, "two"))

		list, err = s.ListWithSecrets(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "two", list[0].Secret)
	})

	t.Run("Sessions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.CommitSession(ctx, "live", []byte("a"), time.Now().Add(time.Hour)))
		require.NoError(t, s.CommitSession(ctx, "live", []byte("b"), time.Now().Add(time.Hour)))
		require.NoError(t, s.CommitSession(ctx, "dead", []byte("c"), time.Now().Add(-time.Hour)))

		data, found, err := s.FindSession(ctx, "live")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("b"), data)

		_, found, err = s.FindSession(ctx, "dead")
		require.NoError(t, err)
		assert.False(t, found)

		_, err = s.DeleteExpiredSessions(ctx)
		require.NoError(t, err)

		require.NoError(t, s.DeleteSession(ctx, "live"))
		require.NoError(t, s.DeleteSession(ctx, "live"))
		_, found, err = s.FindSession(ctx, "live")
		require.NoError(t, err)
		assert.False(t, found)
	})
}
