package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CommitFindDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CommitSession(ctx, "tok", []byte("payload"), time.Now().Add(time.Hour)))

	data, found, err := db.FindSession(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, db.DeleteSession(ctx, "tok"))
	_, found, err = db.FindSession(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSession_CommitOverwrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CommitSession(ctx, "tok", []byte("v1"), time.Now().Add(time.Hour)))
	require.NoError(t, db.CommitSession(ctx, "tok", []byte("v2"), time.Now().Add(time.Hour)))

	data, found, err := db.FindSession(ctx, "tok")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v2"), data)
}

func TestSession_ExpiredIsNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CommitSession(ctx, "old", []byte("x"), time.Now().Add(-time.Minute)))

	_, found, err := db.FindSession(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSession_DeleteUnknownIsNoop(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, db.DeleteSession(context.Background(), "never-existed"))
}

func TestDeleteExpiredSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CommitSession(ctx, "old1", []byte("x"), time.Now().Add(-time.Hour)))
	require.NoError(t, db.CommitSession(ctx, "old2", []byte("x"), time.Now().Add(-time.Second)))
	require.NoError(t, db.CommitSession(ctx, "live", []byte("x"), time.Now().Add(time.Hour)))

	n, err := db.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, found, err := db.FindSession(ctx, "live")
	require.NoError(t, err)
	assert.True(t, found)
}
