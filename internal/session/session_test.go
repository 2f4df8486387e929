package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func (f *fakeUsers) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *fakeUsers) {
	t.Helper()
	users := &fakeUsers{users: map[string]*model.User{
		"u1": {ID: "u1", Username: "alice"},
	}}
	return NewManager(memstore.New(), users, Options{Lifetime: time.Hour}, discardLogger()), users
}

// testRouter exposes the manager's operations as tiny endpoints.
func testRouter(m *Manager) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if err := m.Establish(r.Context(), r.URL.Query().Get("id")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := m.Destroy(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("/private", RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFromContext(r.Context())
		io.WriteString(w, u.ID)
	})))
	return m.Middleware(mux)
}

func do(t *testing.T, h http.Handler, path string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

// =========================================================================
// LIFECYCLE
// =========================================================================

func TestEstablishRestoreDestroy(t *testing.T) {
	m, _ := newTestManager(t)
	h := testRouter(m)
	ctx := context.Background()

	resp := do(t, h, "/login?id=u1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie, "Establish must set the session cookie")
	assert.True(t, cookie.HttpOnly)

	user, err := m.Restore(ctx, cookie.Value)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)

	resp = do(t, h, "/logout", cookie)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	user, err = m.Restore(ctx, cookie.Value)
	require.NoError(t, err)
	assert.Nil(t, user, "a destroyed session must restore as absent")

	// Logging out again with the dead cookie is harmless.
	resp = do(t, h, "/logout", cookie)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestEstablish_RenewsToken(t *testing.T) {
	m, _ := newTestManager(t)
	h := testRouter(m)

	first := sessionCookie(do(t, h, "/login?id=u1", nil))
	require.NotNil(t, first)
	second := sessionCookie(do(t, h, "/login?id=u1", first))
	require.NotNil(t, second)

	assert.NotEqual(t, first.Value, second.Value)

	user, err := m.Restore(context.Background(), first.Value)
	require.NoError(t, err)
	assert.Nil(t, user, "the pre-login token must stop working")
}

func TestRestore_Absent(t *testing.T) {
	m, users := newTestManager(t)
	h := testRouter(m)
	ctx := context.Background()

	user, err := m.Restore(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = m.Restore(ctx, "never-issued")
	require.NoError(t, err)
	assert.Nil(t, user)

	cookie := sessionCookie(do(t, h, "/login?id=u1", nil))
	users.delete("u1")
	user, err = m.Restore(ctx, cookie.Value)
	require.NoError(t, err)
	assert.Nil(t, user, "a session pointing at a deleted user is absent")
}

// =========================================================================
// MIDDLEWARE
// =========================================================================

func TestRequireUser(t *testing.T) {
	m, _ := newTestManager(t)
	h := testRouter(m)

	resp := do(t, h, "/private", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	cookie := sessionCookie(do(t, h, "/login?id=u1", nil))
	resp = do(t, h, "/private", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "u1", string(body))
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), &model.User{ID: "x"})
	u, ok := UserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "x", u.ID)
	assert.Len(t, LogAttrs(ctx), 1)
}

// =========================================================================
// STORE ADAPTER
// =========================================================================

type fakeSessionRepo struct {
	mu       sync.Mutex
	rows     map[string][]byte
	cleanups atomic.Int32
}

func (f *fakeSessionRepo) FindSession(_ context.Context, token string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[token]
	return b, ok, nil
}

func (f *fakeSessionRepo) CommitSession(_ context.Context, token string, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[token] = data
	return nil
}

func (f *fakeSessionRepo) DeleteSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, token)
	return nil
}

func (f *fakeSessionRepo) DeleteExpiredSessions(context.Context) (int64, error) {
	f.cleanups.Add(1)
	return 0, nil
}

func TestStore_Delegates(t *testing.T) {
	repo := &fakeSessionRepo{rows: map[string][]byte{}}
	s := NewStore(repo, discardLogger())

	require.NoError(t, s.Commit("t", []byte("d"), time.Now().Add(time.Hour)))
	b, found, err := s.Find("t")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("d"), b)

	require.NoError(t, s.Delete("t"))
	_, found, _ = s.FindCtx(context.Background(), "t")
	assert.False(t, found)
}

func TestStore_WithManager(t *testing.T) {
	repo := &fakeSessionRepo{rows: map[string][]byte{}}
	users := &fakeUsers{users: map[string]*model.User{"u1": {ID: "u1"}}}
	m := NewManager(NewStore(repo, discardLogger()), users, Options{}, discardLogger())

	cookie := sessionCookie(do(t, testRouter(m), "/login?id=u1", nil))
	require.NotNil(t, cookie)

	repo.mu.Lock()
	_, stored := repo.rows[cookie.Value]
	repo.mu.Unlock()
	assert.True(t, stored, "the payload is persisted under the cookie's token")
}

func TestStore_StartCleanup(t *testing.T) {
	repo := &fakeSessionRepo{rows: map[string][]byte{}}
	s := NewStore(repo, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := s.StartCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return repo.cleanups.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop after cancel")
	}
}
