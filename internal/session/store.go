package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/sakif/secrets/internal/repository"
)

// Store adapts a repository.SessionRepository to scs.CtxStore, so session
// payloads live in the same database as the users they point at.
type Store struct {
	repo   repository.SessionRepository
	logger *slog.Logger
}

var _ scs.CtxStore = (*Store)(nil)

func NewStore(repo repository.SessionRepository, logger *slog.Logger) *Store {
	return &Store{repo: repo, logger: logger}
}

func (s *Store) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	return s.repo.FindSession(ctx, token)
}

func (s *Store) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	return s.repo.CommitSession(ctx, token, b, expiry)
}

func (s *Store) DeleteCtx(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

// The context-free methods complete scs.Store. scs calls the Ctx variants
// whenever the store provides them.

func (s *Store) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *Store) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *Store) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

// StartCleanup deletes expired sessions every interval until ctx is
// cancelled. The returned channel is closed once the loop has exited.
//
// Expired sessions are already invisible to FindCtx; this only reclaims space.
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.repo.DeleteExpiredSessions(ctx)
				if err != nil {
					if ctx.Err() == nil {
						s.logger.Error("session cleanup failed", slog.String("error", err.Error()))
					}
					continue
				}
				if n > 0 {
					s.logger.Debug("expired sessions removed", slog.Int64("count", n))
				}
			}
		}
	}()
	return done
}
