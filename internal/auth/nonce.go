package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
)

// ErrNonceUsed is returned when a nonce is presented a second time.
var ErrNonceUsed = errors.New("auth: nonce already used")

// NonceGuard remembers consumed nonces until they could no longer be valid.
//
// Entries live for the state TTL; after that the JWT expiry check rejects the
// token anyway, so bigcache is free to evict them. bigcache keeps entries in
// a few large byte slices instead of millions of small objects, which keeps
// GC pauses flat even under a login storm.
//
// CAPACITY:
// bigcache evicts the oldest entries when a shard runs out of space, and an
// evicted nonce could be replayed. The cache is sized for MaxLiveNonces
// consumed nonces per TTL window with 2x headroom for uneven shards, so
// nothing is evicted for space below that rate. Above it, the oldest nonces
// may go early; Evicted reports how many did.
type NonceGuard struct {
	mu      sync.Mutex // makes the Get-then-Set in Consume atomic
	cache   *bigcache.BigCache
	evicted atomic.Int64
}

const (
	// MaxLiveNonces is the number of nonces the guard holds per TTL window
	// without evicting any for lack of space.
	MaxLiveNonces = 50_000

	// nonceEntryBytes bounds one cache entry: bigcache's 18-byte header,
	// a 20-char xid key, a 1-byte value and the queue's length prefix.
	nonceEntryBytes = 64
)

// nonceCacheConfig returns a bigcache config that holds MaxLiveNonces entries
// for ttl without running out of space.
func nonceCacheConfig(ttl time.Duration) bigcache.Config {
	cfg := bigcache.DefaultConfig(ttl)
	// The defaults preallocate hundreds of megabytes; nonces are 20 bytes.
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = MaxLiveNonces
	cfg.MaxEntrySize = nonceEntryBytes
	const mb = 1 << 20
	cfg.HardMaxCacheSize = (2*MaxLiveNonces*nonceEntryBytes + mb - 1) / mb
	cfg.CleanWindow = time.Minute
	cfg.Verbose = false
	return cfg
}

// NewNonceGuard creates a guard whose entries expire after ttl.
// The cache's janitor goroutine stops when ctx is cancelled or Close is called.
func NewNonceGuard(ctx context.Context, ttl time.Duration) (*NonceGuard, error) {
	g := &NonceGuard{}

	cfg := nonceCacheConfig(ttl)
	cfg.OnRemoveWithReason = func(_ string, _ []byte, reason bigcache.RemoveReason) {
		if reason == bigcache.NoSpace {
			g.evicted.Add(1)
		}
	}

	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth: creating nonce cache: %w", err)
	}
	g.cache = cache
	return g, nil
}

// Evicted returns how many nonces were dropped for lack of space before
// their TTL ran out.
func (g *NonceGuard) Evicted() int64 {
	return g.evicted.Load()
}

// Consume marks nonce as used. It fails with ErrNonceUsed if it already was.
func (g *NonceGuard) Consume(nonce string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.cache.Get(nonce)
	switch {
	case err == nil:
		return ErrNonceUsed
	case !errors.Is(err, bigcache.ErrEntryNotFound):
		return fmt.Errorf("auth: reading nonce cache: %w", err)
	}

	if err := g.cache.Set(nonce, []byte{1}); err != nil {
		return fmt.Errorf("auth: writing nonce cache: %w", err)
	}
	return nil
}

// Close stops the cache's background cleanup.
func (g *NonceGuard) Close() error {
	return g.cache.Close()
}
