package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrRemoteMiss is returned by a Remote when the key is absent or expired.
var ErrRemoteMiss = errors.New("remote cache miss")

// l2WriteTimeout bounds a single asynchronous mirror write to L2.
const l2WriteTimeout = 3 * time.Second

// defaultL2ReadTimeout bounds a synchronous L2 lookup. A slow or dead remote
// then costs a miss, not a stalled request.
const defaultL2ReadTimeout = 300 * time.Millisecond

// Remote is the L2 tier. Implementations must honour the per-entry TTL.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// remoteSweeper is implemented by remotes that cannot expire keys by themselves.
type remoteSweeper interface {
	Sweep(ctx context.Context) error
}

// TieredCache implements L1 (memory) + L2 (remote) caching.
// L1 is fast but lost on restart. L2 survives restarts and is shared between
// instances. With no remote configured every L2 operation is a no-op.
type TieredCache struct {
	l1              *lruStore
	remote          Remote // nil if L2 unavailable
	now             func() time.Time
	cleanupInterval time.Duration
	readTimeout     time.Duration

	writes   sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// CacheOptions configures NewTieredCache.
type CacheOptions struct {
	MaxEntries      int
	CleanupInterval time.Duration
	Remote          Remote
	Clock           func() time.Time
	ReadTimeout     time.Duration // L2 lookups, default 300ms
}

// NewTieredCache builds the cache and starts the L1 cleanup goroutine.
// Call Close to stop it.
func NewTieredCache(opts CacheOptions) *TieredCache {
	c := &TieredCache{
		l1:              newLRUStore(opts.MaxEntries),
		remote:          opts.Remote,
		now:             opts.Clock,
		cleanupInterval: opts.CleanupInterval,
		readTimeout:     opts.ReadTimeout,
		stop:            make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.cleanupInterval <= 0 {
		c.cleanupInterval = 5 * time.Minute
	}
	if c.readTimeout <= 0 {
		c.readTimeout = defaultL2ReadTimeout
	}

	slog.Info("cache: initialized",
		slog.Bool("remote", c.remote != nil),
		slog.Int("max_entries", opts.MaxEntries),
		slog.Duration("cleanup_interval", c.cleanupInterval))

	go c.cleanupLoop()
	return c
}

// OpenRemote connects the configured L2 backend. Redis wins over Postgres.
// Returns nil when nothing is configured or the backend is unreachable, which
// leaves the cache in L1-only mode.
func OpenRemote(ctx context.Context, redisURL, databaseURL string) Remote {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	switch {
	case redisURL != "":
		r, err := NewRedisRemote(ctx, redisURL)
		if err != nil {
			slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
			return nil
		}
		slog.Info("cache: L2 redis connected")
		return r
	case databaseURL != "":
		p, err := NewPostgresRemote(ctx, databaseURL)
		if err != nil {
			slog.Warn("cache: postgres unreachable, L2 disabled", slog.Any("error", err))
			return nil
		}
		slog.Info("cache: L2 postgres connected")
		return p
	}
	return nil
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("gt:%x", hash[:12])
}

// Namespace returns a view whose keys are prefixed with prefix. Views share
// the underlying stores, so one TieredCache serves any number of logical caches.
func (c *TieredCache) Namespace(prefix string) *Cache {
	return &Cache{tc: c, prefix: prefix + ":"}
}

// Flush waits for pending asynchronous L2 writes.
func (c *TieredCache) Flush() {
	c.writes.Wait()
}

// Close stops the cleanup loop, waits for pending L2 writes and closes the remote.
func (c *TieredCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.writes.Wait()
	if c.remote != nil {
		return c.remote.Close()
	}
	return nil
}

// Len reports the number of L1 entries, expired ones included.
func (c *TieredCache) Len() int {
	return c.l1.len()
}

// Sweep removes expired L1 entries and returns how many were dropped.
func (c *TieredCache) Sweep() int {
	return c.l1.sweep(c.now())
}

// cleanupLoop periodically removes expired L1 entries. It only catches entries
// nobody re-reads; reads evict lazily.
func (c *TieredCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				slog.Debug("cache: swept expired entries", slog.Int("count", n))
			}
			if s, ok := c.remote.(remoteSweeper); ok {
				ctx, cancel := context.WithTimeout(context.Background(), l2WriteTimeout)
				if err := s.Sweep(ctx); err != nil {
					slog.Debug("cache: L2 sweep failed", slog.Any("error", err))
				}
				cancel()
			}
		}
	}
}

// Cache is a namespaced view over a TieredCache.
type Cache struct {
	tc     *TieredCache
	prefix string
}

func (c *Cache) key(k string) string { return c.prefix + k }

// Get checks L1 only.
func (c *Cache) Get(key string) ([]byte, bool) {
	data, ok := c.tc.l1.get(c.key(key), c.tc.now())
	if ok {
		metrics.CacheL1Hits.Add(1)
	}
	return data, ok
}

// GetWithPromotion tries L1, then L2. On an L2 hit the value is written back
// into L1 with promoteTTL.
func (c *Cache) GetWithPromotion(ctx context.Context, key string, promoteTTL time.Duration) ([]byte, bool) {
	if data, ok := c.Get(key); ok {
		return data, true
	}
	if c.tc.remote == nil {
		metrics.CacheMisses.Add(1)
		return nil, false
	}

	full := c.key(key)
	rctx, cancel := context.WithTimeout(ctx, c.tc.readTimeout)
	data, err := c.tc.remote.Get(rctx, full)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrRemoteMiss) {
			slog.Debug("cache: L2 get failed", slog.String("key", full), slog.Any("error", err))
		}
		metrics.CacheMisses.Add(1)
		return nil, false
	}
	metrics.CacheL2Hits.Add(1)
	now := c.tc.now()
	c.tc.l1.set(full, data, now, now.Add(promoteTTL))
	return data, true
}

// GetMany resolves keys from L1 and then issues a single batched L2 lookup for
// the remainder. L2 hits are promoted into L1 with promoteTTL.
func (c *Cache) GetMany(ctx context.Context, keys []string, promoteTTL time.Duration) map[string][]byte {
	out := make(map[string][]byte, len(keys))
	var missing []string
	for _, k := range keys {
		if data, ok := c.Get(k); ok {
			out[k] = data
			continue
		}
		missing = append(missing, k)
	}
	if len(missing) == 0 {
		return out
	}
	if c.tc.remote == nil {
		metrics.CacheMisses.Add(int64(len(missing)))
		return out
	}

	full := make([]string, len(missing))
	for i, k := range missing {
		full[i] = c.key(k)
	}
	rctx, cancel := context.WithTimeout(ctx, c.tc.readTimeout)
	found, err := c.tc.remote.MGet(rctx, full)
	cancel()
	if err != nil {
		slog.Debug("cache: L2 mget failed", slog.Int("keys", len(full)), slog.Any("error", err))
		metrics.CacheMisses.Add(int64(len(missing)))
		return out
	}

	now := c.tc.now()
	expiresAt := now.Add(promoteTTL)
	for i, k := range missing {
		data, ok := found[full[i]]
		if !ok {
			metrics.CacheMisses.Add(1)
			continue
		}
		metrics.CacheL2Hits.Add(1)
		c.tc.l1.set(full[i], data, now, expiresAt)
		out[k] = data
	}
	return out
}

// Set writes L1 synchronously and mirrors the write to L2 in the background.
// L2 failures are logged and dropped.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	full := c.key(key)
	now := c.tc.now()
	c.tc.l1.set(full, value, now, now.Add(ttl))

	if c.tc.remote == nil {
		return
	}
	c.tc.writes.Add(1)
	go func() {
		defer c.tc.writes.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l2WriteTimeout)
		defer cancel()
		if err := c.tc.remote.Set(wctx, full, value, ttl); err != nil {
			slog.Debug("cache: L2 set failed", slog.String("key", full), slog.Any("error", err))
		}
	}()
}

// Delete removes key from L1. L2 entries are left to expire.
func (c *Cache) Delete(key string) {
	c.tc.l1.delete(c.key(key))
}

// LoadJSON reads key (with promotion) and decodes it into T.
// Returns the zero value and false on miss or decode error.
func LoadJSON[T any](ctx context.Context, c *Cache, key string, promoteTTL time.Duration) (T, bool) {
	var out T
	data, ok := c.GetWithPromotion(ctx, key, promoteTTL)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.Delete(key)
		var zero T
		return zero, false
	}
	return out, true
}

// LoadManyJSON is the batched form of LoadJSON. Undecodable entries count as misses.
func LoadManyJSON[T any](ctx context.Context, c *Cache, keys []string, promoteTTL time.Duration) map[string]T {
	raw := c.GetMany(ctx, keys, promoteTTL)
	out := make(map[string]T, len(raw))
	for k, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			c.Delete(k)
			continue
		}
		out[k] = v
	}
	return out
}

// StoreJSON marshals v and stores it under key.
func StoreJSON[T any](ctx context.Context, c *Cache, key string, v T, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("cache: marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	c.Set(ctx, key, data, ttl)
}
