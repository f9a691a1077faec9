package engine

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// lruStore is the L1 tier: a TTL map with least-recently-used eviction on top
// of ttlcache. A read or write moves the entry to the front; when the store is
// full the entry at the back goes first. maxEntries <= 0 means unbounded.
//
// Expiry is decided against the cache clock passed in by the caller, so tests
// can move time without sleeping. ttlcache's own wall-clock TTL is set to the
// same duration and only matters when nobody reads the entry again.
type lruStore struct {
	items *ttlcache.Cache[string, cacheEntry]
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func newLRUStore(maxEntries int) *lruStore {
	opts := []ttlcache.Option[string, cacheEntry]{
		ttlcache.WithDisableTouchOnHit[string, cacheEntry](),
	}
	if maxEntries > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, cacheEntry](uint64(maxEntries)))
	}
	return &lruStore{items: ttlcache.New(opts...)}
}

// get returns the entry data if present and not expired at now.
// Expired entries are removed on the way out.
func (s *lruStore) get(key string, now time.Time) ([]byte, bool) {
	item := s.items.Get(key)
	if item == nil {
		return nil, false
	}
	entry := item.Value()
	if !now.Before(entry.expiresAt) {
		s.items.Delete(key)
		return nil, false
	}
	return entry.data, true
}

// set stores data until expiresAt. now is the cache clock's current time.
func (s *lruStore) set(key string, data []byte, now, expiresAt time.Time) {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		s.items.Delete(key)
		return
	}
	s.items.Set(key, cacheEntry{data: data, expiresAt: expiresAt}, ttl)
}

func (s *lruStore) delete(key string) {
	s.items.Delete(key)
}

// sweep drops every entry expired at now and reports how many went.
func (s *lruStore) sweep(now time.Time) int {
	before := s.items.Len()
	s.items.DeleteExpired()
	for key, item := range s.items.Items() {
		if !now.Before(item.Value().expiresAt) {
			s.items.Delete(key)
		}
	}
	return before - s.items.Len()
}

func (s *lruStore) len() int {
	return s.items.Len()
}
