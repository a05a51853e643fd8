// Package cache is the process-wide freshness-tiered result store.
//
// The cache is purely an optimization over sources of truth that can always
// be recomputed: nothing persists across restarts, and entries past the
// CACHED bound are treated as misses, never served. Degraded results are
// kept out by construction — finding one cached is an internal invariant
// violation that surfaces as an error rather than being silently served.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Freshness tier bounds. An entry's tier is a pure function of its age.
const (
	LiveMaxAge   = 30 * time.Second
	FreshMaxAge  = 5 * time.Minute
	CachedMaxAge = 30 * time.Minute
)

// shardCount spreads keys across independently locked maps so writes to one
// key never block operations on unrelated keys. Power of two for cheap
// masking.
const shardCount = 16

type entry struct {
	value      domain.RoutedResult
	computedAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Cache is a keyed store with tiered time-to-live semantics, shared across
// concurrent queries. Construct with New; the clock is injectable so tests
// can freeze time.
type Cache struct {
	shards [shardCount]*shard
	clock  clockwork.Clock
}

// New creates an empty cache. Pass nil to use the real clock.
func New(clk clockwork.Clock) *Cache {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	c := &Cache{clock: clk}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]entry)}
	}
	return c
}

// Fingerprint derives a stable cache key from raw query text: whitespace is
// collapsed and case folded so trivially different phrasings share a key.
func Fingerprint(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}

// Get returns the cached value and its freshness tier. Entries older than
// the CACHED bound are misses and are removed lazily. A degraded entry is an
// invariant violation: Get reports it as an error and never serves it.
func (c *Cache) Get(key string) (domain.RoutedResult, domain.Freshness, bool, error) {
	s := c.shardFor(key)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return domain.RoutedResult{}, domain.FreshnessExpired, false, nil
	}

	if e.value.IsDegraded() {
		return domain.RoutedResult{}, domain.FreshnessExpired, false,
			fmt.Errorf("%w: degraded result cached under %s", domain.ErrCacheInconsistency, key)
	}

	age := c.clock.Now().Sub(e.computedAt)
	tier := tierFor(age)
	if tier == domain.FreshnessExpired {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have
		// refreshed the entry.
		if cur, ok := s.entries[key]; ok && cur.computedAt.Equal(e.computedAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return domain.RoutedResult{}, domain.FreshnessExpired, false, nil
	}

	return e.value, tier, true, nil
}

// Put stores a value under key, resetting its age. Degraded results are
// rejected: a transient upstream failure must not poison future lookups.
func (c *Cache) Put(key string, value domain.RoutedResult) error {
	if value.IsDegraded() {
		return fmt.Errorf("%w: refusing to cache degraded result for %s", domain.ErrCacheInconsistency, key)
	}

	s := c.shardFor(key)
	s.mu.Lock()
	s.entries[key] = entry{value: value, computedAt: c.clock.Now()}
	s.mu.Unlock()
	return nil
}

// Invalidate removes key, reporting whether it was present. Used for
// explicit upstream-change notification and administrative reset.
func (c *Cache) Invalidate(key string) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	return ok
}

// InvalidateMatching removes every entry whose value satisfies pred and
// returns the count. Lets an ingest source drop all results derived from a
// station whose upstream data just changed.
func (c *Cache) InvalidateMatching(pred func(domain.RoutedResult) bool) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if pred(e.value) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Sweep removes entries past the CACHED bound and returns how many it
// dropped. Scheduled periodically so dead entries do not accumulate between
// lookups.
func (c *Cache) Sweep() int {
	now := c.clock.Now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if now.Sub(e.computedAt) >= CachedMaxAge {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[xxhash.Sum64String(key)&(shardCount-1)]
}

func tierFor(age time.Duration) domain.Freshness {
	switch {
	case age < LiveMaxAge:
		return domain.FreshnessLive
	case age < FreshMaxAge:
		return domain.FreshnessFresh
	case age < CachedMaxAge:
		return domain.FreshnessCached
	default:
		return domain.FreshnessExpired
	}
}
