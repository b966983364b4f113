// Package cache persists fetched listing sets keyed by normalized sub-query.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-cars/metrics"
	"github.com/aluiziolira/go-scrape-cars/models"
)

// Options configures a ResultCache.
type Options struct {
	// TTL is how long an entry stays fresh. Zero means entries never go stale.
	TTL     time.Duration
	Metrics *metrics.Metrics
	// Now is the clock used for timestamps and staleness; defaults to time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries int
	Stale   int
	Hits    int64
	Misses  int64
	Oldest  time.Time
	Newest  time.Time
}

// ResultCache holds every entry in memory and writes through to the
// persisted store. It is safe for concurrent use.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry

	store   *store
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

// Open loads the store at path into memory. An unreadable store is moved
// aside and replaced by an empty one; rows that fail to decode are dropped.
func Open(ctx context.Context, path string, opts Options) (*ResultCache, error) {
	c := newCache(opts)

	s, entries, bad, err := openStore(ctx, path)
	var corrupt *CorruptError
	if errors.As(err, &corrupt) {
		moved, qerr := quarantine(path, c.now())
		slog.Warn("cache store unreadable, starting cold",
			slog.String("path", path),
			slog.String("moved_to", moved),
			slog.Any("error", corrupt),
		)
		if qerr != nil {
			return nil, qerr
		}
		s, entries, bad, err = openStore(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	c.store = s
	for _, e := range entries {
		c.entries[e.Key] = e
	}
	if len(bad) > 0 {
		keys := make([]string, 0, len(bad))
		for _, b := range bad {
			slog.Warn("dropping undecodable cache entry", slog.String("key", b.key), slog.Any("error", b.err))
			keys = append(keys, b.key)
		}
		if err := s.delete(ctx, keys...); err != nil {
			slog.Warn("failed to delete undecodable cache entries", slog.Any("error", err))
		}
	}

	slog.Debug("cache opened", slog.String("path", path), slog.Int("entries", len(c.entries)))
	return c, nil
}

// NewMemory returns a cache with no persisted store.
func NewMemory(opts Options) *ResultCache {
	return newCache(opts)
}

func newCache(opts Options) *ResultCache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ResultCache{
		entries: make(map[string]models.CacheEntry),
		ttl:     opts.TTL,
		now:     now,
		metrics: opts.Metrics,
	}
}

// Get returns a copy of the listings cached for key when a fresh entry
// exists. Absence and staleness both report false.
func (c *ResultCache) Get(key string) ([]models.Listing, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		c.metrics.IncCache("miss")
		return nil, false
	}
	if c.isStale(entry) {
		c.misses.Add(1)
		c.metrics.IncCache("stale")
		return nil, false
	}

	c.hits.Add(1)
	c.metrics.IncCache("hit")
	out := make([]models.Listing, len(entry.Listings))
	copy(out, entry.Listings)
	return out, true
}

// Put replaces the entry for key with listings stamped at the current time.
// The in-memory entry is updated even when the store write fails.
func (c *ResultCache) Put(ctx context.Context, key string, listings []models.Listing) error {
	entry := models.CacheEntry{
		Key:       key,
		Listings:  make([]models.Listing, len(listings)),
		FetchedAt: c.now(),
	}
	copy(entry.Listings, listings)

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	c.metrics.IncCache("write")

	if c.store == nil {
		return nil
	}
	return c.store.upsert(ctx, entry)
}

// Prune removes stale entries and returns how many were removed.
func (c *ResultCache) Prune(ctx context.Context) (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}

	c.mu.Lock()
	var stale []string
	for key, entry := range c.entries {
		if c.isStale(entry) {
			stale = append(stale, key)
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	if c.store != nil && len(stale) > 0 {
		if err := c.store.delete(ctx, stale...); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Stats reports entry counts and lookup totals.
func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Stats{
		Entries: len(c.entries),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	for _, entry := range c.entries {
		if c.isStale(entry) {
			st.Stale++
		}
		if st.Oldest.IsZero() || entry.FetchedAt.Before(st.Oldest) {
			st.Oldest = entry.FetchedAt
		}
		if entry.FetchedAt.After(st.Newest) {
			st.Newest = entry.FetchedAt
		}
	}
	return st
}

// Close releases the persisted store.
func (c *ResultCache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.close()
}

func (c *ResultCache) isStale(entry models.CacheEntry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(entry.FetchedAt) >= c.ttl
}
