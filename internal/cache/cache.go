// Package cache is the in-memory store of prior successful responses.
// Keys encode category and parameters ("ongoing_2", "detail_one-piece");
// the category prefix decides the TTL. Entries expire lazily on read, plus
// an explicit sweep for callers that want to reclaim memory eagerly.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/gotaku-app/gotaku/internal/models"
)

const (
	// EpisodeTTL is short: stream server lists rotate quickly upstream.
	EpisodeTTL = time.Minute
	// DetailTTL is long: detail pages barely change between episodes.
	DetailTTL = time.Hour
	// DefaultTTL covers every list-shaped category.
	DefaultTTL = 5 * time.Minute
)

type entry struct {
	payload  any
	storedAt time.Time
}

// Cache is one mutex around one map. Every operation is O(1) map access
// plus a timestamp comparison, so a single exclusive region is enough and
// readers can never observe a half-written entry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// TTLFor returns the lifetime for a key based on its category prefix.
func TTLFor(key string) time.Duration {
	switch {
	case strings.HasPrefix(key, "episode_"):
		return EpisodeTTL
	case strings.HasPrefix(key, "detail_"):
		return DetailTTL
	default:
		return DefaultTTL
	}
}

// Get returns the cached envelope for key, or nil. An entry past its TTL is
// removed and reported as a miss so callers never observe stale data. A
// payload whose type does not match T is also a miss; the assertion is
// checked, never a blind cast.
func Get[T any](c *Cache, key string) *models.Envelope[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(e.storedAt) > TTLFor(key) {
		delete(c.entries, key)
		return nil
	}
	env, ok := e.payload.(models.Envelope[T])
	if !ok {
		return nil
	}
	return &env
}

// Put stores an envelope under key, replacing any previous entry.
func Put[T any](c *Cache, key string, env models.Envelope[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{payload: env, storedAt: c.now()}
}

// Remove drops one entry.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// ClearExpired sweeps out every entry past its TTL.
func (c *Cache) ClearExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.storedAt) > TTLFor(key) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
