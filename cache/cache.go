// ABOUTME: In-memory cache with TTL-based expiration
// ABOUTME: Memory layer in front of the persisted session store

package cache

import (
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	data      any
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL map. A zero TTL keeps entries until cleared.
type Cache struct {
	store sync.Map
	ttl   time.Duration
	now   func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache and starts its cleanup loop. Call Close to stop it.
func New(ttl time.Duration) *Cache {
	c := &Cache{
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if ttl > 0 {
		go c.startCleanup(time.Minute)
	}
	return c
}

func (c *Cache) Get(key string) (any, bool) {
	val, ok := c.store.Load(key)
	if !ok {
		slog.Debug("Cache miss", "key", key)
		return nil, false
	}

	e := val.(entry)
	if c.expired(e, c.now()) {
		c.store.CompareAndDelete(key, val)
		slog.Debug("Cache expired", "key", key)
		return nil, false
	}

	slog.Debug("Cache hit", "key", key)
	return e.data, true
}

func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	e := entry{data: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.store.Store(key, e)
	slog.Debug("Cache set", "key", key, "ttl", ttl)
}

func (c *Cache) Clear(key string) {
	c.store.Delete(key)
}

// Close stops the cleanup loop. The cache stays usable.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) expired(e entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (c *Cache) purge() {
	now := c.now()
	c.store.Range(func(key, val any) bool {
		if c.expired(val.(entry), now) {
			c.store.CompareAndDelete(key, val)
		}
		return true
	})
}

func (c *Cache) startCleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purge()
		case <-c.stop:
			return
		}
	}
}
