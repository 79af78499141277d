package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Defaults applied by New when given non-positive values. Operational floors
// for environment-supplied values live in pkg/config.
const (
	DefaultCapacity = 200
	DefaultTTL      = 6 * time.Hour
)

var (
	// ErrCacheMiss indicates the requested key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates Set was called with an invalid value.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Cache is a bounded, TTL-expiring, LRU-ordered store for generation
// results. All methods are safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration

	entries map[Key]*list.Element
	// order holds *item values: front is least recently used, back is most
	// recently used.
	order *list.List

	// now is replaceable in tests.
	now func() time.Time
}

type item struct {
	key   Key
	entry *Entry
}

// New creates a cache holding at most capacity entries, each valid for ttl
// after insertion. Non-positive values are replaced by DefaultCapacity and
// DefaultTTL.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[Key]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get retrieves the entry for key and marks it most recently used.
//
// Returns ErrCacheMiss if the key is absent. An entry whose TTL has lapsed is
// removed from the cache by the Get that discovers it, and ErrCacheMiss is
// returned. The returned entry is shared; callers must not modify it.
func (c *Cache) Get(key Key) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	it := elem.Value.(*item)
	if it.entry.IsExpired(c.now()) {
		c.remove(elem)
		cacheEvictions.WithLabelValues("expired").Inc()
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	c.order.MoveToBack(elem)
	cacheHits.Inc()
	return it.entry, nil
}

// Set stores a generation result under key at the most-recently-used
// position, with expiry fixed at now plus the cache TTL.
//
// If key already exists its old entry is removed first, so re-insertion
// refreshes both recency and expiry. If inserting pushes the cache over
// capacity, entries are evicted from the least-recently-used end until the
// bound holds. Expired-but-unread entries are not purged first and may be
// evicted by that pressure.
//
// Payload and contentType must be non-empty; a violation returns
// ErrInvalidEntry without mutating the cache. The modelID may be empty.
func (c *Cache) Set(key Key, payload, contentType, modelID string) error {
	if payload == "" {
		return fmt.Errorf("%w: empty payload", ErrInvalidEntry)
	}
	if contentType == "" {
		return fmt.Errorf("%w: empty content type", ErrInvalidEntry)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := &Entry{
		Payload:     payload,
		ContentType: contentType,
		ModelID:     modelID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
	}

	if elem, ok := c.entries[key]; ok {
		c.remove(elem)
	}
	c.entries[key] = c.order.PushBack(&item{key: key, entry: entry})

	for len(c.entries) > c.capacity {
		c.remove(c.order.Front())
		cacheEvictions.WithLabelValues("lru").Inc()
	}

	cacheEntries.Set(float64(len(c.entries)))
	return nil
}

// Len returns the number of stored entries, including entries whose TTL has
// lapsed but which have not been looked up yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries the cache holds.
func (c *Cache) Capacity() int {
	return c.capacity
}

// remove deletes elem from both the map and the recency list.
// Caller must hold c.mu.
func (c *Cache) remove(elem *list.Element) {
	it := c.order.Remove(elem).(*item)
	delete(c.entries, it.key)
	cacheEntries.Set(float64(len(c.entries)))
}
