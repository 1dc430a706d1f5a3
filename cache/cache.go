// Package cache implements a TTL-bounded, LRU-evicting result cache. Every
// entry carries an expiry timestamp; expired entries are logically absent
// from Get even before the background sweep physically purges them. A
// maximum entry count is enforced by evicting the least-recently-used entry.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// Options configures a Cache.
type Options struct {
	// SweepInterval controls how often the background sweep purges expired
	// entries that are never looked up again. Defaults to one minute.
	SweepInterval time.Duration

	// Now supplies the clock. Overridden in tests for deterministic TTL
	// expiry; defaults to time.Now.
	Now func() time.Time
}

// WithSweepInterval overrides the background sweep interval.
func WithSweepInterval(d time.Duration) func(o *Options) {
	return func(o *Options) { o.SweepInterval = d }
}

// WithClock injects the time source used for expiry decisions.
func WithClock(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Now = now }
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Size        int
	MaxSize     int
}

// HitRate returns hits / (hits + misses), or zero before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key          string
	value        any
	expiresAt    time.Time
	lastAccessed time.Time
}

// Cache is a mutex-guarded TTL+LRU cache. All operations execute under a
// brief critical section and never suspend. Safe for concurrent use.
type Cache struct {
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache holding at most maxSize entries, each living for
// defaultTTL unless SetTTL overrides it. The background sweeper starts
// immediately and runs until Close.
func New(maxSize int, defaultTTL time.Duration, optFns ...func(o *Options)) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}

	opts := Options{SweepInterval: defaultSweepInterval, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}

	c := &Cache{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        opts.Now,
		items:      make(map[string]*list.Element, maxSize),
		order:      list.New(),
		stop:       make(chan struct{}),
	}

	go c.sweepLoop(opts.SweepInterval)

	return c
}

// Set stores value under key with the cache's default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key, expiring after ttl. Overwriting an
// existing key refreshes its TTL and promotes it to most-recently-used
// without counting as an eviction. A ttl of zero or below stores an entry
// that is already expired and never observably retrievable.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = now.Add(ttl)
		e.lastAccessed = now
		c.order.MoveToFront(el)
		return
	}

	if len(c.items) >= c.maxSize {
		c.evictOldestLocked()
	}

	el := c.order.PushFront(&entry{
		key:          key,
		value:        value,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
	})
	c.items[key] = el
}

// Get returns the live value for key. An absent or expired key counts as a
// miss; expired entries are lazily removed. A hit promotes the key to
// most-recently-used.
func (c *Cache) Get(key string) (any, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	e := el.Value.(*entry)
	if !now.Before(e.expiresAt) {
		c.removeLocked(el)
		c.expirations++
		c.misses++
		return nil, false
	}

	c.hits++
	e.lastAccessed = now
	c.order.MoveToFront(el)
	return e.value, true
}

// Len returns the current number of physically stored entries, including
// expired ones not yet purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        len(c.items),
		MaxSize:     c.maxSize,
	}
}

// Clear removes all entries. Counters are retained.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
}

// Close stops the background sweeper and clears the cache. Idempotent.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.Clear()
}

// sweep purges every expired entry regardless of access pattern, bounding
// memory for keys that are never looked up again.
func (c *Cache) sweep() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry); !now.Before(e.expiresAt) {
			c.removeLocked(el)
			c.expirations++
		}
		el = prev
	}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) evictOldestLocked() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeLocked(el)
	c.evictions++
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
}
