package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(maxSize int, ttl time.Duration) (*Cache, *fakeClock) {
	clk := newFakeClock()
	c := New(maxSize, ttl, WithClock(clk.Now), WithSweepInterval(time.Hour))
	return c, clk
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
}

func TestCache_TTLExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	defer c.Close()

	c.Set("k", "v")

	_, ok := c.Get("k")
	require.True(t, ok)

	clk.Advance(time.Second) // expiry is inclusive: now == expiresAt is expired

	_, ok = c.Get("k")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Misses, "expired get counts exactly one miss")
	assert.Equal(t, uint64(1), stats.Expirations)
	assert.Equal(t, 0, stats.Size, "expired entry lazily removed")
}

func TestCache_ZeroTTLNeverRetrievable(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	defer c.Close()

	c.SetTTL("zero", "v", 0)
	_, ok := c.Get("zero")
	assert.False(t, ok)

	c.SetTTL("neg", "v", -time.Second)
	_, ok = c.Get("neg")
	assert.False(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	c, _ := newTestCache(3, time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used key must be evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.Truef(t, ok, "key %s should survive eviction", k)
	}
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_OverwriteRefreshesWithoutEviction(t *testing.T) {
	c, clk := newTestCache(2, time.Second)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)

	clk.Advance(900 * time.Millisecond)
	c.Set("a", 10) // refresh TTL, promote to MRU, no eviction

	assert.Equal(t, uint64(0), c.Stats().Evictions)
	assert.Equal(t, 2, c.Len())

	clk.Advance(200 * time.Millisecond) // b expired, refreshed a still live

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, got)

	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_CapacityPlusOneEvictsExactlyLRU(t *testing.T) {
	const maxSize = 5
	c, _ := newTestCache(maxSize, time.Minute)
	defer c.Close()

	for i := 0; i < maxSize+1; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, maxSize, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)

	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest key evicted")
	_, ok = c.Get("k1")
	assert.True(t, ok)
}

func TestCache_SweepPurgesUntouchedKeys(t *testing.T) {
	clk := newFakeClock()
	c := New(10, time.Second, WithClock(clk.Now), WithSweepInterval(time.Hour))
	defer c.Close()

	c.Set("silent", "v")
	clk.Advance(2 * time.Second)

	c.sweep()

	assert.Equal(t, 0, c.Len(), "sweep bounds memory without any Get")
	assert.Equal(t, uint64(1), c.Stats().Expirations)
	// No miss counted: nothing looked the key up.
	assert.Equal(t, uint64(0), c.Stats().Misses)
}

func TestCache_ClearRetainsCounters(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("k", "v")
	c.Get("k")
	c.Get("missing")

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestStats_HitRate(t *testing.T) {
	assert.Zero(t, Stats{}.HitRate())
	assert.InDelta(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRate(), 1e-9)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(100, time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%50)
				c.Set(key, n)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}
