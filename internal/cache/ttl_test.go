package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip_planner/internal/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)} }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newCache(capacity int, clk *fakeClock) *cache.TTL[string] {
	return cache.New[string](cache.Options{Name: "test", Capacity: capacity, TTL: time.Minute, Clock: clk.Now})
}

func TestTTL_SetGetAndExpiry(t *testing.T) {
	clk := newFakeClock()
	c := newCache(10, clk)

	c.Set("k", "v", 10*time.Second)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	clk.Advance(9 * time.Second)
	assert.True(t, c.Has("k"))

	clk.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry must miss once ttl has elapsed")
	assert.Equal(t, 0, c.Size(), "lazy expiry removes the entry")
}

func TestTTL_DefaultTTL(t *testing.T) {
	clk := newFakeClock()
	c := newCache(10, clk)
	c.Set("k", "v", 0)

	clk.Advance(59 * time.Second)
	assert.True(t, c.Has("k"))
	clk.Advance(time.Second)
	assert.False(t, c.Has("k"))
}

func TestTTL_EvictsOldestInserted(t *testing.T) {
	clk := newFakeClock()
	c := newCache(2, clk)

	c.Set("a", "1", 0)
	c.Set("b", "2", 0)
	_, _ = c.Get("a") // reads do not refresh insertion order
	c.Set("c", "3", 0)

	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.True(t, c.Has("c"))
	assert.Equal(t, 2, c.Size())
}

func TestTTL_OverwriteCountsAsFreshInsert(t *testing.T) {
	clk := newFakeClock()
	c := newCache(2, clk)

	c.Set("a", "1", 0)
	c.Set("b", "2", 0)
	c.Set("a", "1b", 0)
	c.Set("c", "3", 0)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1b", v)
	assert.False(t, c.Has("b"))
}

func TestTTL_ZeroCapacityAlwaysMisses(t *testing.T) {
	c := newCache(0, newFakeClock())
	c.Set("k", "v", time.Hour)
	assert.False(t, c.Has("k"))
	assert.Equal(t, 0, c.Size())
}

func TestTTL_DeleteClearSize(t *testing.T) {
	c := newCache(10, newFakeClock())
	c.Set("a", "1", 0)
	c.Set("b", "2", 0)
	assert.Equal(t, 2, c.Size())

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
	assert.False(t, c.Has("b"))
}

func TestTTL_Sweep(t *testing.T) {
	clk := newFakeClock()
	c := newCache(10, clk)
	c.Set("short", "1", time.Second)
	c.Set("long", "2", time.Hour)

	clk.Advance(2 * time.Second)
	assert.Equal(t, 2, c.Size(), "expired entries linger until swept")
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Size())
	assert.True(t, c.Has("long"))
}

func TestTTL_BackgroundSweep(t *testing.T) {
	clk := newFakeClock()
	c := cache.New[string](cache.Options{Name: "bg", Capacity: 10, TTL: time.Second, SweepInterval: 5 * time.Millisecond, Clock: clk.Now})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Close()

	c.Set("k", "v", 0)
	clk.Advance(2 * time.Second)

	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTTL_ConcurrentUse(t *testing.T) {
	c := newCache(64, newFakeClock())
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("k%d", i%100)
				c.Set(k, fmt.Sprint(g), 0)
				_, _ = c.Get(k)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 64)
}

func TestKey_Normalizes(t *testing.T) {
	assert.Equal(t, cache.Key("Lodging", "  Roma  Centro "), cache.Key("lodging", "roma centro"))
	assert.Equal(t, "lodging|roma", cache.Key("LODGING", " Roma"))
	assert.NotEqual(t, cache.Key("a", "bc"), cache.Key("ab", "c"))

	k := cache.HashedKey("retrieval:lodging:", "Roma")
	assert.Equal(t, k, cache.HashedKey("retrieval:lodging:", "roma "))
	assert.Contains(t, k, "retrieval:lodging:")
}
