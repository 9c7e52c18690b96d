package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"trip_planner/internal/adapters/observability"
)

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

type Options struct {
	Name          string
	Capacity      int
	TTL           time.Duration
	SweepInterval time.Duration
	Clock         Clock
}

// TTL is an in-process cache with per-entry expiry and a capacity bound.
// At capacity the oldest inserted entry is evicted. Expired entries are
// dropped lazily on lookup and by a periodic sweep once Start is called.
// A zero capacity stores nothing, so every lookup misses.
type TTL[V any] struct {
	name  string
	cap   int
	ttl   time.Duration
	sweep time.Duration
	now   Clock

	mu    sync.Mutex
	order *list.List // front = oldest insert
	m     map[string]*list.Element

	stopOnce sync.Once
	stop     chan struct{}
}

type entry[V any] struct {
	key string
	val V
	exp time.Time
}

func New[V any](o Options) *TTL[V] {
	if o.Capacity < 0 {
		o.Capacity = 0
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	return &TTL[V]{
		name:  o.Name,
		cap:   o.Capacity,
		ttl:   o.TTL,
		sweep: o.SweepInterval,
		now:   o.Clock,
		order: list.New(),
		m:     make(map[string]*list.Element),
		stop:  make(chan struct{}),
	}
}

func (c *TTL[V]) Name() string { return c.name }

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	el, ok := c.m[key]
	if !ok {
		observability.ObserveCache(c.name, "miss")
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if !c.now().Before(ent.exp) {
		c.removeLocked(el)
		observability.ObserveCache(c.name, "expire")
		observability.ObserveCache(c.name, "miss")
		return zero, false
	}
	observability.ObserveCache(c.name, "hit")
	return ent.val, true
}

// Set stores v for ttl; ttl <= 0 uses the cache default. Overwriting a key
// counts as a fresh insert for eviction order.
func (c *TTL[V]) Set(key string, v V, ttl time.Duration) {
	if c.cap == 0 {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.now().Add(ttl)
	if el, ok := c.m[key]; ok {
		ent := el.Value.(*entry[V])
		ent.val, ent.exp = v, exp
		c.order.MoveToBack(el)
		observability.ObserveCache(c.name, "set")
		return
	}
	for c.order.Len() >= c.cap {
		c.removeLocked(c.order.Front())
		observability.ObserveCache(c.name, "evict")
	}
	c.m[key] = c.order.PushBack(&entry[V]{key: key, val: v, exp: exp})
	observability.ObserveCache(c.name, "set")
}

func (c *TTL[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *TTL[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.m[key]
	if !ok {
		return false
	}
	c.removeLocked(el)
	return true
}

func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.m = make(map[string]*list.Element)
}

// Size counts stored entries, including expired ones not yet swept.
func (c *TTL[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Sweep drops every expired entry and returns how many were removed.
func (c *TTL[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*entry[V]).exp) {
			c.removeLocked(el)
			n++
		}
		el = next
	}
	observability.ObserveCacheN(c.name, "expire", n)
	return n
}

// Start runs the periodic sweep until ctx is done or Close is called.
func (c *TTL[V]) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(c.sweep)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}

func (c *TTL[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *TTL[V]) removeLocked(el *list.Element) {
	ent := el.Value.(*entry[V])
	delete(c.m, ent.key)
	c.order.Remove(el)
}
