// Package cache memoizes ranking results for a bounded time window.
//
// Entries are keyed by a Fingerprint and replaced wholesale: Put overwrites,
// expiry drops the whole entry, and there is no partial invalidation. When the
// cache is full the oldest entry is evicted. Concurrent misses for the same
// key are collapsed so the value is computed once.
package cache

import (
	"container/list"
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/rankstream/pkg/metrics"
)

// Default cache configuration.
const (
	DefaultTTL        = time.Minute
	DefaultMaxEntries = 128
)

type entry[V any] struct {
	key     uint64
	value   V
	created time.Time
	elem    *list.Element
}

// Cache is a TTL bound result cache safe for concurrent use.
type Cache[V any] struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.RWMutex
	entries map[uint64]*entry[V]
	order   *list.List // oldest at front

	group singleflight.Group
}

// New returns an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	cfg := config{ttl: DefaultTTL, maxEntries: DefaultMaxEntries, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache[V]{
		ttl:        cfg.ttl,
		maxEntries: cfg.maxEntries,
		now:        cfg.now,
		entries:    make(map[uint64]*entry[V]),
		order:      list.New(),
	}
}

// Get returns the live entry for key.
func (c *Cache[V]) Get(key uint64) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	live := ok && c.alive(e)
	c.mu.RUnlock()

	if live {
		metrics.RecordCacheHit()
		return e.value, true
	}
	if ok {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && !c.alive(cur) {
			c.remove(cur)
		}
		c.mu.Unlock()
	}
	metrics.RecordCacheMiss()
	var zero V
	return zero, false
}

// Put stores value under key, replacing any previous entry.
func (c *Cache[V]) Put(key uint64, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.remove(old)
	}
	if c.maxEntries > 0 {
		for len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
	}
	e := &entry[V]{key: key, value: value, created: c.now()}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e
	metrics.UpdateCacheEntries(len(c.entries))
}

// Do returns the cached value for key or computes it with fn and stores it.
// Concurrent calls for the same key share one fn call. cached reports whether
// the caller did not run fn itself. Errors are not cached.
func (c *Cache[V]) Do(ctx context.Context, key uint64, fn func() (V, error)) (value V, cached bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	ran := false
	ch := c.group.DoChan(strconv.FormatUint(key, 16), func() (any, error) {
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		ran = true
		v, err := fn()
		if err != nil {
			return v, err
		}
		c.Put(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		v, _ := res.Val.(V)
		return v, !ran, res.Err
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	}
}

// Clear drops all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*entry[V])
	c.order.Init()
	metrics.UpdateCacheEntries(0)
}

// Len returns the number of stored entries, expired ones included until they
// are next touched.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// peek is Get without metrics.
func (c *Cache[V]) peek(key uint64) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok && c.alive(e) {
		return e.value, true
	}
	var zero V
	return zero, false
}

func (c *Cache[V]) alive(e *entry[V]) bool {
	return c.now().Sub(e.created) <= c.ttl
}

// evictOldest removes the oldest entry. Must be called with c.mu held.
func (c *Cache[V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.remove(front.Value.(*entry[V]))
	metrics.RecordCacheEviction()
}

// remove must be called with c.mu held.
func (c *Cache[V]) remove(e *entry[V]) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
	metrics.UpdateCacheEntries(len(c.entries))
}
