// Package cache provides TTL caches behind port.Cache: an in-process map
// and a Redis-backed variant for multi-instance deployments.
package cache

import (
	"sync"
	"time"
)

type item[T any] struct {
	value    T
	deadline time.Time
}

// Option configures an InMemory cache.
type Option func(*options)

type options struct {
	now   func() time.Time
	sweep time.Duration
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSweepInterval sets how often expired entries are purged. Zero or
// negative disables the sweeper; expired entries are then only hidden.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweep = d }
}

// InMemory is a process-local TTL cache safe for concurrent use.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]item[T]
	ttl   time.Duration
	now   func() time.Time

	stop chan struct{}
	once sync.Once
}

// New creates an in-memory cache whose entries live for ttl. By default
// expired entries are swept every ttl.
func New[T any](ttl time.Duration, opts ...Option) *InMemory[T] {
	o := options{now: time.Now, sweep: ttl}
	for _, opt := range opts {
		opt(&o)
	}

	c := &InMemory[T]{
		items: make(map[string]item[T]),
		ttl:   ttl,
		now:   o.now,
		stop:  make(chan struct{}),
	}
	if o.sweep > 0 {
		go c.sweepEvery(o.sweep)
	}
	return c
}

// Get returns the value under key unless it is missing or past its deadline.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(it.deadline) {
		var zero T
		return zero, false
	}
	return it.value, true
}

// Set stores value under key for the cache TTL.
func (c *InMemory[T]) Set(key string, value T) {
	deadline := c.now().Add(c.ttl)

	c.mu.Lock()
	c.items[key] = item[T]{value: value, deadline: deadline}
	c.mu.Unlock()
}

// Delete drops key.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len counts stored entries, expired ones included until swept.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep purges expired entries and reports how many were removed.
func (c *InMemory[T]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, it := range c.items {
		if !now.Before(it.deadline) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper. It is safe to call more than once.
func (c *InMemory[T]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *InMemory[T]) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
