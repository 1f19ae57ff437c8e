// Package artifacts caches trained models per user and training dataset.
package artifacts

import (
	"context"
	"sync"
	"time"

	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/features"
)

// DefaultCapacity bounds the number of cached artifacts.
const DefaultCapacity = 64

type slot struct {
	artifact *engine.Artifact
	used     time.Time
}

// Cache is an in-memory engine.Cache. Entries are replaced whole; the least
// recently used entry is evicted once the capacity is reached.
type Cache struct {
	mu       sync.Mutex
	slots    map[string]slot
	capacity int
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity sets the maximum number of entries.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{slots: make(map[string]slot), capacity: DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func key(userID, dataset string) string { return userID + "\x00" + dataset }

// Get returns the cached artifact when its schema matches schema. A
// mismatching entry is dropped.
func (c *Cache) Get(_ context.Context, userID, dataset string, schema features.Schema) (*engine.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(userID, dataset)
	s, ok := c.slots[k]
	if !ok {
		return nil, false
	}
	if !s.artifact.Schema.Equal(schema) {
		delete(c.slots, k)
		return nil, false
	}
	s.used = c.now()
	c.slots[k] = s
	return s.artifact, true
}

// Put stores a, replacing any earlier artifact for the same key.
func (c *Cache) Put(_ context.Context, userID, dataset string, a *engine.Artifact) {
	if a == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(userID, dataset)
	if _, ok := c.slots[k]; !ok && len(c.slots) >= c.capacity {
		c.evict()
	}
	c.slots[k] = slot{artifact: a, used: c.now()}
}

// Invalidate drops the entry for a key.
func (c *Cache) Invalidate(userID, dataset string) {
	c.mu.Lock()
	delete(c.slots, key(userID, dataset))
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

func (c *Cache) evict() {
	var oldest string
	var at time.Time
	for k, s := range c.slots {
		if oldest == "" || s.used.Before(at) {
			oldest, at = k, s.used
		}
	}
	delete(c.slots, oldest)
}

var _ engine.Cache = (*Cache)(nil)
