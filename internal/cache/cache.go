// Package cache provides the process-local response cache used by the provider client.
//
// Entries carry their own expiry. An expired entry is treated as absent and evicted
// lazily on lookup; the LRU bound keeps memory flat when many distinct keys are seen.
// A Cache is safe for concurrent use and is meant to be constructed once at process
// start and injected into the components that need it.
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is used when New is given a non-positive size.
const DefaultSize = 10_000

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a key/value store with per-entry expiry.
type Cache struct {
	entries *lru.Cache[string, entry]
	clock   Clock
}

// New creates a Cache holding at most size entries. A nil clock uses wall time.
func New(size int, clock Clock) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if clock == nil {
		clock = systemClock{}
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{entries: entries, clock: clock}, nil
}

// Get returns the live value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key until ttl elapses. Non-positive ttls are ignored.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.entries.Add(key, entry{value: value, expiresAt: c.clock.Now().Add(ttl)})
}

// Len reports the number of stored entries, including ones not yet lazily evicted.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Lookup is a typed Get. A stored value of a different type reads as a miss.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
