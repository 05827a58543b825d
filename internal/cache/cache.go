// Package cache implements an in-memory response cache for backend
// lookups. Node-detail payloads are fetched every time an inspector
// overlay opens; caching them keeps hover-driven UIs from hammering the
// backend with the same id.
package cache

import (
	"sync"
	"time"
)

// EvictionStrategy defines how entries are removed when the cache is full
type EvictionStrategy int

const (
	// LRU removes least recently used entries
	LRU EvictionStrategy = iota
	// LFU removes least frequently used entries
	LFU
	// FIFO removes oldest entries first
	FIFO
)

// Config holds cache configuration
type Config struct {
	MaxEntries int              // Maximum number of entries (default: 512)
	MaxAge     time.Duration    // Maximum age for entries (default: 5 minutes)
	Strategy   EvictionStrategy // Eviction strategy (default: LRU)
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries: 512,
		MaxAge:     5 * time.Minute,
		Strategy:   LRU,
	}
}

// Stats tracks cache performance metrics
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	EntryCount int   `json:"entry_count"`
}

type entry[V any] struct {
	value       V
	created     time.Time
	lastAccess  time.Time
	accessCount int
}

// Cache is a bounded in-memory key/value cache with TTL expiry.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	maxEntries int
	maxAge     time.Duration
	strategy   EvictionStrategy
	stats      Stats
	now        func() time.Time // overridable for tests
}

// New creates a cache. A zero-value config falls back to defaults
// field by field.
func New[V any](config Config) *Cache[V] {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	if config.MaxAge == 0 {
		config.MaxAge = DefaultConfig().MaxAge
	}
	return &Cache[V]{
		entries:    make(map[string]*entry[V]),
		maxEntries: config.MaxEntries,
		maxAge:     config.MaxAge,
		strategy:   config.Strategy,
		now:        time.Now,
	}
}

// Get retrieves a cached value. Expired entries count as misses and are
// dropped on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	if c.isExpired(e) {
		delete(c.entries, key)
		c.stats.Misses++
		var zero V
		return zero, false
	}

	e.lastAccess = c.now()
	e.accessCount++
	c.stats.Hits++
	return e.value, true
}

// Put stores a value, evicting per the configured strategy when full.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		c.evictOne()
	}

	now := c.now()
	c.entries[key] = &entry[V]{
		value:      value,
		created:    now,
		lastAccess: now,
	}
}

// Delete removes an entry.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries and resets stats.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[V])
	c.stats = Stats{}
	c.mu.Unlock()
}

// GetStats returns a snapshot of cache statistics.
func (c *Cache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.EntryCount = len(c.entries)
	return s
}

func (c *Cache[V]) isExpired(e *entry[V]) bool {
	// Negative maxAge means entries never expire.
	if c.maxAge < 0 {
		return false
	}
	return c.now().Sub(e.created) > c.maxAge
}

// evictOne removes a single entry per the configured strategy.
// Caller must hold the lock.
func (c *Cache[V]) evictOne() {
	var victim string
	var victimEntry *entry[V]

	for key, e := range c.entries {
		if victimEntry == nil {
			victim, victimEntry = key, e
			continue
		}
		switch c.strategy {
		case LRU:
			if e.lastAccess.Before(victimEntry.lastAccess) {
				victim, victimEntry = key, e
			}
		case LFU:
			if e.accessCount < victimEntry.accessCount {
				victim, victimEntry = key, e
			}
		case FIFO:
			if e.created.Before(victimEntry.created) {
				victim, victimEntry = key, e
			}
		}
	}

	if victimEntry != nil {
		delete(c.entries, victim)
		c.stats.Evictions++
	}
}
