package handlers

import (
	"sync"
	"time"
)

// cacheEntry represents one cached response payload
type cacheEntry struct {
	payload   any
	expiresAt time.Time
}

// ResponseCache provides TTL-bounded in-memory caching for the bundle
// artifacts served by the read endpoints. Bundles are immutable once
// published, so the TTL bounds memory, not staleness.
//
// A nil *ResponseCache is valid and caches nothing.
type ResponseCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

// NewResponseCache creates a cache with the given TTL. A non-positive
// TTL disables caching and returns nil.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		return nil
	}
	c := &ResponseCache{
		store: make(map[string]cacheEntry),
		ttl:   ttl,
	}

	// Start cleanup goroutine
	go c.cleanup()

	return c
}

// Get retrieves a cached payload if available and not expired
func (c *ResponseCache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.store[key]
	if !exists {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.payload, true
}

// Set stores a payload in the cache
func (c *ResponseCache) Set(key string, payload any) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[key] = cacheEntry{
		payload:   payload,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries
func (c *ResponseCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, entry := range c.store {
			if now.After(entry.expiresAt) {
				delete(c.store, key)
			}
		}
		c.mu.Unlock()
	}
}
