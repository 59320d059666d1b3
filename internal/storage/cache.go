// cache.go - Transient in-memory cache of extraction results

package storage

import (
	"sync"
	"time"

	"github.com/bosocmputer/invoice_ocr_gemini/internal/processor"
)

// CachedResult holds one extraction result keyed by its request ID. Results
// live in memory only and expire after the configured TTL; nothing about an
// upload or its extracted data ever touches disk.
type CachedResult struct {
	RequestID string
	Items     []processor.LineItem
	StoredAt  time.Time
}

// ResultCache is the TTL-bounded store behind the export endpoint
type ResultCache struct {
	ttl     time.Duration
	entries map[string]*CachedResult
	mu      sync.RWMutex
}

// NewResultCache creates a cache whose entries expire after ttl
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]*CachedResult),
	}
}

// Put stores a result under its request ID, evicting expired entries as it goes
func (c *ResultCache) Put(requestID string, items []processor.LineItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, entry := range c.entries {
		if now.Sub(entry.StoredAt) >= c.ttl {
			delete(c.entries, id)
		}
	}

	c.entries[requestID] = &CachedResult{
		RequestID: requestID,
		Items:     items,
		StoredAt:  now,
	}
}

// Get returns the cached result, or false when it is absent or expired
func (c *ResultCache) Get(requestID string) ([]processor.LineItem, bool) {
	c.mu.RLock()
	entry, exists := c.entries[requestID]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(entry.StoredAt) >= c.ttl {
		c.mu.Lock()
		delete(c.entries, requestID)
		c.mu.Unlock()
		return nil, false
	}

	return entry.Items, true
}

// Clear removes all cached results
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CachedResult)
}
