package ingest

import (
	"sync"

	"github.com/mailsift/mailsift/internal/types"
)

// Cache is the caller-visible in-memory mirror of the record store. It
// is refreshed from the store and merged into after each ingestion; it
// is never the source of truth.
type Cache struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]types.EmailRecord
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{byID: make(map[string]types.EmailRecord)}
}

// Refresh rebuilds the cache from a full store read.
func (c *Cache) Refresh(recs []types.EmailRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = c.order[:0]
	c.byID = make(map[string]types.EmailRecord, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		if _, ok := c.byID[rec.ID]; !ok {
			c.order = append(c.order, rec.ID)
		}
		c.byID[rec.ID] = rec
	}
}

// Merge adds recs, deduplicating by id: known ids are replaced in
// place, new ids appended.
func (c *Cache) Merge(recs []types.EmailRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		if _, ok := c.byID[rec.ID]; !ok {
			c.order = append(c.order, rec.ID)
		}
		c.byID[rec.ID] = rec
	}
}

// All returns the cached records in insertion order.
func (c *Cache) All() []types.EmailRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.EmailRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.byID = make(map[string]types.EmailRecord)
}
