// Package dedup drops events that were already delivered recently. It is a
// best-effort backstop for the re-reads at-least-once polling produces after
// a failed commit; correctness never depends on it.
package dedup

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the number of fingerprints remembered by default
const DefaultCapacity = 1000

// Cache remembers up to capacity fingerprints and forgets the oldest first.
//
// The LRU is used in insertion-only mode: Contains never touches recency and
// existing keys are never re-added, so eviction follows insertion order.
type Cache struct {
	entries *lru.Cache[uint32, struct{}]
}

// NewCache creates a cache holding at most capacity fingerprints
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("dedup capacity must be positive, got %d", capacity)
	}

	entries, err := lru.New[uint32, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Seen reports whether fp is remembered
func (c *Cache) Seen(fp uint32) bool {
	return c.entries.Contains(fp)
}

// Remember stores fp, evicting the oldest fingerprint when full. Remembering
// a known fingerprint does not move it.
func (c *Cache) Remember(fp uint32) {
	if c.entries.Contains(fp) {
		return
	}
	c.entries.Add(fp, struct{}{})
}

// Forget removes fp
func (c *Cache) Forget(fp uint32) {
	c.entries.Remove(fp)
}

// Len returns the number of remembered fingerprints
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Clear forgets everything
func (c *Cache) Clear() {
	c.entries.Purge()
}
