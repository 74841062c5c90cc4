// Package storage holds the link result cache shared by scans.
package storage

import "sync"

// LinkCache remembers which normalized link URLs have been seen
type LinkCache interface {
	// Seen records key and reports whether it was already present
	Seen(key string) (bool, error)
	// Clear forgets every key
	Clear() error
	// Len returns the number of keys held
	Len() int
	// Close releases resources; the cache is unusable afterwards
	Close() error
}

// MemoryCache is a LinkCache backed by a map
type MemoryCache struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryCache creates an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{keys: make(map[string]struct{})}
}

func (c *MemoryCache) Seen(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.keys[key]; ok {
		return true, nil
	}
	c.keys[key] = struct{}{}
	return false, nil
}

func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	c.keys = make(map[string]struct{})
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func (c *MemoryCache) Close() error { return nil }
