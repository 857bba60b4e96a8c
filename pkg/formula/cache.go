package formula

import (
	"slices"
	"sync"
)

// Cache holds compiled formulas keyed by the rule key they came from.
// A key is recompiled when its source text changes.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Formula
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Formula)}
}

// Compile returns the cached formula for key, compiling source on a miss.
// Compile errors are not cached.
func (c *Cache) Compile(key, source string, vars ...string) (*Formula, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.entries[key]; ok && f.source == source && slices.Equal(f.vars, vars) {
		return f, nil
	}
	f, err := Compile(source, vars...)
	if err != nil {
		return nil, err
	}
	c.entries[key] = f
	return f, nil
}

// Len returns the number of cached formulas.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
