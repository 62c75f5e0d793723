package store

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultExistsCacheSize bounds the exists-cache when no size is configured.
const DefaultExistsCacheSize = 4096

// ExistsCache remembers keys known to be published. Negative answers are
// never cached because another process may publish at any time.
//
// A nil *ExistsCache is valid and caches nothing.
type ExistsCache struct {
	keys *lru.Cache[string, struct{}]
}

// NewExistsCache returns a cache holding up to size keys. A size <= 0
// selects DefaultExistsCacheSize.
func NewExistsCache(size int) (*ExistsCache, error) {
	if size <= 0 {
		size = DefaultExistsCacheSize
	}
	c, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &ExistsCache{keys: c}, nil
}

// Contains reports whether key is known to exist.
func (c *ExistsCache) Contains(key string) bool {
	if c == nil {
		return false
	}
	return c.keys.Contains(key)
}

// Add records key as published.
func (c *ExistsCache) Add(key string) {
	if c == nil {
		return
	}
	c.keys.Add(key, struct{}{})
}

// Len returns the number of cached keys.
func (c *ExistsCache) Len() int {
	if c == nil {
		return 0
	}
	return c.keys.Len()
}
