package storage

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore is a read-through LRU cache in front of another Store.
// Writes go to the backend first and update the cache only on success.
type CachedStore struct {
	backend Store
	cache   *lru.Cache[string, []byte]
}

// NewCachedStore wraps backend with an LRU of size entries.
func NewCachedStore(backend Store, size int) (*CachedStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &CachedStore{backend: backend, cache: cache}, nil
}

// Get serves from the cache, falling back to the backend.
func (c *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		return append([]byte(nil), v...), nil
	}
	v, err := c.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.cache.Remove(key)
		}
		return nil, err
	}
	c.cache.Add(key, append([]byte(nil), v...))
	return v, nil
}

// Set writes through to the backend.
func (c *CachedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := c.backend.Set(ctx, key, value); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, append([]byte(nil), value...))
	return nil
}

// Delete removes key from the backend and the cache.
func (c *CachedStore) Delete(ctx context.Context, key string) error {
	c.cache.Remove(key)
	return c.backend.Delete(ctx, key)
}

// Close purges the cache and closes the backend.
func (c *CachedStore) Close() error {
	c.cache.Purge()
	return c.backend.Close()
}

// Len returns the number of cached entries.
func (c *CachedStore) Len() int {
	return c.cache.Len()
}

var _ Store = (*CachedStore)(nil)
