// Package storage provides the durable key-value port used to persist the
// project registry.
//
// Backends:
//   - memory: process-local map, used by tests and ephemeral sessions
//   - file: one JSON file per key in a directory, written atomically
//   - sqlite: a single kv table in a SQLite database
//   - postgres: a single kv table in PostgreSQL
//
// Any backend can be wrapped with NewCachedStore for read-through LRU caching.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Errors for storage operations.
var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key: must be alphanumeric with hyphens/underscores/dots")
	ErrClosed     = errors.New("store is closed")
)

// keyPattern validates storage keys. Keys double as file names for the
// file backend, so they must not carry path separators.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Store is a durable key-value store of opaque values.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// ValidateKey checks that key is safe for every backend.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > 200 {
		return fmt.Errorf("%w: key too long (max 200)", ErrInvalidKey)
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
