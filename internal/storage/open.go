package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fyrsmithlabs/promptpack/internal/config"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open builds the backend selected by cfg.Driver, wrapped with an LRU cache
// when cfg.CacheSize is positive.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case DriverMemory:
		s = NewMemoryStore()
	case DriverFile, "":
		s, err = NewFileStore(cfg.Path)
	case DriverSQLite:
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "promptpack.db")
		}
		s, err = NewSQLiteStore(path)
	case DriverPostgres:
		if !cfg.DSN.IsSet() {
			return nil, fmt.Errorf("storage driver %q requires a dsn", cfg.Driver)
		}
		s, err = NewPostgresStore(ctx, cfg.DSN.Value())
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCachedStore(s, cfg.CacheSize)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		return cached, nil
	}
	return s, nil
}
