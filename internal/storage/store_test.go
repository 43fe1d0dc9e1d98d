package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/promptpack/internal/config"
)

// runStoreSuite exercises the Store contract against one backend.
func runStoreSuite(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "projects", []byte(`[{"id":"1"}]`)))
		got, err := s.Get(ctx, "projects")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"1"}]`, string(got))
	})

	t.Run("last write wins", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "current", []byte(`"a"`)))
		require.NoError(t, s.Set(ctx, "current", []byte(`"b"`)))
		got, err := s.Get(ctx, "current")
		require.NoError(t, err)
		assert.Equal(t, `"b"`, string(got))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "temp", []byte("x")))
		require.NoError(t, s.Delete(ctx, "temp"))
		_, err := s.Get(ctx, "temp")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, s.Delete(ctx, "temp"))
	})

	t.Run("invalid keys", func(t *testing.T) {
		for _, key := range []string{"", "../evil", "a/b", ".hidden", "with space"} {
			assert.ErrorIs(t, s.Set(ctx, key, []byte("x")), ErrInvalidKey, key)
			_, err := s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrInvalidKey, key)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	runStoreSuite(t, s)

	t.Run("values are copied", func(t *testing.T) {
		ctx := context.Background()
		buf := []byte("abc")
		require.NoError(t, s.Set(ctx, "copy", buf))
		buf[0] = 'z'
		got, err := s.Get(ctx, "copy")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})

	t.Run("closed store", func(t *testing.T) {
		require.NoError(t, s.Close())
		_, err := s.Get(context.Background(), "projects")
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	runStoreSuite(t, s)

	t.Run("writes files with owner-only permissions", func(t *testing.T) {
		info, err := os.Stat(filepath.Join(dir, "projects.json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("leaves no temp files", func(t *testing.T) {
		matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("reopen sees data", func(t *testing.T) {
		again, err := NewFileStore(dir)
		require.NoError(t, err)
		got, err := again.Get(context.Background(), "current")
		require.NoError(t, err)
		assert.Equal(t, `"b"`, string(got))
	})
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "promptpack.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	runStoreSuite(t, s)

	_, err = NewSQLiteStore("")
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PROMPTPACK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PROMPTPACK_TEST_PG_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	for _, key := range []string{"projects", "current", "temp", "missing"} {
		require.NoError(t, s.Delete(ctx, key))
	}
	runStoreSuite(t, s)
}

func TestCachedStore(t *testing.T) {
	backend := NewMemoryStore()
	s, err := NewCachedStore(backend, 8)
	require.NoError(t, err)
	runStoreSuite(t, s)

	t.Run("serves reads from cache", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "hot", []byte("v1")))
		// Write behind the cache's back; the cached value wins until evicted.
		require.NoError(t, backend.Set(ctx, "hot", []byte("v2")))
		got, err := s.Get(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(got))
		assert.Positive(t, s.Len())
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewCachedStore(nil, 1)
		assert.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		want    interface{}
		wantErr bool
	}{
		{name: "memory", cfg: config.StorageConfig{Driver: DriverMemory}, want: &MemoryStore{}},
		{name: "file", cfg: config.StorageConfig{Driver: DriverFile, Path: t.TempDir()}, want: &FileStore{}},
		{name: "sqlite", cfg: config.StorageConfig{Driver: DriverSQLite, Path: t.TempDir()}, want: &SQLiteStore{}},
		{name: "cached", cfg: config.StorageConfig{Driver: DriverMemory, CacheSize: 4}, want: &CachedStore{}},
		{name: "postgres without dsn", cfg: config.StorageConfig{Driver: DriverPostgres}, wantErr: true},
		{name: "unknown", cfg: config.StorageConfig{Driver: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}
}
