package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emkm/domain/kinetics"
)

type countingLoader struct {
	calls int
	model *kinetics.Model
}

func (l *countingLoader) Load(ctx context.Context, path string) (*kinetics.Model, error) {
	l.calls++
	return l.model, nil
}

func touchFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))
	return path
}

func TestCache_SecondLoadSkipsDisk(t *testing.T) {
	path := touchFile(t)
	loader := &countingLoader{model: &kinetics.Model{PH: 7}}
	cache := NewCache(loader)

	ctx := context.Background()
	first, err := cache.Load(ctx, path)
	require.NoError(t, err)
	second, err := cache.Load(ctx, path)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, DiskReads: 1}, cache.Stats())
}

func TestCache_ModifiedFileInvalidates(t *testing.T) {
	path := touchFile(t)
	loader := &countingLoader{model: &kinetics.Model{}}
	cache := NewCache(loader)

	ctx := context.Background()
	_, err := cache.Load(ctx, path)
	require.NoError(t, err)

	// bump the mtime well past filesystem timestamp granularity
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = cache.Load(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 2, loader.calls)
	assert.Equal(t, CacheStats{Hits: 0, Misses: 2, DiskReads: 2}, cache.Stats())
}

func TestCache_Invalidate(t *testing.T) {
	path := touchFile(t)
	loader := &countingLoader{model: &kinetics.Model{}}
	cache := NewCache(loader)

	ctx := context.Background()
	_, err := cache.Load(ctx, path)
	require.NoError(t, err)

	cache.Invalidate(path)

	_, err = cache.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestCache_MissingFile(t *testing.T) {
	cache := NewCache(&countingLoader{})
	_, err := cache.Load(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.Zero(t, cache.Stats().DiskReads)
}
