package excel

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"emkm/domain/kinetics"
	"emkm/internal"
	"emkm/internal/errors"
	"emkm/ports"
)

// fs abstraction point so tests can count disk touches
type statFunc func(path string) (modTime time.Time, err error)

// Cache wraps a WorkbookPort and memoizes parsed models keyed by
// (absolute path, modification time). A changed timestamp invalidates the
// entry. The cache is owned by whoever constructs it; there is no hidden
// process-wide state.
type Cache struct {
	loader ports.WorkbookPort
	stat   statFunc

	mu      sync.Mutex
	entries map[string]cacheEntry
	stats   CacheStats
}

type cacheEntry struct {
	modTime time.Time
	model   *kinetics.Model
}

// CacheStats counts cache behavior for observability and tests
type CacheStats struct {
	Hits      int
	Misses    int
	DiskReads int
}

// NewCache wraps loader with (path, mtime) memoization
func NewCache(loader ports.WorkbookPort) *Cache {
	return &Cache{
		loader:  loader,
		stat:    osStat,
		entries: make(map[string]cacheEntry),
	}
}

// Load returns the cached model when the file is unchanged, otherwise
// delegates to the wrapped reader and stores the fresh parse.
func (c *Cache) Load(ctx context.Context, path string) (*kinetics.Model, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve workbook path")
	}

	modTime, err := c.stat(abs)
	if err != nil {
		return nil, errors.WithCode(errors.CodeParse, err)
	}

	c.mu.Lock()
	if entry, ok := c.entries[abs]; ok && entry.modTime.Equal(modTime) {
		c.stats.Hits++
		c.mu.Unlock()
		return entry.model, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	model, err := c.loader.Load(ctx, abs)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats.DiskReads++
	c.entries[abs] = cacheEntry{modTime: modTime, model: model}
	c.mu.Unlock()

	internal.Debugf("[WorkbookCache] cached %s (mtime %s)", abs, modTime.Format(time.RFC3339))
	return model, nil
}

// Invalidate drops the entry for path, if present
func (c *Cache) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, abs)
	c.mu.Unlock()
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
