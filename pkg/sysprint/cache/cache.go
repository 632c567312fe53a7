// Package cache remembers file digests between scans so unchanged files are
// not re-read.
package cache

import (
	"errors"
	"sync"

	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
)

// Cache provides high-level hash caching for the scanner. Lookups read
// through to the store; new digests are buffered and written by Flush.
type Cache struct {
	store *Store

	mu      sync.Mutex
	pending map[string]*CachedEntry
	hits    int
	misses  int
}

// Open opens or creates a cache at the given path.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}

	return &Cache{
		store:   store,
		pending: make(map[string]*CachedEntry),
	}, nil
}

// Close flushes pending entries and closes the cache.
func (c *Cache) Close() error {
	flushErr := c.Flush()
	return errors.Join(flushErr, c.store.Close())
}

// Lookup returns the remembered digest for path if md still matches it.
func (c *Cache) Lookup(path string, md manifest.FileMetadata) (string, bool) {
	entry, err := c.store.Get(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil || !entry.Fresh(md.Size, md.Mtime, md.Ctime) {
		c.misses++
		return "", false
	}
	c.hits++
	return entry.Hash, true
}

// Remember buffers a digest for path.
func (c *Cache) Remember(path string, md manifest.FileMetadata, hash string) {
	if hash == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[path] = &CachedEntry{
		Size:  md.Size,
		Mtime: md.Mtime,
		Ctime: md.Ctime,
		Hash:  hash,
	}
}

// Flush writes buffered digests to the store.
func (c *Cache) Flush() error {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*CachedEntry)
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	return c.store.PutBatch(pending)
}

// Stats returns the hit and miss counts since Open.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Count returns the number of stored digests under dir ("" for all).
func (c *Cache) Count(dir string) (int, error) {
	return c.store.Count(dir)
}

// Clear removes all cached entries under dir.
func (c *Cache) Clear(dir string) error {
	return c.store.DeletePrefix(dir)
}

// ClearAll removes all cached entries.
func (c *Cache) ClearAll() error {
	return c.store.DeletePrefix("")
}
