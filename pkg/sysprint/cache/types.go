package cache

import (
	"bytes"
	"encoding/gob"
)

// CacheVersion is incremented when the cache format changes.
const CacheVersion = 1

// keyPrefix namespaces hash entries by format version.
var keyPrefix = []byte{'h', CacheVersion, 0}

// CachedEntry is the remembered digest of one regular file, valid while the
// file's size and timestamps are unchanged.
type CachedEntry struct {
	Size  uint64
	Mtime float64
	Ctime float64
	Hash  string
}

// Fresh reports whether the entry still describes a file with the given
// attributes.
func (e *CachedEntry) Fresh(size uint64, mtime, ctime float64) bool {
	return e.Size == size && e.Mtime == mtime && e.Ctime == ctime && e.Hash != ""
}

// Encode serializes the entry to bytes using gob.
func (e *CachedEntry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *CachedEntry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey creates a cache key for an absolute path.
func MakeKey(path string) []byte {
	key := make([]byte, 0, len(keyPrefix)+len(path))
	key = append(key, keyPrefix...)
	return append(key, path...)
}

// ParseKey extracts the path from a cache key.
func ParseKey(key []byte) string {
	return string(bytes.TrimPrefix(key, keyPrefix))
}

// MakeKeyPrefix returns the prefix for all keys under a directory.
func MakeKeyPrefix(dir string) []byte {
	return MakeKey(dir)
}
