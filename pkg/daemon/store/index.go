package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Index versions:
// 1 - id -> archive path and load time
const CurrentIndexVersion = 1

// ErrIndexVersion is returned for an index written by a newer daemon.
var ErrIndexVersion = errors.New("unsupported project index version")

// IndexEntry records where a project's archive lives.
type IndexEntry struct {
	ArchivePath string    `json:"archive_path"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// Index is the persisted form of the store.
type Index struct {
	Version   int                   `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Projects  map[string]IndexEntry `json:"projects"`
}

func newIndex() *Index {
	return &Index{
		Version:   CurrentIndexVersion,
		UpdatedAt: time.Now().UTC(),
		Projects:  make(map[string]IndexEntry),
	}
}

// readIndex loads the index at path. A missing file yields an empty index.
func readIndex(path string) (*Index, error) {
	if path == "" {
		return newIndex(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return newIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading project index: %w", err)
	}

	idx := newIndex()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("decoding project index %s: %w", path, err)
	}
	if idx.Version > CurrentIndexVersion {
		return nil, fmt.Errorf("%w: %d", ErrIndexVersion, idx.Version)
	}
	if idx.Projects == nil {
		idx.Projects = make(map[string]IndexEntry)
	}
	return idx, nil
}

// writeIndex replaces the file at path atomically.
func writeIndex(path string, idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".projects-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp index: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing project index: %w", err)
	}
	return nil
}
