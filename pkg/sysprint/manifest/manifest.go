package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// Stats are aggregate counts over a manifest.
type Stats struct {
	TotalFiles       int `json:"total_files" yaml:"total_files"`
	TotalDirectories int `json:"total_directories" yaml:"total_directories"`
	ArchivedFiles    int `json:"archived_files" yaml:"archived_files"`
	Errors           int `json:"errors" yaml:"errors"`
}

// New returns an empty manifest stamped with the current host and time.
func New(configFile string, mode types.Mode) *Manifest {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Manifest{
		Metadata: Metadata{
			Version:    Version,
			Created:    Now(),
			Hostname:   hostname,
			Platform:   runtime.GOOS + "/" + runtime.GOARCH,
			ConfigFile: configFile,
			Mode:       int(mode),
		},
		Files:       make(map[string]FileEntry),
		Directories: make(map[string]DirectoryEntry),
		Errors:      []string{},
	}
}

// Stats computes aggregate counts.
func (m *Manifest) Stats() Stats {
	s := Stats{
		TotalFiles:       len(m.Files),
		TotalDirectories: len(m.Directories),
		Errors:           len(m.Errors),
	}
	for _, f := range m.Files {
		if f.Archived {
			s.ArchivedFiles++
		}
	}
	return s
}

// Archived returns the paths of all files flagged for archiving, sorted.
func (m *Manifest) Archived() []string {
	var paths []string
	for p, f := range m.Files {
		if f.Archived {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Paths returns every file path in the manifest, sorted.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Builder accumulates scan results from concurrent workers. All insertions
// are serialized by one mutex.
type Builder struct {
	mu sync.Mutex
	m  *Manifest
}

// NewBuilder wraps m for concurrent population.
func NewBuilder(m *Manifest) *Builder {
	return &Builder{m: m}
}

// AddFile records a file entry, replacing any previous entry for the path.
func (b *Builder) AddFile(e FileEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m.Files[e.Path] = e
}

// AddDirectory records a directory entry.
func (b *Builder) AddDirectory(e DirectoryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m.Directories[e.Path] = e
}

// AddError appends a formatted error message.
func (b *Builder) AddError(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m.Errors = append(b.m.Errors, fmt.Sprintf(format, args...))
}

// FileCount returns the number of files recorded so far.
func (b *Builder) FileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m.Files)
}

// Manifest returns the manifest being built. Callers must not use the
// builder afterwards.
func (b *Builder) Manifest() *Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m
}

// Encode renders m as indented JSON. Map keys are sorted, so the output is
// stable for a given manifest.
func Encode(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}

// Decode parses and validates manifest JSON. Structural problems are
// reported as types.ErrArchive.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: malformed manifest: %v", types.ErrArchive, err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate checks required fields and normalizes optional ones.
func (m *Manifest) validate() error {
	if m.Metadata.Version == "" {
		return fmt.Errorf("%w: manifest missing metadata.version", types.ErrArchive)
	}
	if m.Files == nil {
		return fmt.Errorf("%w: manifest missing files", types.ErrArchive)
	}
	if m.Metadata.Mode != 0 && !types.Mode(m.Metadata.Mode).Valid() {
		return fmt.Errorf("%w: manifest has unknown mode %d", types.ErrArchive, m.Metadata.Mode)
	}

	for key, f := range m.Files {
		switch f.Path {
		case key:
		case "":
			f.Path = key
			m.Files[key] = f
		default:
			return fmt.Errorf("%w: file entry %q keyed as %q", types.ErrArchive, f.Path, key)
		}
	}

	if m.Directories == nil {
		m.Directories = make(map[string]DirectoryEntry)
	}
	for key, d := range m.Directories {
		if d.Path == "" {
			d.Path = key
			m.Directories[key] = d
		} else if d.Path != key {
			return fmt.Errorf("%w: directory entry %q keyed as %q", types.ErrArchive, d.Path, key)
		}
	}

	if m.Errors == nil {
		m.Errors = []string{}
	}
	return nil
}
