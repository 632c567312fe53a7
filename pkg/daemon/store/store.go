// Package store is the daemon's registry of loaded projects. Projects live
// in memory; a small JSON index of id -> archive path is persisted so the
// registry can be rebuilt after a restart.
package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// Project is a loaded archive. Its manifest is never modified after load.
type Project struct {
	ID          string
	Archive     *archive.Reader
	ArchivePath string
	LoadedAt    time.Time
}

// Manifest returns the project's decoded manifest.
func (p *Project) Manifest() *manifest.Manifest {
	return p.Archive.Manifest()
}

// LoadSummary is returned by Load.
type LoadSummary struct {
	ID             string            `json:"id"`
	Metadata       manifest.Metadata `json:"metadata"`
	FileCount      int               `json:"file_count"`
	DirectoryCount int               `json:"directory_count"`
	ErrorCount     int               `json:"error_count"`
}

// Summary describes a loaded project.
type Summary struct {
	ID         string            `json:"id"`
	Metadata   manifest.Metadata `json:"metadata"`
	Statistics manifest.Stats    `json:"statistics"`
	LoadedAt   time.Time         `json:"loaded_at"`
}

// Store holds loaded projects by id. A single mutex guards both the map
// and the on-disk index so the two never disagree.
type Store struct {
	mu        sync.Mutex
	projects  map[string]*Project
	indexPath string
	logger    *logging.Logger
}

// New creates an empty store persisting its index at indexPath. An empty
// indexPath disables persistence.
func New(indexPath string) *Store {
	return &Store{
		projects:  make(map[string]*Project),
		indexPath: indexPath,
		logger:    logging.Get("store"),
	}
}

// ValidateID rejects ids that cannot name a project.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: project id required", types.ErrValidation)
	case strings.ContainsAny(id, `/\`), id == ".", id == "..":
		return fmt.Errorf("%w: invalid project id %q", types.ErrValidation, id)
	}
	return nil
}

// Load opens the archive at archivePath and registers it under id,
// replacing any project already loaded with that id. Nothing is registered
// when the archive cannot be opened.
func (s *Store) Load(id, archivePath string) (*LoadSummary, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	s.logger.Info("loading project", "id", id, "path", archivePath)
	r, err := archive.Open(archivePath)
	if err != nil {
		s.logger.Error("error loading project", "id", id, "error", err)
		return nil, err
	}

	p := &Project{
		ID:          id,
		Archive:     r,
		ArchivePath: archivePath,
		LoadedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[id] = p
	if err := s.persistLocked(); err != nil {
		s.logger.Warn("project index update failed", "error", err)
	}

	m := r.Manifest()
	return &LoadSummary{
		ID:             id,
		Metadata:       m.Metadata,
		FileCount:      len(m.Files),
		DirectoryCount: len(m.Directories),
		ErrorCount:     len(m.Errors),
	}, nil
}

// Get returns the project registered under id.
func (s *Store) Get(id string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s not found", types.ErrNotFound, id)
	}
	return p, nil
}

// Pair returns two projects, failing if either is unknown.
func (s *Store) Pair(id1, id2 string) (*Project, *Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p1, ok1 := s.projects[id1]
	p2, ok2 := s.projects[id2]
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("%w: one or both projects not found", types.ErrNotFound)
	}
	return p1, p2, nil
}

// Summary describes the project registered under id.
func (s *Store) Summary(id string) (*Summary, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sum := summarize(p)
	return &sum, nil
}

func summarize(p *Project) Summary {
	m := p.Manifest()
	return Summary{
		ID:         p.ID,
		Metadata:   m.Metadata,
		Statistics: m.Stats(),
		LoadedAt:   p.LoadedAt,
	}
}

// List sweeps stale projects, then summarizes the rest sorted by id.
func (s *Store) List() []Summary {
	s.SweepStale()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, summarize(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of loaded projects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.projects)
}

// Delete unregisters id. The archive file is left in place.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getLocked(id); err != nil {
		return err
	}
	delete(s.projects, id)
	s.logger.Info("cleaned up project", "id", id)

	if err := s.persistLocked(); err != nil {
		s.logger.Warn("project index update failed", "error", err)
	}
	return nil
}

// SweepStale unregisters projects whose archive no longer exists and
// returns their ids, sorted.
func (s *Store) SweepStale() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, p := range s.projects {
		if _, err := os.Stat(p.ArchivePath); errors.Is(err, os.ErrNotExist) {
			delete(s.projects, id)
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	sort.Strings(removed)
	s.logger.Info("removed projects with missing archives", "ids", strings.Join(removed, ","))
	if err := s.persistLocked(); err != nil {
		s.logger.Warn("project index update failed", "error", err)
	}
	return removed
}

// CorruptSuffix is appended to an index that Restore could not read.
const CorruptSuffix = ".corrupt"

// Restore reloads every project named in the index. Individual failures
// are logged and skipped; the returned count is the number restored.
//
// An index that cannot be read is renamed with CorruptSuffix before the
// error is returned, so later writes start a fresh index beside it. If the
// rename fails, persistence is disabled for the life of the store.
func (s *Store) Restore() (int, error) {
	idx, err := readIndex(s.indexPath)
	if err != nil {
		s.setAside()
		return 0, err
	}

	ids := make([]string, 0, len(idx.Projects))
	for id := range idx.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	restored := 0
	for _, id := range ids {
		entry := idx.Projects[id]
		r, err := archive.Open(entry.ArchivePath)
		if err != nil {
			s.logger.Warn("skipping project from index", "id", id, "path", entry.ArchivePath, "error", err)
			continue
		}

		s.mu.Lock()
		s.projects[id] = &Project{
			ID:          id,
			Archive:     r,
			ArchivePath: entry.ArchivePath,
			LoadedAt:    entry.LoadedAt,
		}
		s.mu.Unlock()
		restored++
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if restored != len(idx.Projects) {
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("project index update failed", "error", err)
		}
	}

	s.logger.Info("restored projects", "restored", restored, "indexed", len(idx.Projects))
	return restored, nil
}

func (s *Store) setAside() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.indexPath + CorruptSuffix
	if err := os.Rename(s.indexPath, dst); err != nil {
		s.logger.Error("cannot move unreadable project index aside, index will not be written",
			"path", s.indexPath, "error", err)
		s.indexPath = ""
		return
	}
	s.logger.Warn("moved unreadable project index aside", "path", dst)
}

// persistLocked writes the index. The caller holds s.mu.
func (s *Store) persistLocked() error {
	if s.indexPath == "" {
		return nil
	}

	idx := newIndex()
	for id, p := range s.projects {
		idx.Projects[id] = IndexEntry{ArchivePath: p.ArchivePath, LoadedAt: p.LoadedAt}
	}
	return writeIndex(s.indexPath, idx)
}
