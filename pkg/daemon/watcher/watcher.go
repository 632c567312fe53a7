// Package watcher notices project archives disappearing from disk and asks
// the store to drop them.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
)

// Sweeper drops registered projects whose archive is gone.
type Sweeper interface {
	SweepStale() []string
}

// Watcher watches the directories holding project archives. Removing or
// renaming an entry in any of them triggers a sweep.
type Watcher struct {
	sweeper Sweeper
	watcher *fsnotify.Watcher
	paths   map[string]bool
	mu      sync.RWMutex
	closed  bool
}

// New creates a new Watcher.
func New(s Sweeper) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		sweeper: s,
		watcher: fsw,
		paths:   make(map[string]bool),
	}, nil
}

// Watch adds a directory. Subdirectories are not watched.
func (w *Watcher) Watch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[abs] {
		return nil
	}
	if err := w.watcher.Add(abs); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", abs, "error", err)
		return err
	}
	w.paths[abs] = true
	return nil
}

// WatchFile watches the directory containing path.
func (w *Watcher) WatchFile(path string) error {
	return w.Watch(filepath.Dir(path))
}

// Unwatch stops watching dir.
func (w *Watcher) Unwatch(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.paths[abs] {
		return
	}
	_ = w.watcher.Remove(abs)
	delete(w.paths, abs)
}

// Watching reports whether dir is watched.
func (w *Watcher) Watching(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paths[abs]
}

// Run starts the event loop. It blocks until the context is cancelled or
// the watcher is closed. onSweep, if set, receives the ids dropped by each
// sweep that removed something.
func (w *Watcher) Run(ctx context.Context, onSweep func(removed []string)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, onSweep)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get("watcher").Error("watcher error", "error", err)
		}
	}
}

// handleEvent sweeps on removals and renames. Renames are treated as
// removals of the old name.
func (w *Watcher) handleEvent(event fsnotify.Event, onSweep func([]string)) {
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	if event.Has(fsnotify.Remove) {
		w.mu.Lock()
		if w.paths[event.Name] {
			delete(w.paths, event.Name)
		}
		w.mu.Unlock()
	}

	removed := w.sweeper.SweepStale()
	if len(removed) == 0 {
		return
	}
	logging.Get("watcher").Info("archive removed, projects dropped", "path", event.Name, "projects", len(removed))
	if onSweep != nil {
		onSweep(removed)
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}
