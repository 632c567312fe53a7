package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fakeSweeper reports every registered path that no longer exists.
type fakeSweeper struct {
	mu    sync.Mutex
	paths map[string]string // id -> path
	calls int
}

func (f *fakeSweeper) SweepStale() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	var removed []string
	for id, p := range f.paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			delete(f.paths, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestWatch(t *testing.T) {
	w, err := New(&fakeSweeper{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if !w.Watching(dir) {
		t.Error("Watching() = false after Watch")
	}

	// Watching twice is a no-op.
	if err := w.Watch(dir); err != nil {
		t.Errorf("second Watch() error = %v", err)
	}

	w.Unwatch(dir)
	if w.Watching(dir) {
		t.Error("Watching() = true after Unwatch")
	}
}

func TestWatchFile(t *testing.T) {
	w, err := New(&fakeSweeper{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	if err := w.WatchFile(filepath.Join(dir, "p.tar.gz")); err != nil {
		t.Fatalf("WatchFile() error = %v", err)
	}
	if !w.Watching(dir) {
		t.Error("WatchFile() did not watch the parent directory")
	}
}

func TestWatchMissing(t *testing.T) {
	w, err := New(&fakeSweeper{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.Watch(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Watch() of missing directory succeeded")
	}
}

func TestRunSweepsOnRemove(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "p1.tar.gz")
	if err := os.WriteFile(archive, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sweeper := &fakeSweeper{paths: map[string]string{"p1": archive}}
	w, err := New(sweeper)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swept := make(chan []string, 1)
	go w.Run(ctx, func(removed []string) { swept <- removed })

	if err := os.Remove(archive); err != nil {
		t.Fatal(err)
	}

	select {
	case removed := <-swept:
		if len(removed) != 1 || removed[0] != "p1" {
			t.Errorf("removed = %v, want [p1]", removed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sweep")
	}
}

func TestHandleEventIgnoresWrites(t *testing.T) {
	sweeper := &fakeSweeper{}
	w, err := New(sweeper)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	w.handleEvent(fsnotify.Event{Name: "/x", Op: fsnotify.Write}, nil)
	w.handleEvent(fsnotify.Event{Name: "/x", Op: fsnotify.Create}, nil)
	if got := sweeper.callCount(); got != 0 {
		t.Errorf("SweepStale called %d times for writes, want 0", got)
	}

	w.handleEvent(fsnotify.Event{Name: "/x", Op: fsnotify.Rename}, nil)
	if got := sweeper.callCount(); got != 1 {
		t.Errorf("SweepStale called %d times for rename, want 1", got)
	}
}

func TestCloseIdempotent(t *testing.T) {
	w, err := New(&fakeSweeper{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Watch(t.TempDir()); err != nil {
		t.Errorf("Watch() after Close error = %v", err)
	}
}
