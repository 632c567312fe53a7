package cache

import (
	"os"
	"testing"

	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
)

func TestStoreGetPut(t *testing.T) {
	dir, err := os.MkdirTemp("", "cache-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer store.Close()

	entry := &CachedEntry{Size: 10, Mtime: 1.5, Ctime: 2.5, Hash: "abc"}
	if err := store.Put("/etc/hosts", entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get("/etc/hosts")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *got != *entry {
		t.Errorf("Get = %+v, want %+v", got, entry)
	}

	if _, err := store.Get("/etc/missing"); err != ErrNotFound {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestStorePrefixOperations(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	entries := map[string]*CachedEntry{
		"/etc/a":     {Hash: "1"},
		"/etc/b":     {Hash: "2"},
		"/var/log/c": {Hash: "3"},
	}
	if err := store.PutBatch(entries); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	if n, _ := store.Count(""); n != 3 {
		t.Errorf("Count(all) = %d, want 3", n)
	}
	if n, _ := store.Count("/etc/"); n != 2 {
		t.Errorf("Count(/etc/) = %d, want 2", n)
	}

	if err := store.DeletePrefix("/etc/"); err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if n, _ := store.Count(""); n != 1 {
		t.Errorf("Count after delete = %d, want 1", n)
	}
}

func TestCacheLookupFreshness(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	md := manifest.FileMetadata{Size: 42, Mtime: 100.25, Ctime: 100.25}

	if _, ok := c.Lookup("/x/a", md); ok {
		t.Fatal("empty cache should miss")
	}

	c.Remember("/x/a", md, "deadbeef")
	c.Remember("/x/empty", md, "")
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	hash, ok := c.Lookup("/x/a", md)
	if !ok || hash != "deadbeef" {
		t.Errorf("Lookup = %q, %v; want deadbeef, true", hash, ok)
	}

	changed := md
	changed.Mtime = 101
	if _, ok := c.Lookup("/x/a", changed); ok {
		t.Error("changed mtime should miss")
	}

	if _, ok := c.Lookup("/x/empty", md); ok {
		t.Error("empty hashes should not be remembered")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 3 {
		t.Errorf("Stats = %d hits, %d misses; want 1, 3", hits, misses)
	}

	if err := c.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if n, _ := c.Count(""); n != 0 {
		t.Errorf("Count after ClearAll = %d", n)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	key := MakeKey("/etc/passwd")
	if got := ParseKey(key); got != "/etc/passwd" {
		t.Errorf("ParseKey = %q", got)
	}
}
