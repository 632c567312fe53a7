package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jamesainslie/sysprint/pkg/sysprint/cache"
	"github.com/jamesainslie/sysprint/pkg/sysprint/filter"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// createTestTree creates a tree from a map of relative path to content.
func createTestTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func mustScan(t *testing.T, opts Options) *Result {
	t.Helper()
	res, err := Scan(context.Background(), opts)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return res
}

func TestScanBroadModeNeverArchives(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"a.txt":         "alpha",
		"etc/app.conf":  "x=1",
		"logs/run.log":  "noise",
		"deep/er/z.txt": "zed",
	})

	res := mustScan(t, Options{
		Roots:           []string{root},
		Mode:            types.ModeBroad,
		Filter:          filter.New(filter.WithInclude("*.conf"), filter.WithExclude("*.log")),
		ArchivePatterns: []string{"*"},
		Workers:         4,
	})
	m := res.Manifest

	if len(m.Files) != 3 {
		t.Fatalf("got %d files, want 3: %v", len(m.Files), m.Paths())
	}
	if _, ok := m.Files[filepath.Join(root, "logs/run.log")]; ok {
		t.Error("excluded file recorded")
	}
	for p, f := range m.Files {
		if f.Archived {
			t.Errorf("%s archived in broad mode", p)
		}
	}
	if len(res.Staged) != 0 {
		t.Errorf("Staged = %v, want none", res.Staged)
	}

	a := m.Files[filepath.Join(root, "a.txt")]
	if a.Hash != sha("alpha") {
		t.Errorf("hash = %q, want sha256(alpha)", a.Hash)
	}
	if !a.Metadata.IsFile || a.Metadata.Size != 5 {
		t.Errorf("metadata = %+v", a.Metadata)
	}

	for _, d := range []string{"etc", "logs", "deep", "deep/er"} {
		if _, ok := m.Directories[filepath.Join(root, d)]; !ok {
			t.Errorf("directory %s not recorded", d)
		}
	}
	if _, ok := m.Directories[root]; ok {
		t.Error("root itself should not be recorded")
	}
	if m.Metadata.Mode != int(types.ModeBroad) {
		t.Errorf("metadata mode = %d", m.Metadata.Mode)
	}
}

func TestScanTargetedIncludeGate(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"a.txt":     "a",
		"b.md":      "b",
		"sub/c.txt": "c",
	})

	res := mustScan(t, Options{
		Roots:           []string{root},
		Mode:            types.ModeTargeted,
		Filter:          filter.New(filter.WithInclude("*.txt"), filter.WithPrunePolicy(filter.PruneExclude)),
		ArchivePatterns: []string{"*"},
	})
	m := res.Manifest

	if _, ok := m.Files[filepath.Join(root, "b.md")]; ok {
		t.Error("file failing the include gate was recorded")
	}
	for _, rel := range []string{"a.txt", "sub/c.txt"} {
		f, ok := m.Files[filepath.Join(root, rel)]
		if !ok {
			t.Errorf("%s missing", rel)
			continue
		}
		if !f.Archived {
			t.Errorf("%s should be archived", rel)
		}
	}
	if len(res.Staged) != 2 {
		t.Errorf("Staged = %v", res.Staged)
	}
}

func TestScanFullPrunePolicy(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"a.txt":     "a",
		"sub/c.txt": "c",
	})

	res := mustScan(t, Options{
		Roots:  []string{root},
		Mode:   types.ModeTargeted,
		Filter: filter.New(filter.WithInclude("*.txt")),
	})

	// "sub" fails the include gate, so its subtree is never visited.
	if _, ok := res.Manifest.Files[filepath.Join(root, "sub/c.txt")]; ok {
		t.Error("file under pruned directory recorded")
	}
	if _, ok := res.Manifest.Directories[filepath.Join(root, "sub")]; ok {
		t.Error("pruned directory recorded")
	}
	if _, ok := res.Manifest.Files[filepath.Join(root, "a.txt")]; !ok {
		t.Error("top-level match missing")
	}
}

func TestScanPrunedSubtreeAbsent(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"keep/a.conf":       "a",
		"cache/b.conf":      "b",
		"cache/deep/c.conf": "c",
	})

	for _, mode := range []types.Mode{types.ModeBroad, types.ModeTargeted} {
		res := mustScan(t, Options{
			Roots: []string{root},
			Mode:  mode,
			Filter: filter.New(
				filter.WithInclude("*.conf"),
				filter.WithExclude("*/cache"),
				filter.WithPrunePolicy(filter.PruneExclude),
			),
		})

		prefix := filepath.Join(root, "cache") + string(filepath.Separator)
		for p := range res.Manifest.Files {
			if strings.HasPrefix(p, prefix) {
				t.Errorf("mode %v: %s recorded under pruned directory", mode, p)
			}
		}
		for p := range res.Manifest.Directories {
			if strings.HasPrefix(p, prefix) || p == filepath.Join(root, "cache") {
				t.Errorf("mode %v: directory %s recorded", mode, p)
			}
		}
		if _, ok := res.Manifest.Files[filepath.Join(root, "keep/a.conf")]; !ok {
			t.Errorf("mode %v: keep/a.conf missing", mode)
		}
	}
}

func TestScanArchiveLimits(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"small.txt":         "12345",
		"big.txt":           "1234567890",
		"secrets/token.txt": "t",
		"notes.md":          "n",
	})

	res := mustScan(t, Options{
		Roots:           []string{root},
		Mode:            types.ModeTargeted,
		Filter:          filter.New(filter.WithPrunePolicy(filter.PruneExclude)),
		ArchivePatterns: []string{"*.txt"},
		ArchiveExclude:  []string{"*/secrets/*"},
		MaxFileSize:     5,
	})
	m := res.Manifest

	tests := []struct {
		rel      string
		archived bool
	}{
		{"small.txt", true},
		{"big.txt", false},
		{"secrets/token.txt", false},
		{"notes.md", false},
	}
	for _, tt := range tests {
		f, ok := m.Files[filepath.Join(root, tt.rel)]
		if !ok {
			t.Errorf("%s missing from manifest", tt.rel)
			continue
		}
		if f.Archived != tt.archived {
			t.Errorf("%s archived = %v, want %v", tt.rel, f.Archived, tt.archived)
		}
		if f.Hash == "" {
			t.Errorf("%s has empty hash", tt.rel)
		}
	}
}

func TestScanMissingRootSkipped(t *testing.T) {
	root := createTestTree(t, map[string]string{"a": "a"})

	res := mustScan(t, Options{
		Roots: []string{filepath.Join(root, "nope"), root},
		Mode:  types.ModeBroad,
	})
	if len(res.Manifest.Files) != 1 {
		t.Errorf("got %d files, want 1", len(res.Manifest.Files))
	}
	if len(res.Manifest.Errors) != 0 {
		t.Errorf("missing root should not be an error: %v", res.Manifest.Errors)
	}
}

func TestScanMaxFiles(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"1": "1", "2": "2", "3": "3", "4": "4", "5": "5",
	})

	res := mustScan(t, Options{
		Roots:    []string{root},
		Mode:     types.ModeBroad,
		MaxFiles: 2,
	})
	if len(res.Manifest.Files) != 2 {
		t.Errorf("got %d files, want 2", len(res.Manifest.Files))
	}
	if !res.Truncated {
		t.Error("Truncated should be set")
	}
	if len(res.Manifest.Errors) != 1 {
		t.Errorf("want exactly one truncation error, got %v", res.Manifest.Errors)
	}
}

func TestScanUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	root := createTestTree(t, map[string]string{"locked": "secret", "open": "ok"})
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	res := mustScan(t, Options{Roots: []string{root}, Mode: types.ModeBroad})

	f, ok := res.Manifest.Files[locked]
	if !ok {
		t.Fatal("unreadable file should still be recorded")
	}
	if f.Hash != "" {
		t.Errorf("hash = %q, want empty", f.Hash)
	}
	if len(res.Manifest.Errors) != 1 || !strings.HasPrefix(res.Manifest.Errors[0], "Hash calculation failed for "+locked) {
		t.Errorf("errors = %v", res.Manifest.Errors)
	}
}

func TestScanSymlinkNotHashed(t *testing.T) {
	root := createTestTree(t, map[string]string{"target": "data"})
	link := filepath.Join(root, "link")
	if err := os.Symlink(filepath.Join(root, "target"), link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res := mustScan(t, Options{
		Roots:           []string{root},
		Mode:            types.ModeTargeted,
		ArchivePatterns: []string{"*"},
	})
	f := res.Manifest.Files[link]
	if !f.Metadata.IsSymlink || f.Hash != "" || f.Archived {
		t.Errorf("symlink entry = %+v", f)
	}
}

func TestScanUsesCache(t *testing.T) {
	root := createTestTree(t, map[string]string{"a": "aaa", "b": "bbb"})

	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	opts := Options{Roots: []string{root}, Mode: types.ModeBroad, Cache: c}

	first := mustScan(t, opts)
	if first.CacheHits != 0 {
		t.Errorf("first scan CacheHits = %d", first.CacheHits)
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}

	second := mustScan(t, opts)
	if second.CacheHits != 2 {
		t.Errorf("second scan CacheHits = %d, want 2", second.CacheHits)
	}
	if second.BytesHashed != 0 {
		t.Errorf("second scan hashed %d bytes", second.BytesHashed)
	}
	if second.Manifest.Files[filepath.Join(root, "a")].Hash != sha("aaa") {
		t.Error("cached hash mismatch")
	}
}

func TestScanProgressAndCancel(t *testing.T) {
	root := createTestTree(t, map[string]string{"a": "a", "d/b": "b"})

	var calls atomic.Int64
	res := mustScan(t, Options{
		Roots:      []string{root},
		Mode:       types.ModeBroad,
		OnProgress: func(Progress) { calls.Add(1) },
	})
	if calls.Load() == 0 {
		t.Error("OnProgress never called")
	}
	if len(res.Manifest.Files) != 2 {
		t.Errorf("got %d files", len(res.Manifest.Files))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, Options{Roots: []string{root}, Mode: types.ModeBroad})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan(cancelled) error = %v", err)
	}
}

func TestNewRejectsBadMode(t *testing.T) {
	if _, err := New(Options{Mode: 9}); !errors.Is(err, types.ErrInvalidMode) {
		t.Errorf("New() error = %v", err)
	}
}
