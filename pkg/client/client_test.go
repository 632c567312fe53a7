package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/sysprint/pkg/daemon"
	"github.com/jamesainslie/sysprint/pkg/daemon/store"
	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// testDaemon serves the real API over an in-memory store.
func testDaemon(t *testing.T) (*Client, string) {
	t.Helper()
	dir := t.TempDir()

	svc := daemon.NewService(store.New(filepath.Join(dir, "projects.json")), filepath.Join(dir, "uploads"), 0)
	srv := httptest.NewServer(daemon.NewRouter(svc))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	return c, dir
}

// writeArchive archives one file holding content at src/conf.ini.
func writeArchive(t *testing.T, dir, name, content string) (string, string) {
	t.Helper()

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	p := filepath.Join(src, "conf.ini")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	m := manifest.New("", types.ModeTargeted)
	m.Files[p] = manifest.FileEntry{
		Path:     p,
		Hash:     name,
		Archived: true,
		Metadata: manifest.FileMetadata{Size: uint64(len(content)), IsFile: true},
	}

	path := filepath.Join(dir, name+".tar.gz")
	_, err := archive.Create(path, m, []string{p}, archive.Gzip)
	require.NoError(t, err)
	return path, p
}

func TestNew(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:5000", "http://127.0.0.1:5000"},
		{"http://localhost:8080", "http://localhost:8080"},
		{"https://example.com/base", "https://example.com/base"},
	}

	for _, tt := range tests {
		c, err := New(tt.addr)
		if err != nil {
			t.Fatalf("New(%q) error = %v", tt.addr, err)
		}
		if got := c.URL(); got != tt.want {
			t.Errorf("New(%q).URL() = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestEndpointEscapes(t *testing.T) {
	c, err := New("127.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000/api/projects/a%20b", c.endpoint("projects", "a b"))
}

func TestHealth(t *testing.T) {
	c, _ := testDaemon(t)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
}

func TestRoundTrip(t *testing.T) {
	c, dir := testDaemon(t)
	ctx := context.Background()

	before, _ := writeArchive(t, dir, "before", "a=1\n")
	after, conf := writeArchive(t, dir, "after", "a=2\n")

	sum, err := c.Upload(ctx, "before", before)
	require.NoError(t, err)
	assert.Equal(t, "before", sum.ID)
	assert.Equal(t, 1, sum.FileCount)

	_, err = c.Load(ctx, "after", after)
	require.NoError(t, err)

	projects, err := c.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "after", projects[0].ID)

	p, err := c.Project(ctx, "before")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Statistics.ArchivedFiles)

	res, err := c.Compare(ctx, "before", "after")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Statistics.ModifiedFiles)

	fd, err := c.FileDiff(ctx, "before", "after", conf, 0)
	require.NoError(t, err)
	assert.Equal(t, diff.TypeModified, fd.DiffType)
	assert.Contains(t, fd.Unified, "+a=2")

	data, filename, err := c.Export(ctx, "before", "after", "csv")
	require.NoError(t, err)
	assert.Equal(t, "comparison_before_after.csv", filename)
	assert.True(t, strings.HasPrefix(string(data), "Change Type,File Path"))

	cfg, err := c.Synth(ctx, "before", "after", "yaml")
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "- conf.ini")

	require.NoError(t, c.Delete(ctx, "before"))
	_, err = c.Project(ctx, "before")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUploadBadRequestStartsNoWriter(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeArchive(t, dir, "snap", "a=1\n")
	c, err := New("127.0.0.1:1")
	require.NoError(t, err)

	before := runtime.NumGoroutine()
	var ctx context.Context
	_, err = c.Upload(ctx, "snap", path)
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
}

func TestAPIErrors(t *testing.T) {
	c, dir := testDaemon(t)
	ctx := context.Background()

	_, err := c.Compare(ctx, "x", "y")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Type)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, _, err = c.Export(ctx, "x", "y", "xml")
	assert.ErrorIs(t, err, types.ErrValidation)

	bad := filepath.Join(dir, "bad.tar")
	require.NoError(t, os.WriteFile(bad, []byte("junk"), 0o644))
	_, err = c.Upload(ctx, "bad", bad)
	assert.ErrorIs(t, err, types.ErrArchive)
}

func TestNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
	assert.NoError(t, apiErr.Unwrap())
}

func TestRequestIDHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-Id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 36)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	paths := DaemonPaths{PID: filepath.Join(dir, "sysprintd.pid")}

	_, err := Discover(paths)
	assert.ErrorIs(t, err, ErrDaemonNotRunning)

	require.NoError(t, daemon.WritePIDFile(paths.PID))
	_, err = Discover(paths)
	assert.ErrorIs(t, err, ErrDaemonNotRunning, "no status file yet")

	require.NoError(t, daemon.WriteStatusReady(daemon.StatusPath(dir), "127.0.0.1:5123"))
	addr, err := Discover(paths)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5123", addr)
}

func TestStopDaemonNotRunning(t *testing.T) {
	paths := DaemonPaths{PID: filepath.Join(t.TempDir(), "sysprintd.pid")}
	assert.NoError(t, StopDaemon(paths))
}

func TestResolveBinaryConfigured(t *testing.T) {
	_, err := resolveBinary(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	bin := filepath.Join(t.TempDir(), "sysprintd")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	got, err := resolveBinary(bin)
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}
