package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/sysprint/pkg/sysprint/filter"
	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
	"github.com/jamesainslie/sysprint/pkg/sysprint/probe"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// Result is the outcome of one scan.
type Result struct {
	Manifest *manifest.Manifest

	// Staged lists, sorted, the files flagged for archiving.
	Staged []string

	Elapsed     time.Duration
	BytesHashed int64
	CacheHits   int64
	Truncated   bool
}

// Scanner performs one fingerprint scan. It is not reusable.
type Scanner struct {
	opts    Options
	hasher  *probe.Hasher
	archive *filter.Matcher
	deny    *filter.Matcher
	logger  *logging.Logger

	builder *manifest.Builder

	// Atomic counters for thread-safe progress reporting.
	dirs        atomic.Int64
	files       atomic.Int64
	archived    atomic.Int64
	errs        atomic.Int64
	bytesHashed atomic.Int64
	cacheHits   atomic.Int64
	reserved    atomic.Int64

	currentPath  atomic.Value
	lastProgress atomic.Int64
	truncateOnce sync.Once
	truncated    atomic.Bool
}

// New creates a Scanner. Options are validated and defaults applied.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Scanner{
		opts:    opts,
		hasher:  probe.NewHasher(opts.HashChunkSize),
		archive: filter.NewMatcher(opts.ArchivePatterns...),
		deny:    filter.NewMatcher(opts.ArchiveExclude...),
		logger:  logging.Get("scanner"),
		builder: manifest.NewBuilder(manifest.New(opts.ConfigFile, opts.Mode)),
	}
	s.currentPath.Store("")
	return s, nil
}

// Scan walks every root and returns the manifest. Per-path failures are
// recorded in the manifest's error list and never abort the scan; only
// context cancellation returns an error.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	s.logger.Info("scan started", "roots", len(s.opts.Roots), "mode", s.opts.Mode, "workers", s.opts.Workers)

	for _, root := range s.opts.Roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.walkRoot(ctx, root)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c := s.opts.Cache; c != nil {
		if err := c.Flush(); err != nil {
			s.logger.Warn("hash cache update failed", "error", err)
		}
	}

	m := s.builder.Manifest()
	res := &Result{
		Manifest:    m,
		Staged:      m.Archived(),
		Elapsed:     time.Since(start),
		BytesHashed: s.bytesHashed.Load(),
		CacheHits:   s.cacheHits.Load(),
		Truncated:   s.truncated.Load(),
	}

	stats := m.Stats()
	s.logger.Info("scan complete",
		"files", stats.TotalFiles,
		"archived", stats.ArchivedFiles,
		"directories", stats.TotalDirectories,
		"errors", stats.Errors,
		"elapsed", res.Elapsed.Round(time.Millisecond))

	s.reportProgressForce()
	return res, nil
}

// walkRoot scans one root. The root itself is neither filtered nor recorded.
func (s *Scanner) walkRoot(ctx context.Context, root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		s.logger.Warn("scan path is invalid", "path", root, "error", err)
		return
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		s.logger.Warn("scan path does not exist", "path", abs)
		return
	}
	if !info.IsDir() {
		s.logger.Warn("scan path is not a directory", "path", abs)
		return
	}

	s.logger.Info("scanning directory", "path", abs)

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: s.opts.Workers,
	}

	err = fastwalk.Walk(&conf, abs, s.walkCallback(ctx, abs))
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, fastwalk.ErrSkipFiles) {
		s.recordError("Directory scan failed for %s: %v", abs, err)
	}
}

// walkCallback returns the callback function for fastwalk.Walk. It runs on
// up to Workers goroutines at once.
func (s *Scanner) walkCallback(ctx context.Context, root string) fs.WalkDirFunc {
	mode := s.opts.Mode
	f := s.opts.Filter

	return func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if path != root {
				s.recordError("Directory processing failed for %s: %v", path, err)
			}
			return nil
		}

		if path == root {
			return nil
		}

		if d.IsDir() {
			if s.truncated.Load() || !f.IncludeDir(path, mode) {
				return fastwalk.SkipDir
			}
			s.processDirectory(path)
			return nil
		}

		if s.truncated.Load() || !f.Include(path, mode) {
			return nil
		}
		s.processFile(path)
		return nil
	}
}

// processDirectory records a directory that will be descended into.
func (s *Scanner) processDirectory(path string) {
	s.dirs.Add(1)
	s.currentPath.Store(path)
	s.reportProgress()

	md, err := probe.Stat(path)
	if err != nil {
		s.logger.Error("error getting metadata", "path", path, "error", err)
		s.recordError("Directory processing failed for %s: %v", path, err)
		return
	}
	s.builder.AddDirectory(manifest.DirectoryEntry{Path: path, Metadata: md})
}

// processFile records an included file: metadata, digest, archive flag.
func (s *Scanner) processFile(path string) {
	if !s.reserve() {
		return
	}

	md, err := probe.Stat(path)
	if err != nil {
		s.reserved.Add(-1)
		s.logger.Error("error getting metadata", "path", path, "error", err)
		s.recordError("Metadata collection failed for %s: %v", path, err)
		return
	}

	entry := manifest.FileEntry{Path: path, Metadata: md}

	if md.IsFile {
		entry.Hash = s.digest(path, md)
		entry.Archived = s.shouldArchive(path, md.Size)
	}

	s.builder.AddFile(entry)
	s.files.Add(1)
	if entry.Archived {
		s.archived.Add(1)
	}
	s.reportProgress()
}

// digest returns the file's hash, consulting the cache first. Failures
// are recorded and yield an empty hash.
func (s *Scanner) digest(path string, md manifest.FileMetadata) string {
	if c := s.opts.Cache; c != nil {
		if hash, ok := c.Lookup(path, md); ok {
			s.cacheHits.Add(1)
			return hash
		}
	}

	hash, err := s.hasher.Sum(path)
	if err != nil {
		s.logger.Error("error calculating hash", "path", path, "error", err)
		s.recordError("Hash calculation failed for %s: %v", path, err)
		return ""
	}
	s.bytesHashed.Add(int64(md.Size))

	if c := s.opts.Cache; c != nil {
		c.Remember(path, md, hash)
	}
	return hash
}

// shouldArchive decides whether a regular file's content is captured.
// Broad mode never archives.
func (s *Scanner) shouldArchive(path string, size uint64) bool {
	if s.opts.Mode != types.ModeTargeted {
		return false
	}
	if size > uint64(s.opts.MaxFileSize) {
		return false
	}
	if !s.archive.MatchAny(path) {
		return false
	}
	return !s.deny.MatchAny(path)
}

// reserve claims a slot under MaxFiles. The first refusal records a single
// truncation error.
func (s *Scanner) reserve() bool {
	if s.opts.MaxFiles == 0 {
		return true
	}
	if s.reserved.Add(1) <= int64(s.opts.MaxFiles) {
		return true
	}
	s.reserved.Add(-1)
	s.truncateOnce.Do(func() {
		s.truncated.Store(true)
		s.logger.Warn("file limit reached, remaining files skipped", "max_files", s.opts.MaxFiles)
		s.recordError("File limit of %d reached; remaining files were not recorded", s.opts.MaxFiles)
	})
	return false
}

func (s *Scanner) recordError(format string, args ...any) {
	s.errs.Add(1)
	s.builder.AddError(format, args...)
}

// reportProgress calls the progress callback, throttled to every 50ms.
func (s *Scanner) reportProgress() {
	if s.opts.OnProgress == nil {
		return
	}

	now := time.Now().UnixMilli()
	last := s.lastProgress.Load()
	if now-last < 50 {
		return
	}
	if !s.lastProgress.CompareAndSwap(last, now) {
		return // Another goroutine updated it.
	}
	s.sendProgress()
}

func (s *Scanner) reportProgressForce() {
	if s.opts.OnProgress == nil {
		return
	}
	s.lastProgress.Store(time.Now().UnixMilli())
	s.sendProgress()
}

func (s *Scanner) sendProgress() {
	current, _ := s.currentPath.Load().(string)
	s.opts.OnProgress(Progress{
		Directories: s.dirs.Load(),
		Files:       s.files.Load(),
		Archived:    s.archived.Load(),
		Errors:      s.errs.Load(),
		BytesHashed: s.bytesHashed.Load(),
		CurrentPath: current,
	})
}

// Scan is a convenience wrapper around New and Scanner.Scan.
func Scan(ctx context.Context, opts Options) (*Result, error) {
	s, err := New(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid scan options: %w", err)
	}
	return s.Scan(ctx)
}
