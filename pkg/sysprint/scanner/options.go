// Package scanner walks a set of roots and builds a manifest, hashing
// regular files and selecting those whose content should be archived.
package scanner

import (
	"github.com/jamesainslie/sysprint/pkg/sysprint/cache"
	"github.com/jamesainslie/sysprint/pkg/sysprint/filter"
	"github.com/jamesainslie/sysprint/pkg/sysprint/probe"
	"github.com/jamesainslie/sysprint/pkg/sysprint/tuner"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// DefaultMaxFileSize is the archive size limit used when none is set.
const DefaultMaxFileSize = 100 * types.MiB

// Options configures the scanner behavior.
type Options struct {
	// Roots are the directories to walk. Missing roots are skipped.
	Roots []string

	// Mode selects broad (exclude-only, never archives) or targeted scanning.
	Mode types.Mode

	// Filter decides which files are recorded and which directories are
	// descended into. Nil records everything.
	Filter *filter.Filter

	// ArchivePatterns selects files to archive in targeted mode.
	ArchivePatterns []string

	// ArchiveExclude lists paths that are never archived.
	ArchiveExclude []string

	// MaxFileSize is the largest file, in bytes, that may be archived.
	MaxFileSize int64

	// Workers bounds concurrent walk and hash work. Zero sizes the pool
	// from the host.
	Workers int

	// HashChunkSize is the hasher's read size.
	HashChunkSize int

	// MaxFiles stops recording files once reached. Zero is unlimited.
	MaxFiles int

	// ConfigFile is stamped into the manifest metadata.
	ConfigFile string

	// Cache, when set, reuses digests of files whose size and timestamps
	// are unchanged since the previous scan.
	Cache *cache.Cache

	// OnProgress is called periodically with scan progress updates.
	// It must be safe to call from multiple goroutines.
	OnProgress func(Progress)
}

// Progress is a point-in-time snapshot of scan counters.
type Progress struct {
	Directories int64
	Files       int64
	Archived    int64
	Errors      int64
	BytesHashed int64
	CurrentPath string
}

// Validate applies defaults and rejects unusable options.
func (o *Options) Validate() error {
	if !o.Mode.Valid() {
		return types.ErrInvalidMode
	}
	if o.Filter == nil {
		o.Filter = filter.New()
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.HashChunkSize <= 0 {
		o.HashChunkSize = probe.DefaultChunkSize
	}
	o.Workers = tuner.AutoWorkers(o.Workers)
	if o.MaxFiles < 0 {
		o.MaxFiles = 0
	}
	return nil
}
