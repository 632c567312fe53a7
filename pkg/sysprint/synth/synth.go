// Package synth derives a targeted second-pass scan configuration from the
// changes found between two fingerprints.
package synth

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
	"github.com/jamesainslie/sysprint/pkg/sysprint/probe"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// DefaultMaxFileSize caps archiving in synthesized configurations.
const DefaultMaxFileSize = 10 * types.MiB

// configMarkers flag a filename as configuration-like.
var configMarkers = []string{"conf", "config", "cfg", "ini", "yaml", "yml", "json"}

// DefaultExclude keeps scratch, cache, VCS and log trees out of a second pass.
var DefaultExclude = []string{
	"*/tmp/*",
	"*/cache/*",
	"*/.cache/*",
	"*/.git/*",
	"*/.svn/*",
	"*/log/*",
	"*/logs/*",
	"*.log",
	"*/__pycache__/*",
}

// DefaultArchiveExclude lists credential paths that are never archived.
var DefaultArchiveExclude = []string{
	"*/.ssh/*",
	"*/shadow",
	"*/gshadow",
	"*.key",
	"*.pem",
	"*/secrets/*",
	"*password*",
	"*credential*",
}

// Mode2Config is a targeted scan configuration. Its layout matches the
// configuration file, so a synthesized document can be fed back to record.
type Mode2Config struct {
	Mode        types.Mode  `json:"mode" yaml:"mode"`
	Logging     Logging     `json:"logging" yaml:"logging"`
	Paths       Paths       `json:"paths" yaml:"paths"`
	Archive     Archive     `json:"archive" yaml:"archive"`
	Performance Performance `json:"performance" yaml:"performance"`
	Metadata    Provenance  `json:"metadata" yaml:"metadata"`
}

type Logging struct {
	Level string `json:"level" yaml:"level"`
}

type Paths struct {
	Scan    []string `json:"scan" yaml:"scan"`
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

type Archive struct {
	MaxFileSize string   `json:"max_file_size" yaml:"max_file_size"`
	Patterns    []string `json:"patterns" yaml:"patterns"`
	Exclude     []string `json:"exclude" yaml:"exclude"`
}

type Performance struct {
	WorkerThreads int `json:"worker_threads" yaml:"worker_threads"`
	HashChunkSize int `json:"hash_chunk_size" yaml:"hash_chunk_size"`
	MaxFiles      int `json:"max_files" yaml:"max_files"`
}

// Provenance records which comparison produced a configuration.
type Provenance struct {
	SourceProjects []string  `json:"source_projects" yaml:"source_projects"`
	Changes        Counts    `json:"changes" yaml:"changes"`
	Generated      time.Time `json:"generated" yaml:"generated"`
}

type Counts struct {
	New      int `json:"new" yaml:"new"`
	Deleted  int `json:"deleted" yaml:"deleted"`
	Modified int `json:"modified" yaml:"modified"`
}

// Synthesize builds the configuration for res. Every changed path adds its
// parent directory to the scan set, a "*<ext>" pattern when it has an
// extension, and its literal name when that name looks like configuration.
// All sets are sorted, so equal inputs give equal outputs apart from the
// generation time.
func Synthesize(res *diff.Result) *Mode2Config {
	dirs := map[string]struct{}{}
	patterns := map[string]struct{}{}

	for _, path := range res.ChangedPaths() {
		dirs[filepath.Dir(path)] = struct{}{}

		name := filepath.Base(path)
		if ext := extension(name); ext != "" {
			patterns["*"+ext] = struct{}{}
		}
		if configLike(name) {
			patterns[name] = struct{}{}
		}
	}

	include := sorted(patterns)
	if len(include) == 0 {
		include = []string{"*"}
	}

	return &Mode2Config{
		Mode:    types.ModeTargeted,
		Logging: Logging{Level: "info"},
		Paths: Paths{
			Scan:    sorted(dirs),
			Include: include,
			Exclude: append([]string(nil), DefaultExclude...),
		},
		Archive: Archive{
			MaxFileSize: types.FormatSize(DefaultMaxFileSize),
			Patterns:    append([]string(nil), include...),
			Exclude:     append([]string(nil), DefaultArchiveExclude...),
		},
		Performance: Performance{
			WorkerThreads: 4,
			HashChunkSize: probe.DefaultChunkSize,
		},
		Metadata: Provenance{
			SourceProjects: []string{res.Project1, res.Project2},
			Changes: Counts{
				New:      res.Statistics.NewFiles,
				Deleted:  res.Statistics.DeletedFiles,
				Modified: res.Statistics.ModifiedFiles,
			},
			Generated: time.Now().UTC(),
		},
	}
}

// extension returns the suffix of name from its last dot. Leading dots
// belong to the name, so ".bashrc" has none.
func extension(name string) string {
	return filepath.Ext(strings.TrimLeft(name, "."))
}

func configLike(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range configMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
