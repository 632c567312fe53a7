package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/sysprint/config"
	"github.com/jamesainslie/sysprint/pkg/sysprint/scanner"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// scanFlags are the record command's overrides of the scan configuration.
type scanFlags struct {
	mode            string
	scan            []string
	include         []string
	exclude         []string
	archivePatterns []string
	maxFileSize     string
	workers         int
	maxFiles        int
	prune           string
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", "", "scan mode: 1/broad or 2/targeted (default from config)")
	fl.StringSliceVar(&f.scan, "scan", nil, "directories to scan (replaces paths.scan)")
	fl.StringSliceVarP(&f.include, "include", "i", nil, "include patterns, mode 2 only (replaces paths.include)")
	fl.StringSliceVarP(&f.exclude, "exclude", "e", nil, "additional exclude patterns")
	fl.StringSliceVar(&f.archivePatterns, "archive-pattern", nil, "archive patterns (replaces archive.patterns)")
	fl.StringVar(&f.maxFileSize, "max-file-size", "", "largest file to archive (e.g., 10M, 1GiB)")
	fl.IntVarP(&f.workers, "workers", "w", 0, "override worker count (0=auto)")
	fl.IntVar(&f.maxFiles, "max-files", 0, "stop recording after this many files (0=unlimited)")
	fl.StringVar(&f.prune, "prune", "", "directory pruning: full or exclude")
}

// apply overlays the flags set on cmd onto c and revalidates it.
func (f *scanFlags) apply(cmd *cobra.Command, c *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("mode") {
		m, err := types.ParseMode(f.mode)
		if err != nil {
			return err
		}
		c.Mode = int(m)
	}
	if changed("scan") {
		c.Paths.Scan = f.scan
	}
	if changed("include") {
		c.Paths.Include = f.include
	}
	if changed("exclude") {
		c.Paths.Exclude = append(c.Paths.Exclude, f.exclude...)
	}
	if changed("archive-pattern") {
		c.Archive.Patterns = f.archivePatterns
	}
	if changed("max-file-size") {
		c.Archive.MaxFileSize = f.maxFileSize
	}
	if changed("workers") {
		c.Performance.WorkerThreads = f.workers
	}
	if changed("max-files") {
		c.Performance.MaxFiles = f.maxFiles
	}
	if changed("prune") {
		c.Paths.Prune = f.prune
	}
	return c.Validate()
}

// scanOptions builds scanner options from a validated configuration.
func scanOptions(c *config.Config) scanner.Options {
	roots := make([]string, len(c.Paths.Scan))
	for i, p := range c.Paths.Scan {
		roots[i] = filepath.Clean(p)
	}

	configFile := c.File
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			configFile = abs
		}
	}

	return scanner.Options{
		Roots:           roots,
		Mode:            c.ScanMode(),
		Filter:          c.Filter(),
		ArchivePatterns: c.Archive.Patterns,
		ArchiveExclude:  c.Archive.Exclude,
		MaxFileSize:     c.MaxFileSize(),
		Workers:         c.Performance.WorkerThreads,
		HashChunkSize:   c.Performance.HashChunkSize,
		MaxFiles:        c.Performance.MaxFiles,
		ConfigFile:      configFile,
	}
}

// projectID derives a project id from an archive file name.
func projectID(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".tar.gz", ".tar.zst", ".tgz", ".tar", ".gz", ".zst"} {
		trimmed, ok := strings.CutSuffix(name, ext)
		if !ok {
			continue
		}
		if trimmed == "" {
			return name
		}
		return trimmed
	}
	return name
}
