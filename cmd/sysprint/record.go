package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/daemon/store"
	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
	"github.com/jamesainslie/sysprint/pkg/sysprint/cache"
	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
	"github.com/jamesainslie/sysprint/pkg/sysprint/scanner"
)

var (
	recordFlags       scanFlags
	recordOutput      string
	recordNoCache     bool
	recordCompression string
)

var recordCmd = &cobra.Command{
	Use:   "record <project-name>",
	Short: "Fingerprint the filesystem into a project archive",
	Long: `Walk the configured scan paths, hash every included regular file and write
the manifest, plus the content of archived files in mode 2, to
<output>/<project-name>.tar.gz.

Per-path failures never abort a recording; they are listed in the manifest's
errors.`,
	Example: `  sysprint record baseline -c broad.yaml
  sysprint record web1 --scan /etc,/opt/app --mode 2 --archive-pattern '*.conf'
  sysprint record snap -o /var/lib/snapshots --compression zstd`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	recordFlags.register(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "output", "output directory")
	recordCmd.Flags().BoolVar(&recordNoCache, "no-cache", false, "bypass the hash cache")
	recordCmd.Flags().StringVar(&recordCompression, "compression", "", "archive compression: gzip or zstd (default from config)")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := store.ValidateID(name); err != nil {
		return err
	}

	if err := recordFlags.apply(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("compression") {
		cfg.Archive.Compression = recordCompression
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	opts := scanOptions(cfg)
	printVerbose("Mode: %s, roots: %v", opts.Mode, opts.Roots)
	printVerbose("Include: %v, exclude: %v", cfg.Paths.Include, cfg.Paths.Exclude)

	if cfg.Cache.Enabled && !recordNoCache {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			printVerbose("Hash cache unavailable: %v", err)
		} else {
			defer c.Close()
			opts.Cache = c
		}
	}

	if !getQuiet() {
		opts.OnProgress = progressPrinter()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.Get("record")
	logger.Info("starting system recording", "project", name)

	res, err := scanner.Scan(ctx, opts)
	clearProgress()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printInfo("Recording cancelled")
			return nil
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := os.MkdirAll(recordOutput, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	comp := cfg.Compression()
	path := filepath.Join(recordOutput, name+comp.Extension())

	packed, err := archive.Create(path, res.Manifest, res.Staged, comp)
	if err != nil {
		return fmt.Errorf("creating project archive: %w", err)
	}

	stats := res.Manifest.Stats()
	logger.Info("recording complete",
		"files", stats.TotalFiles,
		"archived", stats.ArchivedFiles,
		"directories", stats.TotalDirectories,
		"errors", stats.Errors)

	printInfo("Recording complete:")
	printInfo("  - Files processed:       %s", humanize.Comma(int64(stats.TotalFiles)))
	printInfo("  - Files archived:        %s (%s)", humanize.Comma(int64(stats.ArchivedFiles)), humanize.IBytes(uint64(packed.ArchivedBytes)))
	printInfo("  - Directories processed: %s", humanize.Comma(int64(stats.TotalDirectories)))
	printInfo("  - Errors encountered:    %s", humanize.Comma(int64(stats.Errors)))
	if res.CacheHits > 0 {
		printInfo("  - Hash cache hits:       %s", humanize.Comma(res.CacheHits))
	}
	if res.Truncated {
		printInfo("  - Stopped at max_files (%d)", cfg.Performance.MaxFiles)
	}
	printInfo("Project archive created: %s (%s)", path, res.Elapsed.Round(time.Millisecond))
	return nil
}

// progressPrinter returns a scanner progress callback that rewrites one
// status line on stderr.
func progressPrinter() func(scanner.Progress) {
	return func(p scanner.Progress) {
		fmt.Fprintf(os.Stderr, "\r\033[KScanning: %s files, %s dirs, %s hashed",
			humanize.Comma(p.Files), humanize.Comma(p.Directories), humanize.IBytes(uint64(p.BytesHashed)))
	}
}

func clearProgress() {
	if !getQuiet() {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
}
