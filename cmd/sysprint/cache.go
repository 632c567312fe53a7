package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/sysprint/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the hash cache",
	Long: `Commands for managing the persistent hash cache.

When cache.enabled is set, 'sysprint record' reuses the digest of any file whose
size, mtime and ctime are unchanged since the previous scan. Cache data is
stored in the XDG cache directory (typically ~/.cache/sysprint/hashes).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Clear cached digests",
	Long:  `Removes cached digests under dir, or all of them when no dir is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := cfg.CachePath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			printInfo("Cache is already empty.")
			return nil
		}

		c, err := cache.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		if len(args) == 0 {
			if err := c.ClearAll(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			printInfo("Cache cleared.")
			return nil
		}

		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if err := c.Clear(dir); err != nil {
			return fmt.Errorf("failed to clear cache for %s: %w", dir, err)
		}
		printInfo("Cache cleared for %s.", dir)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, on-disk size and number of cached digests.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		path := cfg.CachePath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println("Cache: empty (no cache directory)")
			fmt.Printf("Cache location: %s\n", path)
			return nil
		}

		size, err := dirSize(path)
		if err != nil {
			return fmt.Errorf("failed to calculate cache size: %w", err)
		}

		c, err := cache.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		entries, err := c.Count("")
		if err != nil {
			return fmt.Errorf("failed to count cache entries: %w", err)
		}

		fmt.Printf("Cache location: %s\n", path)
		fmt.Printf("Cache size: %s\n", humanize.IBytes(uint64(size)))
		fmt.Printf("Cached digests: %s\n", humanize.Comma(int64(entries)))
		if !cfg.Cache.Enabled {
			fmt.Println("Note: cache.enabled is false; scans do not use the cache")
		}
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CachePath())
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
