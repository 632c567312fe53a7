package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

var (
	inspectFiles  bool
	inspectErrors bool
	inspectJSON   bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Show a project archive's metadata and statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFiles, "files", false, "list archived files")
	inspectCmd.Flags().BoolVar(&inspectErrors, "errors", false, "list recorded scan errors")
	inspectCmd.Flags().BoolVarP(&inspectJSON, "json", "j", false, "print the raw manifest JSON")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	r, err := archive.Open(args[0])
	if err != nil {
		return err
	}

	if inspectJSON {
		_, err := os.Stdout.Write(r.RawManifest())
		return err
	}

	m := r.Manifest()
	printSummary(args[0], m)

	if inspectFiles {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SIZE\tPATH")
		for _, path := range r.Files() {
			size := humanize.IBytes(m.Files[path].Metadata.Size)
			fmt.Fprintf(w, "%s\t%s\n", size, path)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if inspectErrors && len(m.Errors) > 0 {
		fmt.Println()
		for _, e := range m.Errors {
			fmt.Println(e)
		}
	}
	return nil
}

func printSummary(path string, m *manifest.Manifest) {
	stats := m.Stats()
	md := m.Metadata

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Archive:\t%s\n", path)
	fmt.Fprintf(w, "Version:\t%s\n", md.Version)
	fmt.Fprintf(w, "Created:\t%s\n", md.Created.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Hostname:\t%s\n", md.Hostname)
	fmt.Fprintf(w, "Platform:\t%s\n", md.Platform)
	fmt.Fprintf(w, "Mode:\t%s\n", types.Mode(md.Mode))
	if md.ConfigFile != "" {
		fmt.Fprintf(w, "Config:\t%s\n", md.ConfigFile)
	}
	fmt.Fprintf(w, "Files:\t%s\n", humanize.Comma(int64(stats.TotalFiles)))
	fmt.Fprintf(w, "Archived:\t%s\n", humanize.Comma(int64(stats.ArchivedFiles)))
	fmt.Fprintf(w, "Directories:\t%s\n", humanize.Comma(int64(stats.TotalDirectories)))
	fmt.Fprintf(w, "Errors:\t%s\n", humanize.Comma(int64(stats.Errors)))
	_ = w.Flush()
}

