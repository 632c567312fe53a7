package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
	"github.com/jamesainslie/sysprint/pkg/sysprint/output"
)

var (
	compareFormat string
	compareOut    string
	compareLimit  int
)

var compareCmd = &cobra.Command{
	Use:   "compare <before> <after>",
	Short: "Compare two project archives",
	Long: `Classify every file path in two project archives as new, deleted, modified or
unchanged. Files are compared by content hash; directories are not compared.

Output formats: pretty (default), plain, json, yaml, csv.`,
	Example: `  sysprint compare before.tar.gz after.tar.gz
  sysprint compare before.tar.gz after.tar.gz -f csv -o changes.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", "pretty", "output format")
	compareCmd.Flags().StringVarP(&compareOut, "output", "o", "", "write to file instead of stdout")
	compareCmd.Flags().IntVarP(&compareLimit, "limit", "n", output.DefaultPrettyLimit, "rows per section in pretty output (0=all)")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(_ *cobra.Command, args []string) error {
	formatter, err := output.Get(compareFormat)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", compareFormat, output.Available())
	}
	if p, ok := formatter.(*output.PrettyFormatter); ok {
		p.Limit = compareLimit
	}

	before, after, err := openPair(args[0], args[1])
	if err != nil {
		return err
	}

	res := diff.Compare(projectID(args[0]), before.Manifest(), projectID(args[1]), after.Manifest())

	var buf bytes.Buffer
	if err := formatter.Format(&buf, res); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return writeOutput(buf.Bytes(), compareOut)
}

// openPair opens two project archives.
func openPair(beforePath, afterPath string) (*archive.Reader, *archive.Reader, error) {
	before, err := archive.Open(beforePath)
	if err != nil {
		return nil, nil, err
	}
	after, err := archive.Open(afterPath)
	if err != nil {
		return nil, nil, err
	}
	printVerbose("Loaded %s (%d files) and %s (%d files)",
		beforePath, len(before.Manifest().Files), afterPath, len(after.Manifest().Files))
	return before, after, nil
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(data []byte, path string) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	printInfo("Wrote %s", path)
	return nil
}
