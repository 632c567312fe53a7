package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
)

var (
	fileDiffContext int
	fileDiffHTML    bool
)

var fileDiffCmd = &cobra.Command{
	Use:   "filediff <before> <after> <path>",
	Short: "Show the content diff of one archived file",
	Long: `Render a unified diff of one file's archived content between two project
archives. A side that did not archive the file is treated as empty; a path
archived by neither is reported as not found. Binary content is summarized,
never line-diffed.`,
	Example: `  sysprint filediff before.tar.gz after.tar.gz /etc/nginx/nginx.conf
  sysprint filediff before.tar.gz after.tar.gz /etc/hosts --html > hosts.html`,
	Args: cobra.ExactArgs(3),
	RunE: runFileDiff,
}

func init() {
	fileDiffCmd.Flags().IntVarP(&fileDiffContext, "context", "U", diff.DefaultContext, "lines of context around each change")
	fileDiffCmd.Flags().BoolVar(&fileDiffHTML, "html", false, "print the side-by-side HTML table")
	rootCmd.AddCommand(fileDiffCmd)
}

func runFileDiff(_ *cobra.Command, args []string) error {
	before, after, err := openPair(args[0], args[1])
	if err != nil {
		return err
	}

	res, err := diff.FileDiff(before, after, args[2], fileDiffContext)
	if err != nil {
		return err
	}
	return printFileDiff(res, fileDiffHTML)
}

// printFileDiff prints a file diff result. A not-found result is an error.
func printFileDiff(res *diff.FileResult, html bool) error {
	if res.NotFound() {
		return fmt.Errorf("%s: %s", res.FilePath, res.Error)
	}

	printVerbose("%s: %s (%d -> %d bytes)", res.FilePath, res.DiffType, res.Content1Size, res.Content2Size)
	if html {
		fmt.Print(res.DiffHTML)
		return nil
	}
	if res.Unified == "" {
		printInfo("No differences in %s", res.FilePath)
		return nil
	}
	fmt.Print(res.Unified)
	return nil
}
