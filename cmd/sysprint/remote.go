package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/client"
	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
	"github.com/jamesainslie/sysprint/pkg/sysprint/output"
)

var (
	remoteAddr string

	remoteCompareFormat string
	remoteCompareOut    string
	remoteLimit         int
	remoteContext       int
	remoteHTML          bool
	remoteExportOut     string
	remoteSynthFormat   string
	remoteSynthOut      string
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Work with projects loaded in sysprintd",
	Long: `Upload archives to a running sysprintd and query the projects it holds.

The daemon address is taken from --daemon, then from the local daemon's
status file, then from server.addr in the configuration.`,
}

var remoteUploadCmd = &cobra.Command{
	Use:   "upload <project-id> <archive>",
	Short: "Upload an archive as a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remoteClient()
		if err != nil {
			return err
		}
		sum, err := c.Upload(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		printInfo("Uploaded %s as %s (%s files, %d errors)",
			filepath.Base(args[1]), sum.ID, humanize.Comma(int64(sum.FileCount)), sum.ErrorCount)
		return nil
	},
}

var remoteLoadCmd = &cobra.Command{
	Use:   "load <project-id> <archive-path>",
	Short: "Load an archive already on the daemon host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remoteClient()
		if err != nil {
			return err
		}
		path, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		sum, err := c.Load(cmd.Context(), args[0], path)
		if err != nil {
			return err
		}
		printInfo("Loaded %s (%s files)", sum.ID, humanize.Comma(int64(sum.FileCount)))
		return nil
	},
}

var remoteProjectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"ls"},
	Short:   "List loaded projects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := remoteClient()
		if err != nil {
			return err
		}
		list, err := c.Projects(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			printInfo("No projects loaded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tHOST\tMODE\tFILES\tARCHIVED\tERRORS\tLOADED")
		for _, p := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
				p.ID, p.Metadata.Hostname, p.Metadata.Mode,
				humanize.Comma(int64(p.Statistics.TotalFiles)),
				humanize.Comma(int64(p.Statistics.ArchivedFiles)),
				p.Statistics.Errors, humanize.Time(p.LoadedAt))
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Describe a loaded project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remoteClient()
		if err != nil {
			return err
		}
		p, err := c.Project(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID:\t%s\n", p.ID)
		fmt.Fprintf(w, "Hostname:\t%s\n", p.Metadata.Hostname)
		fmt.Fprintf(w, "Platform:\t%s\n", p.Metadata.Platform)
		fmt.Fprintf(w, "Created:\t%s\n", p.Metadata.Created.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "Mode:\t%d\n", p.Metadata.Mode)
		fmt.Fprintf(w, "Files:\t%s\n", humanize.Comma(int64(p.Statistics.TotalFiles)))
		fmt.Fprintf(w, "Archived:\t%s\n", humanize.Comma(int64(p.Statistics.ArchivedFiles)))
		fmt.Fprintf(w, "Directories:\t%s\n", humanize.Comma(int64(p.Statistics.TotalDirectories)))
		fmt.Fprintf(w, "Errors:\t%d\n", p.Statistics.Errors)
		fmt.Fprintf(w, "Loaded:\t%s\n", humanize.Time(p.LoadedAt))
		return w.Flush()
	},
}

var remoteRmCmd = &cobra.Command{
	Use:     "rm <project-id>",
	Aliases: []string{"delete"},
	Short:   "Unload a project",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remoteClient()
		if err != nil {
			return err
		}
		if err := c.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		printInfo("Project %s deleted", args[0])
		return nil
	},
}

var remoteCompareCmd = &cobra.Command{
	Use:   "compare <before-id> <after-id>",
	Short: "Compare two loaded projects",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := output.Get(remoteCompareFormat)
		if err != nil {
			return fmt.Errorf("unknown output format %q: available formats are %v", remoteCompareFormat, output.Available())
		}
		if p, ok := formatter.(*output.PrettyFormatter); ok {
			p.Limit = remoteLimit
		}

		c, err := remoteClient()
		if err != nil {
			return err
		}
		res, err := c.Compare(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := formatter.Format(&buf, res); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return writeOutput(buf.Bytes(), remoteCompareOut)
	},
}

var remoteFileDiffCmd = &cobra.Command{
	Use:   "filediff <before-id> <after-id> <path>",
	Short: "Show the content diff of one archived file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remoteClient()
		if err != nil {
			return err
		}
		res, err := c.FileDiff(cmd.Context(), args[0], args[1], args[2], remoteContext)
		if err != nil {
			return err
		}
		return printFileDiff(res, remoteHTML)
	},
}

var remoteExportCmd = &cobra.Command{
	Use:   "export <before-id> <after-id> <format>",
	Short: "Download a comparison as csv, json or yaml",
	Long: `Download a comparison in an export format. The file is saved under the name
the daemon suggests unless -o is given; -o - writes to stdout.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remoteClient()
		if err != nil {
			return err
		}
		data, filename, err := c.Export(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}

		target := remoteExportOut
		switch {
		case target == "-":
			target = ""
		case target == "" && filename != "":
			target = filepath.Base(filename)
		}
		return writeOutput(data, target)
	},
}

var remoteSynthCmd = &cobra.Command{
	Use:   "synth <before-id> <after-id>",
	Short: "Fetch the targeted configuration derived from two projects",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remoteClient()
		if err != nil {
			return err
		}
		data, err := c.Synth(cmd.Context(), args[0], args[1], remoteSynthFormat)
		if err != nil {
			return err
		}
		return writeOutput(data, remoteSynthOut)
	},
}

func init() {
	remoteCmd.PersistentFlags().StringVarP(&remoteAddr, "daemon", "d", "", "daemon address (host:port or URL)")

	remoteCompareCmd.Flags().StringVarP(&remoteCompareFormat, "format", "f", "pretty", "output format")
	remoteCompareCmd.Flags().StringVarP(&remoteCompareOut, "output", "o", "", "write to file instead of stdout")
	remoteCompareCmd.Flags().IntVarP(&remoteLimit, "limit", "n", output.DefaultPrettyLimit, "rows per section in pretty output (0=all)")

	remoteFileDiffCmd.Flags().IntVarP(&remoteContext, "context", "U", diff.DefaultContext, "lines of context around each change")
	remoteFileDiffCmd.Flags().BoolVar(&remoteHTML, "html", false, "print the side-by-side HTML table")

	remoteExportCmd.Flags().StringVarP(&remoteExportOut, "output", "o", "", "output file (- for stdout)")

	remoteSynthCmd.Flags().StringVarP(&remoteSynthFormat, "format", "f", "yaml", "output format: yaml or json")
	remoteSynthCmd.Flags().StringVarP(&remoteSynthOut, "output", "o", "", "write to file instead of stdout")

	remoteCmd.AddCommand(remoteUploadCmd)
	remoteCmd.AddCommand(remoteLoadCmd)
	remoteCmd.AddCommand(remoteProjectsCmd)
	remoteCmd.AddCommand(remoteShowCmd)
	remoteCmd.AddCommand(remoteRmCmd)
	remoteCmd.AddCommand(remoteCompareCmd)
	remoteCmd.AddCommand(remoteFileDiffCmd)
	remoteCmd.AddCommand(remoteExportCmd)
	remoteCmd.AddCommand(remoteSynthCmd)
	rootCmd.AddCommand(remoteCmd)
}

// remoteClient connects to the daemon named by --daemon, the local
// daemon's status file or server.addr, in that order.
func remoteClient() (*client.Client, error) {
	addr := remoteAddr
	if addr == "" {
		if found, err := client.Discover(client.DaemonPaths{PID: cfg.PIDPath()}); err == nil {
			addr = found
		}
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	printVerbose("using daemon at %s", addr)
	return client.New(addr)
}

