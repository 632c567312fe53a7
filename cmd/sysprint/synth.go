package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
	"github.com/jamesainslie/sysprint/pkg/sysprint/synth"
)

var (
	synthFormat string
	synthOut    string
)

var synthCmd = &cobra.Command{
	Use:   "synth <before> <after>",
	Short: "Derive a targeted scan configuration from two archives",
	Long: `Compare two project archives and derive a mode 2 configuration that scans
only the parent directories of changed files, includes their extensions and
config-like file names, and archives their content.

The result is a valid configuration file for 'sysprint record -c'.`,
	Example: `  sysprint synth before.tar.gz after.tar.gz -o targeted.yaml
  sysprint record snap -c targeted.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runSynth,
}

func init() {
	synthCmd.Flags().StringVarP(&synthFormat, "format", "f", "yaml", "output format: yaml or json")
	synthCmd.Flags().StringVarP(&synthOut, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(synthCmd)
}

func runSynth(_ *cobra.Command, args []string) error {
	before, after, err := openPair(args[0], args[1])
	if err != nil {
		return err
	}

	res := diff.Compare(projectID(args[0]), before.Manifest(), projectID(args[1]), after.Manifest())
	if !res.HasChanges() {
		printVerbose("No changes found; the configuration will scan nothing")
	}

	data, err := encodeSynth(synth.Synthesize(res), synthFormat)
	if err != nil {
		return err
	}
	return writeOutput(data, synthOut)
}

func encodeSynth(c *synth.Mode2Config, format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return yaml.Marshal(c)
	case "json":
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown format %q: use yaml or json", format)
	}
}
