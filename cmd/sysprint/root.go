package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/sysprint/pkg/sysprint/config"
	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

var (
	cfgFile string

	// cfg is loaded before every command not annotated with skipConfig.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "sysprint",
		Short: "Fingerprint filesystems and diff the results",
		Long: `Sysprint records point-in-time fingerprints of a filesystem, optionally
capturing file content into a portable archive, and compares two fingerprints.

A broad first pass (mode 1) hashes everything not excluded. Comparing two broad
passes yields the paths that changed; 'sysprint synth' turns that comparison into
a targeted configuration (mode 2) whose pass also archives file content.

Examples:
  sysprint record before -c broad.yaml      # Fingerprint into ./output/before.tar.gz
  sysprint compare before.tar.gz after.tar.gz
  sysprint synth before.tar.gz after.tar.gz > targeted.yaml
  sysprint record snap -c targeted.yaml     # Second pass, archives content
  sysprint filediff a.tar.gz b.tar.gz /etc/app.conf
  sysprint remote upload web1 a.tar.gz      # Send to sysprintd`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.Close()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/sysprint/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// loadConfig reads the configuration and starts logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfig] != "" {
			return nil
		}
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		printError("%v", err)
		return err
	}
	cfg = loaded

	if err := initLogging(cfg); err != nil {
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
