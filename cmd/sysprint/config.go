package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/sysprint/pkg/sysprint/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage sysprint configuration settings.

Configuration is loaded from:
  1. the file named by --config
  2. $XDG_CONFIG_HOME/sysprint/config.yaml (if set)
  3. ~/.config/sysprint/config.yaml

Environment variables override config file settings using the SYSPRINT_ prefix:
  SYSPRINT_MODE=2
  SYSPRINT_ARCHIVE_MAX_FILE_SIZE=5MB
  SYSPRINT_SERVER_ADDR=127.0.0.1:5000`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after defaults, file and environment are merged.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Create default configuration file",
	Long:        `Create a default configuration file if one doesn't exist.`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Show configuration file path",
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configPath returns --config, or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return config.ExpandPath(cfgFile)
	}
	return config.DefaultConfigPath()
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if cfg.File != "" {
		fmt.Fprintf(out, "# Config file: %s\n", cfg.File)
	} else {
		fmt.Fprintln(out, "# Config file: (using defaults, no file found)")
	}

	data, err := yaml.Marshal(showable(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// showable mirrors the configuration keys as they appear in the file.
func showable(c *config.Config) map[string]any {
	return map[string]any{
		"mode": c.Mode,
		"logging": map[string]any{
			"level":      c.Logging.Level,
			"path":       c.Logging.Path,
			"console":    c.Logging.Console,
			"components": c.Logging.Components,
			"rotation": map[string]any{
				"max_size":    c.Logging.Rotation.MaxSize,
				"max_backups": c.Logging.Rotation.MaxBackups,
			},
		},
		"paths": map[string]any{
			"scan":    c.Paths.Scan,
			"include": c.Paths.Include,
			"exclude": c.Paths.Exclude,
			"prune":   c.Paths.Prune,
		},
		"archive": map[string]any{
			"max_file_size": c.Archive.MaxFileSize,
			"patterns":      c.Archive.Patterns,
			"exclude":       c.Archive.Exclude,
			"compression":   c.Archive.Compression,
		},
		"performance": map[string]any{
			"worker_threads":  c.Performance.WorkerThreads,
			"hash_chunk_size": c.Performance.HashChunkSize,
			"max_files":       c.Performance.MaxFiles,
		},
		"cache": map[string]any{
			"enabled": c.Cache.Enabled,
			"path":    c.CachePath(),
		},
		"server": map[string]any{
			"addr":            c.Server.Addr,
			"upload_dir":      c.UploadDir(),
			"index_path":      c.IndexPath(),
			"max_upload_size": c.Server.MaxUploadSize,
			"pid_path":        c.PIDPath(),
		},
	}
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	path, err := config.WriteDefault(cfgFileOrEmpty())
	if err != nil && !errors.Is(err, config.ErrExists) {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", path, editor)

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := config.WriteDefault(cfgFileOrEmpty())
	if errors.Is(err, config.ErrExists) {
		printInfo("Config file already exists: %s", path)
		printInfo("Use 'sysprint config edit' to modify it.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)

	if _, err := os.Stat(path); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}

// cfgFileOrEmpty expands --config, leaving it empty when unset.
func cfgFileOrEmpty() string {
	if cfgFile == "" {
		return ""
	}
	path, err := config.ExpandPath(cfgFile)
	if err != nil {
		return cfgFile
	}
	return path
}
