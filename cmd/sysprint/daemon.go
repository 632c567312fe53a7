package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/client"
	"github.com/jamesainslie/sysprint/pkg/daemon"
)

var daemonBinary string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the sysprintd daemon",
	Long: `Manage the sysprintd daemon, which keeps uploaded project archives loaded
and serves comparisons, file diffs, exports and synthesized configurations
over HTTP.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sysprintd daemon",
	Long:  `Start the sysprintd daemon in the background and wait until it is ready.`,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the sysprintd daemon",
	RunE:  runDaemonStop,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the sysprintd daemon",
	RunE:  runDaemonRestart,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runDaemonStatus,
}

func init() {
	daemonCmd.PersistentFlags().StringVar(&daemonBinary, "binary", "", "path to the sysprintd binary")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

func daemonPaths() client.DaemonPaths {
	return client.DaemonPaths{
		Binary: daemonBinary,
		Config: cfg.File,
		PID:    cfg.PIDPath(),
	}
}

func runDaemonStart(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	if daemon.IsDaemonRunning(paths.PID) {
		printInfo("Daemon already running")
		return nil
	}

	printVerbose("starting daemon...")
	if err := client.StartDaemon(paths); err != nil {
		printVerbose("start failed: %v", err)
		return err
	}

	if addr, err := client.Discover(paths); err == nil {
		printInfo("Daemon started on %s", addr)
		return nil
	}
	printInfo("Daemon started")
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	printVerbose("checking PID file: %s", paths.PID)

	if !daemon.IsDaemonRunning(paths.PID) {
		return fmt.Errorf("%w (start with: sysprint daemon start)", client.ErrDaemonNotRunning)
	}

	if err := client.StopDaemon(paths); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	printInfo("Daemon stopped")
	return nil
}

func runDaemonRestart(cmd *cobra.Command, args []string) error {
	if daemon.IsDaemonRunning(daemonPaths().PID) {
		if err := runDaemonStop(cmd, args); err != nil {
			return err
		}
	}
	return runDaemonStart(cmd, args)
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	if !daemon.IsDaemonRunning(paths.PID) {
		printInfo("Daemon status: not running")
		return nil
	}

	addr, err := client.Discover(paths)
	if err != nil {
		printInfo("Daemon status: running (not ready)")
		return nil
	}

	c, err := client.New(addr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := c.Health(ctx)
	if err != nil {
		printInfo("Daemon status: running (but not responding on %s)", addr)
		return nil
	}

	printInfo("Daemon status: %s", health.Status)
	printInfo("  Address: %s", c.URL())
	printInfo("  Uptime: %s", health.Uptime)
	printInfo("  Projects loaded: %d", health.Projects)
	return nil
}
