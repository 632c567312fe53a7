package client

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesainslie/sysprint/pkg/daemon"
	"github.com/jamesainslie/sysprint/pkg/sysprint/config"
)

// ErrDaemonNotRunning is returned when no ready daemon can be found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// DaemonPaths configures paths for daemon operations.
// Empty fields use defaults.
type DaemonPaths struct {
	Binary string // Path to sysprintd binary (auto-discovered if empty)
	Config string // Config file passed to sysprintd
	PID    string // PID file path
}

// withDefaults returns a copy with empty fields filled with defaults.
func (p DaemonPaths) withDefaults() DaemonPaths {
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	return p
}

func (p DaemonPaths) statusPath() string {
	return daemon.StatusPath(filepath.Dir(p.PID))
}

// Discover returns the listen address of the running daemon.
func Discover(paths DaemonPaths) (string, error) {
	paths = paths.withDefaults()
	if !daemon.IsDaemonRunning(paths.PID) {
		return "", ErrDaemonNotRunning
	}
	status, err := daemon.ReadStatus(paths.statusPath())
	if err != nil || !status.Ready() || status.Addr == "" {
		return "", ErrDaemonNotRunning
	}
	return status.Addr, nil
}

// StartDaemon starts sysprintd in the background and waits for it to
// report ready. Idempotent: returns nil if daemon is already running.
func StartDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if daemon.IsDaemonRunning(paths.PID) {
		return nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return fmt.Errorf("find sysprintd: %w", err)
	}

	statusPath := paths.statusPath()
	_ = os.Remove(statusPath)

	var args []string
	if paths.Config != "" {
		args = append(args, "--config", paths.Config)
	}

	// Use exec.Command (not CommandContext) intentionally: daemon must outlive caller
	cmd := exec.Command(binary, args...) //nolint:gosec // binary path is validated
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)

		if status, err := daemon.ReadStatus(statusPath); err == nil {
			switch status.Status {
			case "ready":
				return nil
			case "error":
				return fmt.Errorf("daemon failed to start: %s", status.Error)
			}
		}
	}

	return errors.New("daemon did not become ready within timeout")
}

// StopDaemon sends SIGTERM and waits for the daemon to exit.
// Idempotent: returns nil if daemon is not running.
func StopDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	pid, err := daemon.ReadPIDFile(paths.PID)
	if err != nil || !daemon.IsProcessRunning(pid) {
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon: %w", err)
	}

	for range 20 {
		time.Sleep(250 * time.Millisecond)
		if !daemon.IsDaemonRunning(paths.PID) {
			return nil
		}
	}

	return errors.New("daemon did not stop within timeout")
}

// resolveBinary finds the sysprintd binary path.
// Priority: configured path > same directory as executable > PATH.
func resolveBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured binary not found: %s", configured)
		}
		return configured, nil
	}

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), "sysprintd")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath("sysprintd"); err == nil {
		return path, nil
	}

	return "", errors.New("sysprintd not found")
}
