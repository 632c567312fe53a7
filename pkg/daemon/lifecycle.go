package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
)

// ErrDaemonAlreadyRunning is returned when trying to start a daemon that's already running.
var ErrDaemonAlreadyRunning = errors.New("daemon already running")

// WritePIDFile writes the current process ID to a file.
func WritePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating pid directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPIDFile reads a PID from a file.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// RemovePIDFile removes the PID file. A missing file is not an error.
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// IsDaemonRunning checks if a daemon is running based on PID file.
func IsDaemonRunning(pidPath string) bool {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return false
	}
	return IsProcessRunning(pid)
}

// AcquirePIDFile claims pidPath for this process. A PID file left behind
// by a dead daemon is replaced, together with its status file.
func AcquirePIDFile(pidPath string) error {
	if pid, err := ReadPIDFile(pidPath); err == nil {
		if IsProcessRunning(pid) && pid != os.Getpid() {
			return fmt.Errorf("%w (pid %d)", ErrDaemonAlreadyRunning, pid)
		}
		logging.Get("daemon").Warn("cleaning up stale daemon files", "stale_pid", pid)
		_ = os.Remove(StatusPath(filepath.Dir(pidPath)))
	}
	return WritePIDFile(pidPath)
}
