package daemon_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/sysprint/pkg/daemon"
)

func TestWriteStatusReady(t *testing.T) {
	statusPath := filepath.Join(t.TempDir(), "sysprintd.status")

	if err := daemon.WriteStatusReady(statusPath, "127.0.0.1:5000"); err != nil {
		t.Fatalf("WriteStatusReady failed: %v", err)
	}

	data, err := os.ReadFile(statusPath)
	if err != nil {
		t.Fatalf("Failed to read status file: %v", err)
	}

	var status map[string]any
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("Failed to parse status JSON: %v", err)
	}

	if status["status"] != "ready" {
		t.Errorf("Expected status 'ready', got %v", status["status"])
	}
	if status["addr"] != "127.0.0.1:5000" {
		t.Errorf("Expected addr '127.0.0.1:5000', got %v", status["addr"])
	}
	if pid, ok := status["pid"].(float64); !ok || int(pid) != os.Getpid() {
		t.Errorf("Expected PID %d, got %v", os.Getpid(), status["pid"])
	}
	if _, exists := status["error"]; exists {
		t.Error("Error field should not be present in ready status")
	}
}

func TestReadStatus(t *testing.T) {
	dir := t.TempDir()
	statusPath := filepath.Join(dir, "sysprintd.status")

	t.Run("ready", func(t *testing.T) {
		if err := daemon.WriteStatusReady(statusPath, "127.0.0.1:7000"); err != nil {
			t.Fatalf("WriteStatusReady failed: %v", err)
		}

		status, err := daemon.ReadStatus(statusPath)
		if err != nil {
			t.Fatalf("ReadStatus failed: %v", err)
		}
		if !status.Ready() {
			t.Errorf("Expected ready status, got %s", status.Status)
		}
		if status.Addr != "127.0.0.1:7000" {
			t.Errorf("Expected addr 127.0.0.1:7000, got %s", status.Addr)
		}
	})

	t.Run("error", func(t *testing.T) {
		testErr := errors.New("listen tcp: address already in use")
		if err := daemon.WriteStatusError(statusPath, testErr); err != nil {
			t.Fatalf("WriteStatusError failed: %v", err)
		}

		status, err := daemon.ReadStatus(statusPath)
		if err != nil {
			t.Fatalf("ReadStatus failed: %v", err)
		}
		if status.Ready() {
			t.Error("Expected error status")
		}
		if status.Error != testErr.Error() {
			t.Errorf("Expected error '%s', got %s", testErr.Error(), status.Error)
		}
		if status.PID != 0 || status.Addr != "" {
			t.Errorf("Expected no pid or addr, got %d %q", status.PID, status.Addr)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := daemon.ReadStatus(filepath.Join(dir, "nonexistent.status")); err == nil {
			t.Error("Expected error when reading non-existent file")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		invalidPath := filepath.Join(dir, "invalid.status")
		if err := os.WriteFile(invalidPath, []byte("not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := daemon.ReadStatus(invalidPath); err == nil {
			t.Error("Expected error when reading invalid JSON")
		}
	})
}

func TestRemoveStatus(t *testing.T) {
	statusPath := filepath.Join(t.TempDir(), "sysprintd.status")

	if err := daemon.WriteStatusReady(statusPath, "127.0.0.1:5000"); err != nil {
		t.Fatalf("WriteStatusReady failed: %v", err)
	}
	if err := daemon.RemoveStatus(statusPath); err != nil {
		t.Fatalf("RemoveStatus failed: %v", err)
	}
	if _, err := os.Stat(statusPath); !os.IsNotExist(err) {
		t.Error("Status file should have been removed")
	}
}

func TestStatusPath(t *testing.T) {
	if got := daemon.StatusPath("/var/lib/sysprint"); got != "/var/lib/sysprint/sysprintd.status" {
		t.Errorf("StatusPath() = %s", got)
	}
}
