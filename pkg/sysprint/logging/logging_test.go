package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    log.Level
		wantErr bool
	}{
		{"debug", log.DebugLevel, false},
		{"INFO", log.InfoLevel, false},
		{"", log.InfoLevel, false},
		{"warning", log.WarnLevel, false},
		{"error", log.ErrorLevel, false},
		{"critical", log.FatalLevel, false},
		{"verbose", log.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("ParseLevel(%q) error should wrap ErrInvalidLevel", tt.input)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestGetBeforeInitIsSilent(t *testing.T) {
	defer Close()

	logger := Get("silent")
	logger.Info("nobody hears this")
	if logger.Component() != "silent" {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestInitWritesFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "test.log")
	var console bytes.Buffer

	// A logger obtained before Init must be rebuilt by Init.
	early := Get("scanner")

	err := Init(Config{
		Level:        "debug",
		Path:         path,
		Components:   map[string]string{"noisy": "error"},
		ConsoleLevel: "warn",
		Console:      &console,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Get("scanner").Debug("walking", "root", "/etc")
	Get("scanner").Warn("root missing", "root", "/nope")
	Get("noisy").Info("suppressed")
	_ = early

	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	out := string(data)
	for _, want := range []string{"walking", "root missing", "scanner"} {
		if !strings.Contains(out, want) {
			t.Errorf("log file missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "suppressed") {
		t.Error("component override should suppress info for 'noisy'")
	}

	if !strings.Contains(console.String(), "root missing") {
		t.Errorf("console missing warning: %q", console.String())
	}
	if strings.Contains(console.String(), "walking") {
		t.Error("console should not receive debug records")
	}
}

func TestInitRejectsBadLevels(t *testing.T) {
	dir := t.TempDir()
	if err := Init(Config{Level: "loud", Path: filepath.Join(dir, "a.log")}); err == nil {
		t.Error("Init should reject unknown level")
	}
	if err := Init(Config{Path: filepath.Join(dir, "a.log"), Components: map[string]string{"x": "?"}}); err == nil {
		t.Error("Init should reject unknown component level")
	}
}

func TestRotatingWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.log")

	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 10, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	if w.Path() != path {
		t.Errorf("Path() = %q", w.Path())
	}

	for _, chunk := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	read := func(p string) string {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("reading %s: %v", p, err)
		}
		return string(data)
	}

	if got := read(path); got != "dddddddd\n" {
		t.Errorf("current = %q", got)
	}
	if got := read(path + ".1"); got != "cccccccc\n" {
		t.Errorf("backup 1 = %q", got)
	}
	if got := read(path + ".2"); got != "bbbbbbbb\n" {
		t.Errorf("backup 2 = %q", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("only MaxBackups backups should be kept")
	}

	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
}
