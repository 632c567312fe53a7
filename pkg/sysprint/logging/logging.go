// Package logging provides component loggers for the sysprint CLI and
// daemon, writing to a size-rotated file and optionally to stderr.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("scanner")
//	logger.Info("scan started", "root", "/etc")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses debug, info, warn/warning, error or critical.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "critical", "fatal":
		return log.FatalLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default level for every component.
	Level string

	// Path is the log file. Empty uses DefaultLogPath("sysprint").
	Path string

	// Rotation bounds the log file size and backup count.
	Rotation RotationConfig

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel mirrors records at or above this level to stderr.
	// Empty disables console output.
	ConsoleLevel string

	// Console overrides stderr as the console destination.
	Console io.Writer
}

// Logger is a component-scoped logger. It may write to the log file and
// the console at independent levels.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.file.Debug(msg, args...)
	if l.console != nil {
		l.console.Debug(msg, args...)
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.file.Info(msg, args...)
	if l.console != nil {
		l.console.Info(msg, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.file.Warn(msg, args...)
	if l.console != nil {
		l.console.Warn(msg, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.file.Error(msg, args...)
	if l.console != nil {
		l.console.Error(msg, args...)
	}
}

// With returns a logger carrying additional key/value context.
func (l *Logger) With(args ...any) *Logger {
	out := &Logger{file: l.file.With(args...), component: l.component}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	console     io.Writer
	level       log.Level
	consoleOn   bool
	consoleLvl  log.Level
	components  map[string]log.Level
	loggers     map[string]*Logger
}

var global = &state{
	components: make(map[string]log.Level),
	loggers:    make(map[string]*Logger),
}

// Init configures logging. Loggers obtained before Init are rebuilt so they
// pick up the new destination and levels.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]log.Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	var consoleLvl log.Level
	consoleOn := cfg.ConsoleLevel != ""
	if consoleOn {
		if consoleLvl, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath("sysprint")
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		_ = global.writer.Close()
	}

	global.writer = writer
	global.level = level
	global.components = components
	global.consoleOn = consoleOn
	global.consoleLvl = consoleLvl
	global.console = cfg.Console
	if global.console == nil {
		global.console = os.Stderr
	}
	global.initialized = true

	for component := range global.loggers {
		global.loggers[component] = newLogger(component)
	}
	return nil
}

// Get returns the logger for component, creating it on first use.
// Before Init, loggers discard everything.
func Get(component string) *Logger {
	global.mu.RLock()
	if logger, ok := global.loggers[component]; ok {
		global.mu.RUnlock()
		return logger
	}
	global.mu.RUnlock()

	global.mu.Lock()
	defer global.mu.Unlock()

	if logger, ok := global.loggers[component]; ok {
		return logger
	}
	logger := newLogger(component)
	global.loggers[component] = logger
	return logger
}

// newLogger must be called with global.mu held.
func newLogger(component string) *Logger {
	level := global.level
	if lvl, ok := global.components[component]; ok {
		level = lvl
	}

	if !global.initialized {
		return &Logger{
			file:      log.NewWithOptions(io.Discard, log.Options{Prefix: component}),
			component: component,
		}
	}

	logger := &Logger{
		file: log.NewWithOptions(global.writer, log.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
	}

	if global.consoleOn {
		logger.console = log.NewWithOptions(global.console, log.Options{
			Level:           global.consoleLvl,
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			Prefix:          component,
		})
	}
	return logger
}

// Close flushes and closes the log file. Loggers revert to discarding.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}

	global.initialized = false
	global.loggers = make(map[string]*Logger)
	global.components = make(map[string]log.Level)

	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/sysprint/<name>.log.
func DefaultLogPath(name string) string {
	return filepath.Join(xdg.StateHome, "sysprint", name+".log")
}
