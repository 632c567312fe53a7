package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists is returned by WriteDefault when the target file exists.
var ErrExists = errors.New("config file already exists")

const defaultTemplate = `# sysprint configuration

# Scan mode: 1 fingerprints everything not excluded and archives nothing,
# 2 records only included paths and archives matching files.
mode: %d

logging:
  # Log level: debug, info, warn, error, critical
  level: %s
  # Log file path (empty means $XDG_STATE_HOME/sysprint/sysprint.log)
  path: ""
  # Level mirrored to stderr (empty disables console output)
  console: ""
  rotation:
    max_size: %s
    max_backups: %d
  # Per-component log levels
  components:
    scanner: info
    api: info

paths:
  # Directories to walk
  scan:
    - /
  # Mode 2 only: a path must match one of these to be recorded
  include: []
  # Patterns match the full path; * also matches /
  exclude:
    - /proc/*
    - /sys/*
    - /dev/*
    - /run/*
  # full: directories must pass the include gate before descent
  # exclude: only exclude patterns stop descent
  prune: %s

archive:
  max_file_size: %s
  patterns:
    - "*"
  # Never archived, even when a pattern matches
  exclude: []
  # gzip or zstd
  compression: %s

performance:
  # 0 sizes the pool from the host
  worker_threads: %d
  hash_chunk_size: %d
  # 0 is unlimited
  max_files: 0

# Persistent hash cache for repeated scans of the same host
cache:
  enabled: false
  path: ""

# sysprintd
server:
  addr: %s
  upload_dir: ""
  index_path: ""
  max_upload_size: %s
  pid_path: ""
`

// DefaultTemplate returns the commented default configuration file.
func DefaultTemplate() string {
	return fmt.Sprintf(defaultTemplate,
		DefaultMode, DefaultLogLevel, DefaultLogMaxSize, DefaultLogMaxBackups,
		DefaultPrune, DefaultMaxFileSize, DefaultCompression,
		DefaultWorkerThreads, DefaultHashChunkSize,
		DefaultServerAddr, DefaultMaxUploadSize)
}

// WriteDefault writes the default configuration to path, or to
// DefaultConfigPath when path is empty, and returns the path written.
// An existing file is left untouched and reported with ErrExists.
func WriteDefault(path string) (string, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%w: %s", ErrExists, path)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultTemplate()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}
