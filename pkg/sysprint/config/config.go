package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
	"github.com/jamesainslie/sysprint/pkg/sysprint/filter"
	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`

	// Console is the level mirrored to stderr. Empty disables it.
	Console    string            `mapstructure:"console"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// PathsConfig selects what a scan visits.
type PathsConfig struct {
	Scan    []string `mapstructure:"scan"`
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`

	// Prune is "full" (directories pass the file predicate before descent)
	// or "exclude" (only exclude patterns prune).
	Prune string `mapstructure:"prune"`
}

// ArchiveConfig selects which file contents are captured.
type ArchiveConfig struct {
	MaxFileSize string   `mapstructure:"max_file_size"`
	Patterns    []string `mapstructure:"patterns"`
	Exclude     []string `mapstructure:"exclude"`
	Compression string   `mapstructure:"compression"`
}

// PerformanceConfig tunes the scanner.
type PerformanceConfig struct {
	WorkerThreads int `mapstructure:"worker_threads"`
	HashChunkSize int `mapstructure:"hash_chunk_size"`
	MaxFiles      int `mapstructure:"max_files"`
}

// CacheConfig configures the persistent hash cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig configures sysprintd.
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	UploadDir     string `mapstructure:"upload_dir"`
	IndexPath     string `mapstructure:"index_path"`
	MaxUploadSize string `mapstructure:"max_upload_size"`
	PIDPath       string `mapstructure:"pid_path"`
}

// Config represents the application configuration.
type Config struct {
	Mode        int               `mapstructure:"mode"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Paths       PathsConfig       `mapstructure:"paths"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Server      ServerConfig      `mapstructure:"server"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

// Load reads configuration from path, or from the first config.yaml found
// in $XDG_CONFIG_HOME/sysprint and ~/.config/sysprint when path is empty.
// A missing default file is not an error; a missing explicit file is.
// Environment variables prefixed with SYSPRINT_ override file values
// (e.g. SYSPRINT_ARCHIVE_MAX_FILE_SIZE).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SYSPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config file: %w", types.ErrConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %w", types.ErrConfig, err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", DefaultMode)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means DefaultLogPath
	v.SetDefault("logging.console", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.components", map[string]string{})

	v.SetDefault("paths.scan", DefaultScan)
	v.SetDefault("paths.include", []string{})
	v.SetDefault("paths.exclude", DefaultExclude)
	v.SetDefault("paths.prune", DefaultPrune)

	v.SetDefault("archive.max_file_size", DefaultMaxFileSize)
	v.SetDefault("archive.patterns", DefaultArchivePatterns)
	v.SetDefault("archive.exclude", []string{})
	v.SetDefault("archive.compression", DefaultCompression)

	v.SetDefault("performance.worker_threads", DefaultWorkerThreads)
	v.SetDefault("performance.hash_chunk_size", DefaultHashChunkSize)
	v.SetDefault("performance.max_files", 0)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "") // Empty means DefaultCachePath

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.upload_dir", "")
	v.SetDefault("server.index_path", "")
	v.SetDefault("server.max_upload_size", DefaultMaxUploadSize)
	v.SetDefault("server.pid_path", "")
}

// Validate rejects unusable values and fills in derived paths. It stops at
// the first problem found.
func (c *Config) Validate() error {
	if _, err := types.ParseMode(fmt.Sprint(c.Mode)); err != nil {
		return fmt.Errorf("%w: mode: %w", types.ErrConfig, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %w", types.ErrConfig, err)
	}
	if c.Logging.Console != "" {
		if _, err := logging.ParseLevel(c.Logging.Console); err != nil {
			return fmt.Errorf("%w: logging.console: %w", types.ErrConfig, err)
		}
	}
	for name, level := range c.Logging.Components {
		if _, err := logging.ParseLevel(level); err != nil {
			return fmt.Errorf("%w: logging.components.%s: %w", types.ErrConfig, name, err)
		}
	}
	if _, err := types.ParseSize(c.Logging.Rotation.MaxSize); err != nil {
		return fmt.Errorf("%w: logging.rotation.max_size: %w", types.ErrConfig, err)
	}

	if len(c.Paths.Scan) == 0 {
		return fmt.Errorf("%w: paths.scan must name at least one directory", types.ErrConfig)
	}
	if _, err := filter.ParsePrunePolicy(c.Paths.Prune); err != nil {
		return fmt.Errorf("%w: paths.prune: %w", types.ErrConfig, err)
	}
	for _, list := range []struct {
		key      string
		patterns []string
	}{
		{"paths.include", c.Paths.Include},
		{"paths.exclude", c.Paths.Exclude},
		{"archive.patterns", c.Archive.Patterns},
		{"archive.exclude", c.Archive.Exclude},
	} {
		if err := filter.Validate(list.patterns); err != nil {
			return fmt.Errorf("%w: %s: %w", types.ErrConfig, list.key, err)
		}
	}

	if _, err := types.ParseSize(c.Archive.MaxFileSize); err != nil {
		return fmt.Errorf("%w: archive.max_file_size: %w", types.ErrConfig, err)
	}
	if _, err := archive.ParseCompression(c.Archive.Compression); err != nil {
		return fmt.Errorf("%w: archive.compression: %w", types.ErrConfig, err)
	}

	if c.Performance.WorkerThreads < 0 {
		return fmt.Errorf("%w: performance.worker_threads must not be negative", types.ErrConfig)
	}
	if c.Performance.HashChunkSize < 0 {
		return fmt.Errorf("%w: performance.hash_chunk_size must not be negative", types.ErrConfig)
	}
	if c.Performance.MaxFiles < 0 {
		return fmt.Errorf("%w: performance.max_files must not be negative", types.ErrConfig)
	}

	if _, err := types.ParseSize(c.Server.MaxUploadSize); err != nil {
		return fmt.Errorf("%w: server.max_upload_size: %w", types.ErrConfig, err)
	}

	c.expandPaths()
	return nil
}

func (c *Config) expandPaths() {
	for i, p := range c.Paths.Scan {
		c.Paths.Scan[i] = expand(p)
	}
	c.Logging.Path = expand(c.Logging.Path)
	c.Cache.Path = expand(c.Cache.Path)
	c.Server.UploadDir = expand(c.Server.UploadDir)
	c.Server.IndexPath = expand(c.Server.IndexPath)
	c.Server.PIDPath = expand(c.Server.PIDPath)
}

func expand(path string) string {
	if expanded, err := ExpandPath(path); err == nil {
		return expanded
	}
	return path
}

// ScanMode returns the validated scan mode.
func (c *Config) ScanMode() types.Mode {
	return types.Mode(c.Mode)
}

// MaxFileSize returns archive.max_file_size in bytes.
func (c *Config) MaxFileSize() int64 {
	n, _ := types.ParseSize(c.Archive.MaxFileSize)
	return n
}

// MaxUploadSize returns server.max_upload_size in bytes.
func (c *Config) MaxUploadSize() int64 {
	n, _ := types.ParseSize(c.Server.MaxUploadSize)
	return n
}

// Compression returns the configured archive container compression.
func (c *Config) Compression() archive.Compression {
	comp, _ := archive.ParseCompression(c.Archive.Compression)
	return comp
}

// Filter builds the scan path filter.
func (c *Config) Filter() *filter.Filter {
	policy, _ := filter.ParsePrunePolicy(c.Paths.Prune)
	return filter.New(
		filter.WithInclude(c.Paths.Include...),
		filter.WithExclude(c.Paths.Exclude...),
		filter.WithPrunePolicy(policy),
	)
}

// LoggingConfig converts the logging section for logging.Init.
func (c *Config) LoggingConfig() logging.Config {
	maxSize, _ := types.ParseSize(c.Logging.Rotation.MaxSize)
	return logging.Config{
		Level: c.Logging.Level,
		Path:  c.Logging.Path,
		Rotation: logging.RotationConfig{
			MaxSize:    maxSize,
			MaxBackups: c.Logging.Rotation.MaxBackups,
		},
		Components:   c.Logging.Components,
		ConsoleLevel: c.Logging.Console,
	}
}

// CachePath returns cache.path or the default location.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DefaultCachePath()
}

// UploadDir returns server.upload_dir or the default location.
func (c *Config) UploadDir() string {
	if c.Server.UploadDir != "" {
		return c.Server.UploadDir
	}
	return filepath.Join(DataDir(), "uploads")
}

// IndexPath returns server.index_path or the default location.
func (c *Config) IndexPath() string {
	if c.Server.IndexPath != "" {
		return c.Server.IndexPath
	}
	return filepath.Join(DataDir(), "projects.json")
}

// PIDPath returns server.pid_path or the default location.
func (c *Config) PIDPath() string {
	if c.Server.PIDPath != "" {
		return c.Server.PIDPath
	}
	return DefaultPIDPath()
}

// ConfigDir returns the configuration directory, preferring
// $XDG_CONFIG_HOME when set.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "sysprint"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "sysprint"), nil
}

// DefaultConfigPath returns the config.yaml path inside ConfigDir.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/sysprint/ for uploads, the project index
// and the pid file.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "sysprint")
}

// StateDir returns $XDG_STATE_HOME/sysprint/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "sysprint")
}

// CacheDir returns $XDG_CACHE_HOME/sysprint/ for the hash cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "sysprint")
}

// DefaultPIDPath returns the default daemon PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "sysprintd.pid")
}

// DefaultCachePath returns the default hash cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "hashes")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
