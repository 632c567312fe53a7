// Package config loads the sysprint scan and daemon configuration.
package config

// Default configuration values.
const (
	DefaultMode          = 1
	DefaultLogLevel      = "info"
	DefaultMaxFileSize   = "100MiB"
	DefaultWorkerThreads = 4
	DefaultHashChunkSize = 4096
	DefaultPrune         = "full"
	DefaultCompression   = "gzip"

	DefaultServerAddr    = "127.0.0.1:5000"
	DefaultMaxUploadSize = "100MiB"

	DefaultLogMaxSize    = "10MiB"
	DefaultLogMaxBackups = 3
)

// DefaultScan is scanned when no roots are configured.
var DefaultScan = []string{"/"}

// DefaultExclude keeps pseudo filesystems out of broad scans.
var DefaultExclude = []string{
	"/proc/*",
	"/sys/*",
	"/dev/*",
	"/run/*",
}

// DefaultArchivePatterns archives every eligible file.
var DefaultArchivePatterns = []string{"*"}
