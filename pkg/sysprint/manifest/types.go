// Package manifest defines the fingerprint record of a scanned filesystem
// subtree and its JSON encoding.
package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is the manifest format version written by this package.
const Version = "1.0"

// Metadata describes where and how a manifest was produced.
type Metadata struct {
	Version    string    `json:"version" yaml:"version"`
	Created    Timestamp `json:"created" yaml:"created"`
	Hostname   string    `json:"hostname" yaml:"hostname"`
	Platform   string    `json:"platform" yaml:"platform"`
	ConfigFile string    `json:"config_file" yaml:"config_file"`
	Mode       int       `json:"mode" yaml:"mode"`
}

// FileMetadata is the attribute snapshot of one path, captured once at scan
// time. Times are seconds since the Unix epoch.
type FileMetadata struct {
	Size        uint64   `json:"size" yaml:"size"`
	Mode        FileMode `json:"mode" yaml:"mode"`
	UID         uint32   `json:"uid" yaml:"uid"`
	GID         uint32   `json:"gid" yaml:"gid"`
	Mtime       float64  `json:"mtime" yaml:"mtime"`
	Ctime       float64  `json:"ctime" yaml:"ctime"`
	Atime       float64  `json:"atime" yaml:"atime"`
	IsSymlink   bool     `json:"is_symlink" yaml:"is_symlink"`
	IsDirectory bool     `json:"is_directory" yaml:"is_directory"`
	IsFile      bool     `json:"is_file" yaml:"is_file"`
}

// ModTime returns Mtime as a time.Time.
func (m FileMetadata) ModTime() time.Time {
	return FromEpoch(m.Mtime)
}

// FileEntry is one recorded file. Hash is empty for non-regular files and
// for files whose content could not be read.
type FileEntry struct {
	Path     string       `json:"path" yaml:"path"`
	Metadata FileMetadata `json:"metadata" yaml:"metadata"`
	Hash     string       `json:"hash" yaml:"hash"`
	Archived bool         `json:"archived" yaml:"archived"`
}

// DirectoryEntry is one recorded directory. Hierarchy is only recoverable
// from path prefixes.
type DirectoryEntry struct {
	Path     string       `json:"path" yaml:"path"`
	Metadata FileMetadata `json:"metadata" yaml:"metadata"`
}

// Manifest is the complete fingerprint of one scan.
type Manifest struct {
	Metadata    Metadata                  `json:"metadata" yaml:"metadata"`
	Files       map[string]FileEntry      `json:"files" yaml:"files"`
	Directories map[string]DirectoryEntry `json:"directories" yaml:"directories"`
	Errors      []string                  `json:"errors" yaml:"errors"`
}

// FileMode holds the raw st_mode bits, type bits included. It encodes to
// JSON as an octal string such as "0o100644".
type FileMode uint32

// String returns the mode in "0o" octal notation.
func (m FileMode) String() string {
	return "0o" + strconv.FormatUint(uint64(m), 8)
}

// Perm returns the permission bits as an os.FileMode.
func (m FileMode) Perm() os.FileMode {
	return os.FileMode(m & 0o777)
}

// MarshalJSON implements json.Marshaler.
func (m FileMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// MarshalYAML implements yaml.Marshaler.
func (m FileMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalJSON accepts an octal string ("0o100644", "0100644") or a number.
func (m *FileMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n uint32
		if nerr := json.Unmarshal(data, &n); nerr != nil {
			return fmt.Errorf("mode must be an octal string or number: %s", data)
		}
		*m = FileMode(n)
		return nil
	}

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0O")
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid octal mode %q: %w", s, err)
	}
	*m = FileMode(v)
	return nil
}

// Epoch converts t to fractional seconds since the Unix epoch.
func Epoch(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// FromEpoch converts fractional epoch seconds back into a time.Time.
func FromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}

// Timestamp is a creation time. It encodes as RFC 3339 and also decodes the
// zone-less ISO 8601 form ("2006-01-02T15:04:05.999999") as local time.
type Timestamp struct {
	time.Time
}

// MarshalYAML implements yaml.Marshaler.
func (t Timestamp) MarshalYAML() (any, error) {
	return t.Format(time.RFC3339Nano), nil
}

// Now returns the current UTC time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC()}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %s", data)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
