// Package types holds the small shared vocabulary of sysprint: scan modes,
// byte-size parsing and formatting, and the error taxonomy used by every
// other package.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Mode selects a scan profile.
type Mode int

const (
	// ModeBroad fingerprints everything not excluded and never archives content.
	ModeBroad Mode = 1

	// ModeTargeted requires an include match and archives eligible files.
	ModeTargeted Mode = 2
)

// ErrInvalidMode indicates a scan mode other than 1 or 2.
var ErrInvalidMode = errors.New("invalid scan mode")

// ParseMode converts "1", "2", "broad" or "targeted" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "broad":
		return ModeBroad, nil
	case "2", "targeted":
		return ModeTargeted, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Valid reports whether m is a known scan mode.
func (m Mode) Valid() bool {
	return m == ModeBroad || m == ModeTargeted
}

// String returns the human name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeBroad:
		return "broad"
	case ModeTargeted:
		return "targeted"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// Plain numbers are bytes; K, M, G and T suffixes (optionally followed by B or
// iB, any case) are binary multiples. Decimal values are truncated.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	unit := strings.ToUpper(matches[2])
	unit = strings.TrimSuffix(unit, "IB")
	unit = strings.TrimSuffix(unit, "B")

	var multiplier int64
	switch unit {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, unit)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize renders a byte count with IEC units, e.g. "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
