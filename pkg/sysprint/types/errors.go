package types

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w", err) and test
// with errors.Is, so ErrHash matches both ErrHash and ErrScan.
var (
	// ErrScan marks a failure on a single path during scanning. It is never
	// fatal: the scanner records it in the manifest and continues.
	ErrScan = errors.New("scan error")

	// ErrHash is a ScanError raised when a file's content cannot be read.
	ErrHash = fmt.Errorf("%w: hash failed", ErrScan)

	// ErrStat is a ScanError raised when a path cannot be stat'ed.
	ErrStat = fmt.Errorf("%w: stat failed", ErrScan)

	// ErrConfig marks an unreadable or invalid configuration.
	ErrConfig = errors.New("config error")

	// ErrArchive marks a container that cannot be used as a project.
	ErrArchive = errors.New("archive error")

	// ErrInvalidArchive is returned when the container cannot be opened.
	ErrInvalidArchive = fmt.Errorf("%w: invalid archive", ErrArchive)

	// ErrMissingManifest is returned when the container has no manifest.json.
	ErrMissingManifest = fmt.Errorf("%w: no manifest.json found in project file", ErrArchive)

	// ErrNotFound is returned for unknown project identifiers.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed requests.
	ErrValidation = errors.New("validation error")
)

// Kind returns the taxonomy name of err, as used in structured error
// responses. Unknown errors are reported as "INTERNAL".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrArchive):
		return "ARCHIVE"
	case errors.Is(err, ErrConfig):
		return "CONFIG"
	case errors.Is(err, ErrScan):
		return "SCAN"
	default:
		return "INTERNAL"
	}
}
