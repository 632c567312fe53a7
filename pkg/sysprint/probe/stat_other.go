//go:build !linux && !darwin && !freebsd

package probe

import (
	"os"

	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
)

// lstat falls back to os.Lstat; ownership is reported as 0 and ctime/atime
// mirror mtime.
func lstat(path string) (manifest.FileMetadata, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return manifest.FileMetadata{}, err
	}
	return fromFileInfo(info), nil
}
