package probe

import (
	"fmt"
	"os"

	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// Stat returns the attribute snapshot of path without following symlinks.
// Failures match types.ErrStat.
func Stat(path string) (manifest.FileMetadata, error) {
	md, err := lstat(path)
	if err != nil {
		return manifest.FileMetadata{}, fmt.Errorf("%w: %s: %w", types.ErrStat, path, err)
	}
	return md, nil
}

// fromFileInfo fills the portable fields of a snapshot.
func fromFileInfo(info os.FileInfo) manifest.FileMetadata {
	mode := info.Mode()
	md := manifest.FileMetadata{
		Mode:        manifest.FileMode(mode.Perm()),
		IsSymlink:   mode&os.ModeSymlink != 0,
		IsDirectory: mode.IsDir(),
		IsFile:      mode.IsRegular(),
		Mtime:       manifest.Epoch(info.ModTime()),
	}
	if info.Size() > 0 {
		md.Size = uint64(info.Size())
	}
	md.Ctime = md.Mtime
	md.Atime = md.Mtime
	return md
}
