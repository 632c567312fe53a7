//go:build linux || darwin || freebsd

package probe

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
)

// lstat uses the raw stat structure to capture ownership, the full st_mode
// and all three timestamps.
func lstat(path string) (manifest.FileMetadata, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return manifest.FileMetadata{}, err
	}
	md := fromFileInfo(info)

	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return md, nil
	}

	md.Mode = manifest.FileMode(uint32(st.Mode))
	md.UID = st.Uid
	md.GID = st.Gid
	md.Mtime = seconds(st.Mtim)
	md.Ctime = seconds(st.Ctim)
	md.Atime = seconds(st.Atim)
	return md, nil
}

func seconds(ts unix.Timespec) float64 {
	sec, nsec := ts.Unix()
	return float64(sec) + float64(nsec)/1e9
}
