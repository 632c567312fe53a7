package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
)

// PackResult summarizes a written container.
type PackResult struct {
	Path          string
	ArchivedFiles int
	ArchivedBytes int64
	Compression   Compression
}

// staged is a file that passed the pre-write check.
type staged struct {
	path string
	info os.FileInfo
}

// Pack writes the container to w: the manifest first, then the content of
// every staged path.
//
// Staged paths that can no longer be read as regular files are dropped
// before the manifest is encoded: their archived flag is cleared and an
// error is appended to m.Errors, so the written manifest never claims
// content the container does not hold.
func Pack(w io.Writer, m *manifest.Manifest, paths []string, c Compression) (*PackResult, error) {
	logger := logging.Get("archive")

	ready := stage(m, paths)

	data, err := manifest.Encode(m)
	if err != nil {
		return nil, err
	}

	zw, err := compressor(w, c)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}
	tw := tar.NewWriter(zw)

	created := m.Metadata.Created.Time
	if created.IsZero() {
		created = time.Now()
	}
	hdr := &tar.Header{
		Name:     ManifestName,
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  created,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("writing manifest header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	res := &PackResult{Compression: c}
	for _, s := range ready {
		n, err := writeMember(tw, s)
		if err != nil {
			return nil, fmt.Errorf("archiving %s: %w", s.path, err)
		}
		res.ArchivedFiles++
		res.ArchivedBytes += n
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing compressor: %w", err)
	}

	logger.Debug("container packed", "files", res.ArchivedFiles, "bytes", res.ArchivedBytes)
	return res, nil
}

// stage checks every path and clears the archived flag of those that
// cannot be packed.
func stage(m *manifest.Manifest, paths []string) []staged {
	logger := logging.Get("archive")
	ready := make([]staged, 0, len(paths))

	drop := func(p string, err error) {
		logger.Error("error archiving file", "path", p, "error", err)
		m.Errors = append(m.Errors, fmt.Sprintf("Archive failed for %s: %v", p, err))
		if e, ok := m.Files[p]; ok {
			e.Archived = false
			m.Files[p] = e
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			drop(p, err)
			continue
		}
		if !info.Mode().IsRegular() {
			drop(p, errors.New("not a regular file"))
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			drop(p, err)
			continue
		}
		_ = f.Close()
		ready = append(ready, staged{path: p, info: info})
	}
	return ready
}

// writeMember streams one file. The header size comes from the staged
// stat; a file that shrank since is zero-padded and one that grew is
// truncated, keeping the tar stream valid.
func writeMember(tw *tar.Writer, s staged) (int64, error) {
	hdr, err := tar.FileInfoHeader(s.info, "")
	if err != nil {
		return 0, err
	}
	hdr.Name = MemberName(s.path)
	hdr.Format = tar.FormatPAX

	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return 0, padMember(tw, hdr.Size)
	}
	defer f.Close()

	n, err := io.CopyN(tw, f, hdr.Size)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	if n < hdr.Size {
		logging.Get("archive").Warn("file shrank while archiving", "path", s.path, "expected", hdr.Size, "read", n)
		if err := padMember(tw, hdr.Size-n); err != nil {
			return n, err
		}
	}
	return hdr.Size, nil
}

func padMember(tw *tar.Writer, n int64) error {
	_, err := io.CopyN(tw, zeroReader{}, n)
	return err
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// Create writes the container to path atomically via a temporary file.
func Create(path string, m *manifest.Manifest, paths []string, c Compression) (*PackResult, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sysprint-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	res, err := Pack(tmp, m, paths, c)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return nil, fmt.Errorf("renaming temp file: %w", err)
	}

	res.Path = path
	logging.Get("archive").Info("project archive created", "path", path, "archived", res.ArchivedFiles)
	return res, nil
}
