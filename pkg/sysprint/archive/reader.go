package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// ErrNoContent is returned by Reader.Content when the container holds no
// member for the requested path.
var ErrNoContent = errors.New("file not archived")

// Reader gives access to a container on disk. The manifest is decoded on
// Open; file contents are read lazily on demand.
type Reader struct {
	path     string
	manifest *manifest.Manifest
	raw      []byte
	members  map[string]int64
}

// Open reads the container's index and manifest. It fails with
// types.ErrInvalidArchive if the file is not a readable tar stream and with
// types.ErrMissingManifest if it has no manifest member.
func Open(archivePath string) (*Reader, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidArchive, archivePath, err)
	}
	defer f.Close()

	r := &Reader{path: archivePath, members: make(map[string]int64)}
	err = walk(f, func(hdr *tar.Header, tr *tar.Reader) (bool, error) {
		name := cleanName(hdr.Name)
		switch {
		case name == ManifestName && r.raw == nil:
			data, err := io.ReadAll(tr)
			if err != nil {
				return false, err
			}
			r.raw = data
		case strings.HasPrefix(name, ContentPrefix+"/") && hdr.Typeflag == tar.TypeReg:
			r.members[strings.TrimPrefix(name, ContentPrefix)] = hdr.Size
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidArchive, archivePath, err)
	}

	if r.raw == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrMissingManifest, archivePath)
	}

	m, err := manifest.Decode(r.raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", archivePath, err)
	}
	r.manifest = m
	return r, nil
}

// Path returns the container's location on disk.
func (r *Reader) Path() string {
	return r.path
}

// Manifest returns the decoded manifest.
func (r *Reader) Manifest() *manifest.Manifest {
	return r.manifest
}

// RawManifest returns the manifest member's bytes exactly as stored.
func (r *Reader) RawManifest() []byte {
	return r.raw
}

// Has reports whether the container holds content for path.
func (r *Reader) Has(path string) bool {
	_, ok := r.members[path]
	return ok
}

// Files lists the source paths with archived content, sorted.
func (r *Reader) Files() []string {
	out := make([]string, 0, len(r.members))
	for p := range r.members {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Raw returns the archived bytes for path, or ErrNoContent.
func (r *Reader) Raw(path string) ([]byte, error) {
	if !r.Has(path) {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, path)
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("reopening %s: %w", r.path, err)
	}
	defer f.Close()

	want := MemberName(path)
	var data []byte
	found := false
	err = walk(f, func(hdr *tar.Header, tr *tar.Reader) (bool, error) {
		if cleanName(hdr.Name) != want {
			return true, nil
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			return false, err
		}
		data, found = b, true
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", path, r.path, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, path)
	}
	return data, nil
}

// Content returns the decoded content for path, or ErrNoContent.
func (r *Reader) Content(path string) (*Content, error) {
	data, err := r.Raw(path)
	if err != nil {
		return nil, err
	}
	return Decode(data), nil
}

// walk iterates the tar members of a (possibly compressed) stream until fn
// returns false.
func walk(src io.Reader, fn func(*tar.Header, *tar.Reader) (bool, error)) error {
	stream, closeFn, err := decompressor(src)
	if err != nil {
		return err
	}
	defer closeFn()

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		more, err := fn(hdr, tr)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// cleanName normalizes "./manifest.json" style member names.
func cleanName(name string) string {
	if strings.HasPrefix(name, "./") {
		return path.Clean(name)
	}
	return name
}
