// Package archive packs a manifest and selected file contents into a
// compressed tar container and reads them back.
//
// Layout: one "manifest.json" member at the root, written first, followed by
// one "archived_files<absolute path>" member per archived file.
package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ManifestName is the member holding the manifest JSON.
const ManifestName = "manifest.json"

// ContentPrefix is prepended to a file's absolute path to form its member name.
const ContentPrefix = "archived_files"

// MemberName returns the member name for an archived source path.
func MemberName(path string) string {
	return ContentPrefix + path
}

// Compression selects the container's compression layer.
type Compression string

const (
	// Gzip produces .tar.gz containers.
	Gzip Compression = "gzip"

	// Zstd produces .tar.zst containers.
	Zstd Compression = "zstd"
)

// ParseCompression validates a compression name. Empty selects Gzip.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(s))) {
	case "", Gzip, "gz":
		return Gzip, nil
	case Zstd, "zst":
		return Zstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want gzip or zstd)", s)
	}
}

// Extension returns the conventional file suffix.
func (c Compression) Extension() string {
	if c == Zstd {
		return ".tar.zst"
	}
	return ".tar.gz"
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// compressor wraps w according to c.
func compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case Zstd:
		return zstd.NewWriter(w)
	default:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	}
}

// decompressor sniffs r and returns a reader over the tar stream. Plain,
// uncompressed tar streams are passed through.
func decompressor(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(4)

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return br, func() {}, nil
	}
}
