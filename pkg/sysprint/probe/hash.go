// Package probe collects per-path facts for the scanner: content hashes and
// attribute snapshots.
package probe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// DefaultChunkSize is the read size used when hashing.
const DefaultChunkSize = 4096

// Hasher computes SHA-256 digests by streaming files in fixed-size chunks.
type Hasher struct {
	chunkSize int
}

// NewHasher returns a Hasher reading chunkSize bytes at a time. Values <= 0
// select DefaultChunkSize.
func NewHasher(chunkSize int) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Hasher{chunkSize: chunkSize}
}

// ChunkSize returns the configured read size.
func (h *Hasher) ChunkSize() int {
	return h.chunkSize
}

// Sum returns the hex digest of the file at path. On failure it returns an
// empty string and an error matching types.ErrHash.
func (h *Hasher) Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", types.ErrHash, path, err)
	}
	defer f.Close()

	sum, err := h.SumReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", types.ErrHash, path, err)
	}
	return sum, nil
}

// SumReader hashes everything readable from r.
func (h *Hasher) SumReader(r io.Reader) (string, error) {
	digest := sha256.New()
	buf := make([]byte, h.chunkSize)
	if _, err := io.CopyBuffer(digest, onlyReader{r}, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// onlyReader hides WriterTo so io.CopyBuffer honors the chunk size.
type onlyReader struct {
	io.Reader
}
