// Package checksum fingerprints pack files and tracks fingerprints across runs.
package checksum

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/starford/packlint/internal/apperr"
)

// chunkSize is the read buffer used when streaming files through the hash.
const chunkSize = 128 * 1024

// Sum returns the hex-encoded SHA-1 digest of data.
func Sum(data []byte) string {
	h := sha1.Sum(data)
	return hex.EncodeToString(h[:])
}

// File streams the file at path through SHA-1 and returns the lowercase hex digest.
// Read failures wrap apperr.ErrIO.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum: open %s: %w", path, errors.Join(apperr.ErrIO, err))
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, chunkSize)); err != nil {
		return "", fmt.Errorf("checksum: read %s: %w", path, errors.Join(apperr.ErrIO, err))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
