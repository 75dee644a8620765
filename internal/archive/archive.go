// Package archive saves and restores the state directory as keyed tar.zst blobs.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const ext = ".tar.zst"

// Store keeps archives in a directory, one file per key.
type Store struct {
	Dir string
}

// Key builds "<prefix>-<version>-<ref>-<unix millis>".
func Key(prefix string, version int, ref string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s-%d", prefix, version, sanitize(ref), now.UnixMilli())
}

// RestoreKeys returns the fallback prefixes tried when no exact key exists:
// same ref first, then any ref of the same version.
func RestoreKeys(prefix string, version int, ref string) []string {
	return []string{
		fmt.Sprintf("%s-%d-%s-", prefix, version, sanitize(ref)),
		fmt.Sprintf("%s-%d-", prefix, version),
	}
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == ' ' {
			return '_'
		}
		return r
	}, s)
}

// Save archives the regular files under srcDir as key. The archive appears atomically.
func (s *Store) Save(ctx context.Context, key, srcDir string) (err error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("archive: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".packlint-archive-*")
	if err != nil {
		return fmt.Errorf("archive: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("archive: zstd writer: %w", err)
	}
	tw := tar.NewWriter(enc)

	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() && sameDir(p, s.Dir) {
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		return addFile(tw, p, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		enc.Close()
		return fmt.Errorf("archive: add files: %w", walkErr)
	}
	if err := tw.Close(); err != nil {
		enc.Close()
		return fmt.Errorf("archive: close tar: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("archive: close zstd: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("archive: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("archive: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return fmt.Errorf("archive: rename: %w", err)
	}
	return nil
}

func sameDir(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

func addFile(tw *tar.Writer, abs, name string) error {
	f, err := os.Open(abs)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Restore extracts the archive stored under key into dstDir. When key does
// not exist, the most recent archive matching one of the prefixes (tried in
// order) is used. It returns the restored key, or "" when nothing matched.
func (s *Store) Restore(ctx context.Context, dstDir, key string, prefixes ...string) (string, error) {
	found, err := s.lookup(key, prefixes)
	if err != nil || found == "" {
		return "", err
	}

	f, err := os.Open(s.path(found))
	if err != nil {
		return "", fmt.Errorf("archive: open %s: %w", found, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("archive: zstd reader: %w", err)
	}
	defer dec.Close()

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("archive: mkdir: %w", err)
	}
	tr := tar.NewReader(dec)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("archive: read %s: %w", found, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		target, err := safeJoin(dstDir, hdr.Name)
		if err != nil {
			return "", err
		}
		if err := extract(tr, target); err != nil {
			return "", fmt.Errorf("archive: extract %s: %w", hdr.Name, err)
		}
	}
	return found, nil
}

func extract(r io.Reader, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func safeJoin(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive: entry escapes destination: %s", name)
	}
	return filepath.Join(root, cleaned), nil
}

// lookup resolves the exact key or the newest key matching a prefix.
func (s *Store) lookup(key string, prefixes []string) (string, error) {
	if _, err := os.Stat(s.path(key)); err == nil {
		return key, nil
	}
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("archive: list: %w", err)
	}
	for _, prefix := range prefixes {
		var best string
		var bestStamp int64 = -1
		for _, e := range entries {
			name := e.Name()
			if !e.Type().IsRegular() || !strings.HasSuffix(name, ext) {
				continue
			}
			k := strings.TrimSuffix(name, ext)
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			if stamp := keyStamp(k); stamp > bestStamp {
				best, bestStamp = k, stamp
			}
		}
		if best != "" {
			return best, nil
		}
	}
	return "", nil
}

// keyStamp extracts the trailing unix-millis component of a key.
func keyStamp(key string) int64 {
	i := strings.LastIndexByte(key, '-')
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s *Store) path(key string) string {
	return filepath.Join(s.Dir, key+ext)
}
