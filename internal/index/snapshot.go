package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/starford/packlint/internal/apperr"
)

var tables = []struct {
	name string
	cols string
}{
	{"files", "path, rel, category, id, checksum, diagnostics, updated_at"},
	{"declarations", "file, category, id, line, col, visibility"},
	{"refs", "file, category, id, line, col"},
	{"symbols", "category, id"},
}

// Load replaces the cache contents with the snapshot at path. A missing
// snapshot wraps fs.ErrNotExist; an unreadable one or one written with another
// schema version wraps apperr.ErrCacheCorrupt and leaves the cache unchanged.
func (c *Cache) Load(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("index: load %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("index: load %s: is a directory: %w", path, apperr.ErrCacheCorrupt)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("index: acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS snap`, path); err != nil {
		return fmt.Errorf("index: attach %s: %w", path, errors.Join(apperr.ErrCacheCorrupt, err))
	}
	defer conn.ExecContext(context.Background(), `DETACH DATABASE snap`) //nolint:errcheck

	var version int
	if err := conn.QueryRowContext(ctx, `PRAGMA snap.user_version`).Scan(&version); err != nil {
		return fmt.Errorf("index: read snapshot version: %w", errors.Join(apperr.ErrCacheCorrupt, err))
	}
	if version != schemaVersion {
		return fmt.Errorf("index: snapshot version %d, want %d: %w", version, schemaVersion, apperr.ErrCacheCorrupt)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM main.`+t.name); err != nil {
			return fmt.Errorf("index: clear %s: %w", t.name, err)
		}
		q := fmt.Sprintf(`INSERT INTO main.%s (%s) SELECT %s FROM snap.%s`, t.name, t.cols, t.cols, t.name)
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("index: copy %s: %w", t.name, errors.Join(apperr.ErrCacheCorrupt, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	c.pressure = 0
	return nil
}

// Save writes the cache to path atomically: VACUUM INTO a temp file, then rename.
func (c *Cache) Save(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("index: remove stale temp: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.conn.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("index: vacuum into: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("index: rename: %w", err)
	}
	return nil
}

// Reset empties every table.
func (c *Cache) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, t := range tables {
		if _, err := tx.Exec(`DELETE FROM ` + t.name); err != nil {
			return fmt.Errorf("index: reset %s: %w", t.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	c.pressure = 0
	return nil
}
