package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/packlint/internal/apperr"
	"github.com/starford/packlint/internal/models"
	"github.com/starford/packlint/internal/validator"
)

// Entry is the cached validation result of one file.
type Entry struct {
	Path         string
	Rel          string
	Resource     models.Symbol
	Checksum     string
	Diagnostics  []models.Diagnostic
	Declarations []models.Declaration
	References   []models.Reference
	UpdatedAt    time.Time
}

// OnAdded validates a new file and records its result.
func (c *Cache) OnAdded(ctx context.Context, path, sum string, doc validator.Document) (*validator.Result, error) {
	res, err := c.update(ctx, path, sum, doc)
	if err == nil {
		c.logger.Debug("index: added", slog.String("path", path))
	}
	return res, err
}

// OnModified re-validates a known file and replaces its result.
func (c *Cache) OnModified(ctx context.Context, path, sum string, doc validator.Document) (*validator.Result, error) {
	res, err := c.update(ctx, path, sum, doc)
	if err == nil {
		c.logger.Debug("index: modified", slog.String("path", path))
	}
	return res, err
}

// update parses outside the lock, then replaces every row of path in one transaction.
// On validator failure the previous entry is left untouched.
func (c *Cache) update(ctx context.Context, path, sum string, doc validator.Document) (*validator.Result, error) {
	res, err := c.validator.Parse(ctx, doc)
	if err != nil {
		if !errors.Is(err, apperr.ErrValidator) {
			err = errors.Join(apperr.ErrValidator, err)
		}
		return nil, fmt.Errorf("index: parse %s: %w", path, err)
	}

	diagsJSON, err := json.Marshal(nonNil(res.Diagnostics))
	if err != nil {
		return nil, fmt.Errorf("index: encode diagnostics: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO files (path, rel, category, id, checksum, diagnostics, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			rel         = excluded.rel,
			category    = excluded.category,
			id          = excluded.id,
			checksum    = excluded.checksum,
			diagnostics = excluded.diagnostics,
			updated_at  = excluded.updated_at
	`, path, doc.Rel, doc.Resource.Category, doc.Resource.ID, sum, string(diagsJSON), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("index: upsert file: %w", err)
	}
	if err := deleteRows(tx, path); err != nil {
		return nil, err
	}

	if len(res.Declarations) > 0 {
		decl, err := tx.Prepare(`INSERT INTO declarations (file, category, id, line, col, visibility) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return nil, fmt.Errorf("index: prepare declaration insert: %w", err)
		}
		defer decl.Close()
		sym, err := tx.Prepare(`INSERT OR IGNORE INTO symbols (category, id) VALUES (?, ?)`)
		if err != nil {
			return nil, fmt.Errorf("index: prepare symbol insert: %w", err)
		}
		defer sym.Close()
		for _, d := range res.Declarations {
			vis, _ := json.Marshal(nonNil(d.Visibility))
			if _, err := decl.Exec(path, d.Category, d.ID, d.Line, d.Column, string(vis)); err != nil {
				return nil, fmt.Errorf("index: insert declaration: %w", err)
			}
			if _, err := sym.Exec(d.Category, d.ID); err != nil {
				return nil, fmt.Errorf("index: insert symbol: %w", err)
			}
		}
	}

	if len(res.References) > 0 {
		ref, err := tx.Prepare(`INSERT INTO refs (file, category, id, line, col) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return nil, fmt.Errorf("index: prepare reference insert: %w", err)
		}
		defer ref.Close()
		for _, r := range res.References {
			if _, err := ref.Exec(path, r.Category, r.ID, r.Line, r.Column); err != nil {
				return nil, fmt.Errorf("index: insert reference: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit: %w", err)
	}
	return res, nil
}

// OnDeleted removes a file and its contributions. Symbols left without any
// declaration are pruned; references from other files are kept.
func (c *Cache) OnDeleted(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteRows(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete file: %w", err)
	}
	if _, err := tx.Exec(pruneSymbolsSQL); err != nil {
		return fmt.Errorf("index: prune symbols: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	c.logger.Debug("index: deleted", slog.String("path", path))
	return nil
}

const pruneSymbolsSQL = `
	DELETE FROM symbols WHERE NOT EXISTS (
		SELECT 1 FROM declarations d WHERE d.category = symbols.category AND d.id = symbols.id
	)`

func deleteRows(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM declarations WHERE file = ?`, path); err != nil {
		return fmt.Errorf("index: delete declarations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM refs WHERE file = ?`, path); err != nil {
		return fmt.Errorf("index: delete references: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
