package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/packlint/internal/models"
)

// Files returns every cached file path in sorted order.
func (c *Cache) Files() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return queryStrings(c.conn, `SELECT path FROM files ORDER BY path`)
}

// Checksum returns the checksum recorded for path, or "" if the file is not cached.
func (c *Cache) Checksum(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var cs string
	err := c.conn.QueryRow(`SELECT checksum FROM files WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// Entry returns the cached result of path, or nil if it is not cached.
func (c *Cache) Entry(path string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := Entry{Path: path}
	var diags string
	err := c.conn.QueryRow(`
		SELECT rel, category, id, checksum, diagnostics, updated_at FROM files WHERE path = ?
	`, path).Scan(&e.Rel, &e.Resource.Category, &e.Resource.ID, &e.Checksum, &diags, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: entry: %w", err)
	}
	if err := json.Unmarshal([]byte(diags), &e.Diagnostics); err != nil {
		return nil, fmt.Errorf("index: decode diagnostics: %w", err)
	}
	if e.Declarations, err = c.declarations(path); err != nil {
		return nil, err
	}
	if e.References, err = c.references(path); err != nil {
		return nil, err
	}
	return &e, nil
}

// Declarations returns the declarations of path ordered by position.
func (c *Cache) Declarations(path string) ([]models.Declaration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declarations(path)
}

func (c *Cache) declarations(path string) ([]models.Declaration, error) {
	rows, err := c.conn.Query(`
		SELECT category, id, line, col, visibility FROM declarations
		WHERE file = ? ORDER BY line, col, category, id
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: declarations: %w", err)
	}
	defer rows.Close()

	var out []models.Declaration
	for rows.Next() {
		var d models.Declaration
		var vis string
		if err := rows.Scan(&d.Category, &d.ID, &d.Line, &d.Column, &vis); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vis), &d.Visibility); err != nil {
			return nil, fmt.Errorf("index: decode visibility: %w", err)
		}
		if len(d.Visibility) == 0 {
			d.Visibility = nil
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *Cache) references(path string) ([]models.Reference, error) {
	rows, err := c.conn.Query(`
		SELECT category, id, line, col FROM refs
		WHERE file = ? ORDER BY line, col, category, id
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: references: %w", err)
	}
	defer rows.Close()

	var out []models.Reference
	for rows.Next() {
		var r models.Reference
		if err := rows.Scan(&r.Category, &r.ID, &r.Line, &r.Column); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeclaredBy returns the files declaring sym.
func (c *Cache) DeclaredBy(sym models.Symbol) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return queryStrings(c.conn, `
		SELECT DISTINCT file FROM declarations WHERE category = ? AND id = ? ORDER BY file
	`, sym.Category, sym.ID)
}

// IsDeclared reports whether any file declares sym.
func (c *Cache) IsDeclared(sym models.Symbol) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	err := c.conn.QueryRow(`SELECT count(*) FROM symbols WHERE category = ? AND id = ?`, sym.Category, sym.ID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("index: symbol lookup: %w", err)
	}
	return n > 0, nil
}

// Referrers returns the distinct files referencing any of syms, sorted.
func (c *Cache) Referrers(syms []models.Symbol) ([]string, error) {
	if len(syms) == 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		conds []string
		args  []any
	)
	for _, s := range syms {
		conds = append(conds, "(category = ? AND id = ?)")
		args = append(args, s.Category, s.ID)
	}
	var out []string
	// Chunked to stay under the SQLite host parameter limit.
	const chunk = 400
	seen := make(map[string]struct{})
	for i := 0; i < len(conds); i += chunk {
		end := min(i+chunk, len(conds))
		q := `SELECT DISTINCT file FROM refs WHERE ` + strings.Join(conds[i:end], " OR ")
		files, err := queryStrings(c.conn, q, args[2*i:2*end]...)
		if err != nil {
			return nil, fmt.Errorf("index: referrers: %w", err)
		}
		for _, f := range files {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				out = append(out, f)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// Unresolved returns the references of path whose symbol nobody declares.
func (c *Cache) Unresolved(path string) ([]models.Reference, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, err := c.conn.Query(`
		SELECT r.category, r.id, r.line, r.col FROM refs r
		WHERE r.file = ? AND NOT EXISTS (
			SELECT 1 FROM symbols s WHERE s.category = r.category AND s.id = r.id
		)
		ORDER BY r.line, r.col, r.category, r.id
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: unresolved: %w", err)
	}
	defer rows.Close()

	var out []models.Reference
	for rows.Next() {
		var r models.Reference
		if err := rows.Scan(&r.Category, &r.ID, &r.Line, &r.Column); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the number of files, declarations, references and symbols.
func (c *Cache) Counts() (files, decls, refs, syms int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.conn.QueryRow(`
		SELECT (SELECT count(*) FROM files), (SELECT count(*) FROM declarations),
		       (SELECT count(*) FROM refs), (SELECT count(*) FROM symbols)
	`).Scan(&files, &decls, &refs, &syms)
	if err != nil {
		err = fmt.Errorf("index: counts: %w", err)
	}
	return
}

func queryStrings(conn *sql.DB, q string, args ...any) ([]string, error) {
	rows, err := conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
