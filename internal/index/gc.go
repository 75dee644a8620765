package index

import (
	"fmt"
	"log/slog"
)

// Trim removes declaration and reference rows whose file is gone, then
// symbols without declarations. It returns the number of removed rows.
func (c *Cache) Trim() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trim()
}

func (c *Cache) trim() (int64, error) {
	tx, err := c.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	for _, q := range []string{
		`DELETE FROM declarations WHERE file NOT IN (SELECT path FROM files)`,
		`DELETE FROM refs WHERE file NOT IN (SELECT path FROM files)`,
		pruneSymbolsSQL,
	} {
		res, err := tx.Exec(q)
		if err != nil {
			return 0, fmt.Errorf("index: trim: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit: %w", err)
	}
	c.pressure = 0
	if total > 0 {
		c.logger.Debug("index: trimmed", slog.Int64("rows", total))
	}
	return total, nil
}

// AddPressure accumulates n units of garbage pressure. When the threshold is
// reached a trim runs, the counter resets and true is returned.
func (c *Cache) AddPressure(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pressure += n
	if c.pressure < c.threshold {
		return false
	}
	if _, err := c.trim(); err != nil {
		c.logger.Warn("index: gc failed", slog.String("error", err.Error()))
		c.pressure = 0
	}
	return true
}

// Collect forces a trim regardless of pressure.
func (c *Cache) Collect() error {
	_, err := c.Trim()
	return err
}

// Pressure returns the current garbage pressure.
func (c *Cache) Pressure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pressure
}
