// Package index provides the SQLite-backed validation cache: per-file results
// plus a cross-reference index of declared and referenced symbols.
package index

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/packlint/internal/validator"
)

// schemaVersion is stored in PRAGMA user_version and checked when loading snapshots.
const schemaVersion = 1

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	path        TEXT PRIMARY KEY,
	rel         TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	id          TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	diagnostics TEXT NOT NULL DEFAULT '[]',
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS declarations (
	file       TEXT NOT NULL,
	category   TEXT NOT NULL,
	id         TEXT NOT NULL,
	line       INTEGER NOT NULL DEFAULT 0,
	col        INTEGER NOT NULL DEFAULT 0,
	visibility TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS refs (
	file     TEXT NOT NULL,
	category TEXT NOT NULL,
	id       TEXT NOT NULL,
	line     INTEGER NOT NULL DEFAULT 0,
	col      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS symbols (
	category TEXT NOT NULL,
	id       TEXT NOT NULL,
	PRIMARY KEY (category, id)
);

CREATE INDEX IF NOT EXISTS idx_declarations_file ON declarations(file);
CREATE INDEX IF NOT EXISTS idx_declarations_symbol ON declarations(category, id);
CREATE INDEX IF NOT EXISTS idx_refs_file ON refs(file);
CREATE INDEX IF NOT EXISTS idx_refs_symbol ON refs(category, id);
`

// Default garbage collection tuning.
const (
	DefaultPressurePerFile = 17
	DefaultGCThreshold     = 500
)

// Cache is the validation cache. It lives in an in-memory database for the
// duration of a run and is persisted with Save.
type Cache struct {
	mu        sync.Mutex
	conn      *sql.DB
	validator validator.Validator
	logger    *slog.Logger

	pressure  int
	threshold int
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithGCThreshold sets the pressure at which a trim runs.
func WithGCThreshold(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// Open creates an empty in-memory cache backed by v.
func Open(v validator.Validator, opts ...Option) (*Cache, error) {
	conn, err := sql.Open("sqlite3", ":memory:?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	// One connection keeps the in-memory database alive and serializes access.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: set schema version: %w", err)
	}

	c := &Cache{
		conn:      conn,
		validator: v,
		logger:    slog.Default(),
		threshold: DefaultGCThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.conn.Close()
}
