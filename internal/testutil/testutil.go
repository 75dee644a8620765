// Package testutil provides shared test helpers for building packs and caches.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/packlint/internal/index"
	"github.com/starford/packlint/internal/storage"
	"github.com/starford/packlint/internal/validator"
)

// TestCache creates an in-memory validation cache that is closed on cleanup.
func TestCache(t *testing.T, v validator.Validator) *index.Cache {
	t.Helper()
	c, err := index.Open(v)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestState opens the state directory dir/.cache.
func TestState(t *testing.T, dir string) *storage.FS {
	t.Helper()
	s, err := storage.NewFS(filepath.Join(dir, ".cache"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// WritePack creates a pack root at dir with a pack.mcmeta and the given
// root-relative files.
func WritePack(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	WriteFile(t, dir, "pack.mcmeta", `{"pack":{"pack_format":48,"description":""}}`)
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		WriteFile(t, dir, rel, content)
	}
}
