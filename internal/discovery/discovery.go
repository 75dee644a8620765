// Package discovery locates pack roots below a working directory.
package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/packlint/internal/apperr"
)

const (
	dataDir  = "data"
	metaFile = "pack.mcmeta"
)

// Root is a directory holding both a data directory and a pack.mcmeta file.
type Root struct {
	Path string
	Name string
}

// DataDir returns the data directory of the root.
func (r Root) DataDir() string {
	return filepath.Join(r.Path, dataDir)
}

// Contains reports whether abs lies inside the root.
func (r Root) Contains(abs string) bool {
	rel, err := filepath.Rel(r.Path, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Rel returns abs relative to the root in slash form.
func (r Root) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(r.Path, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// FindRoots searches breadth-first from startDir down to maxDepth levels.
// startDir itself is depth 0. Unreadable sub-directories are skipped; failure
// to read startDir wraps apperr.ErrDiscovery.
func FindRoots(startDir string, maxDepth int, logger *slog.Logger) ([]Root, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve %s: %w", startDir, errors.Join(apperr.ErrDiscovery, err))
	}

	type item struct {
		dir   string
		depth int
	}
	seen := make(map[string]struct{})
	var roots []Root
	queue := []item{{dir: start}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur.dir)
		if err != nil {
			if cur.dir == start {
				return nil, fmt.Errorf("discovery: read %s: %w", start, errors.Join(apperr.ErrDiscovery, err))
			}
			logger.Warn("discovery: read failed", slog.String("path", cur.dir), slog.String("error", err.Error()))
			continue
		}

		if isRoot(entries) {
			if _, ok := seen[cur.dir]; !ok {
				seen[cur.dir] = struct{}{}
				roots = append(roots, Root{Path: cur.dir, Name: filepath.Base(cur.dir)})
			}
		}

		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			queue = append(queue, item{dir: filepath.Join(cur.dir, e.Name()), depth: cur.depth + 1})
		}
	}

	slices.SortFunc(roots, func(a, b Root) int { return strings.Compare(a.Path, b.Path) })
	return roots, nil
}

func isRoot(entries []os.DirEntry) bool {
	var hasData, hasMeta bool
	for _, e := range entries {
		switch {
		case e.Name() == dataDir && e.IsDir():
			hasData = true
		case e.Name() == metaFile && e.Type().IsRegular():
			hasMeta = true
		}
	}
	return hasData && hasMeta
}
