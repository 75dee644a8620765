// Package walker enumerates the files of a pack root concurrently.
package walker

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// VisitFunc receives an accepted file. abs is the absolute path, rel is
// slash-separated and relative to the walk root.
type VisitFunc func(ctx context.Context, abs, rel string, info fs.FileInfo) error

// IncludeFunc decides whether a directory is descended into or a file is visited.
// isDir is true for directories.
type IncludeFunc func(rel string, isDir bool) bool

// Options tunes a walk.
type Options struct {
	// Limit bounds concurrently running directory and visit tasks. Zero means NumCPU.
	Limit  int
	Logger *slog.Logger
}

// Walk enumerates start (which must lie inside root) recursively. Directories
// rejected by include are pruned; files accepted by include are visited
// exactly once, concurrently. Unreadable directories are skipped. The first
// visit error cancels the walk and is returned.
func Walk(ctx context.Context, root, start string, include IncludeFunc, visit VisitFunc, opts Options) error {
	if opts.Limit <= 0 {
		opts.Limit = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if include == nil {
		include = func(string, bool) bool { return true }
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Limit)
	w := &walk{g: g, root: root, include: include, visit: visit, logger: opts.Logger}

	g.Go(func() error { return w.dir(gctx, start) })
	return g.Wait()
}

type walk struct {
	g       *errgroup.Group
	root    string
	include IncludeFunc
	visit   VisitFunc
	logger  *slog.Logger
}

func (w *walk) dir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn("walk: read dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		return nil
	}

	for _, e := range entries {
		abs := filepath.Join(dir, e.Name())
		rel, err := filepath.Rel(w.root, abs)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		switch {
		case e.IsDir():
			if !w.include(rel, true) {
				continue
			}
			// Run inline when the group is saturated so parents never block on children.
			if !w.g.TryGo(func() error { return w.dir(ctx, abs) }) {
				if err := w.dir(ctx, abs); err != nil {
					return err
				}
			}
		case e.Type().IsRegular():
			if !w.include(rel, false) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if !w.g.TryGo(func() error { return w.visit(ctx, abs, rel, info) }) {
				if err := w.visit(ctx, abs, rel, info); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
