package lint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/starford/packlint/internal/checksum"
	"github.com/starford/packlint/internal/report"
)

// init loads persisted state and decides whether it must be discarded.
func (r *run) init(ctx context.Context) error {
	invalidate := r.rc.Options.Regenerate
	if invalidate {
		r.log.Info("init: regenerate requested")
	}

	baseline := map[string]string{}
	if err := r.rc.State.ReadJSON(ChecksumFile, &baseline); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.log.Warn("init: checksum store unreadable", slog.String("error", err.Error()))
		baseline = map[string]string{}
		invalidate = true
	}

	cached := report.Results{}
	if err := r.rc.State.ReadJSON(report.ResultsFile, &cached); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.log.Warn("init: lint results unreadable", slog.String("error", err.Error()))
		cached = report.Results{}
		invalidate = true
	}
	r.cached = cached

	if err := r.rc.Cache.Reset(); err != nil {
		return fmt.Errorf("lint: reset cache: %w", err)
	}
	snap, err := r.rc.State.Abs(SnapshotFile)
	if err != nil {
		return fmt.Errorf("lint: resolve snapshot: %w", err)
	}
	if err := r.rc.Cache.Load(ctx, snap); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.log.Warn("init: validation cache unreadable", slog.String("error", err.Error()))
		invalidate = true
	}

	r.store = checksum.NewStore(baseline)
	if r.configChanged() {
		r.log.Info("init: configuration changed")
		invalidate = true
	}
	if invalidate {
		if err := r.invalidate(); err != nil {
			return err
		}
	}
	if r.configKey != "" {
		if r.configSum != "" {
			r.store.MarkUpdated(r.configKey, r.configSum)
		} else {
			r.store.MarkDeleted(r.configKey)
		}
	}
	return nil
}

// configChanged fingerprints the configuration file and compares it with the
// value recorded by the previous run.
func (r *run) configChanged() bool {
	if r.rc.ConfigPath == "" {
		return false
	}
	abs, err := filepath.Abs(r.rc.ConfigPath)
	if err != nil {
		return false
	}
	r.configKey = r.rc.key(abs)
	old, known := r.store.Get(r.configKey)

	sum, err := checksum.File(abs)
	if err != nil {
		return known
	}
	r.configSum = sum
	if !known {
		return r.store.Len() > 0
	}
	return old != sum
}

// invalidate discards the checksum store, validation cache and lint results.
func (r *run) invalidate() error {
	r.log.Info("init: state invalidated")
	r.store.Invalidate()
	if err := r.rc.Cache.Reset(); err != nil {
		return fmt.Errorf("lint: reset cache: %w", err)
	}
	r.cached = report.Results{}
	return nil
}

// reconcile classifies every cached file as deleted, modified or unchanged,
// then drops checksum entries of files that vanished without a cache entry.
func (r *run) reconcile(ctx context.Context) error {
	files, err := r.rc.Cache.Files()
	if err != nil {
		return fmt.Errorf("lint: list cached files: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.rc.Options.Concurrency)
	for _, key := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return r.reconcileFile(key)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	inCache := make(map[string]struct{}, len(files))
	for _, f := range files {
		inCache[f] = struct{}{}
	}
	for _, p := range r.store.Paths() {
		if _, ok := inCache[p]; ok || p == r.configKey {
			continue
		}
		if _, err := os.Stat(r.rc.abs(p)); errors.Is(err, fs.ErrNotExist) {
			r.store.MarkDeleted(p)
			r.mu.Lock()
			delete(r.cached, p)
			r.mu.Unlock()
			r.log.Debug("reconcile: checksum dropped", slog.String("path", p))
		}
	}
	return nil
}

func (r *run) reconcileFile(key string) error {
	abs := r.rc.abs(key)
	_, rel, ok := r.locate(abs)
	if !ok || !r.accept(rel) {
		return r.drop(key)
	}
	hash, err := checksum.File(abs)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn("reconcile: read failed", slog.String("path", key), slog.String("error", err.Error()))
		}
		return r.drop(key)
	}

	state := stateUnchanged
	if r.store.IsChanged(key, hash, true) {
		state = stateModified
	}
	r.mu.Lock()
	r.status[key] = state
	r.mu.Unlock()
	return nil
}
