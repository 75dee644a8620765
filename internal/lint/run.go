package lint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/packlint/internal/apperr"
	"github.com/starford/packlint/internal/checksum"
	"github.com/starford/packlint/internal/discovery"
	"github.com/starford/packlint/internal/models"
	"github.com/starford/packlint/internal/report"
	"github.com/starford/packlint/internal/visibility"
)

type fileState int

const (
	stateUnchanged fileState = iota
	stateModified
)

// freshFile is a file whose result is rebuilt in this run.
type freshFile struct {
	title    string
	rootName string
	rel      string
	diags    []models.Diagnostic
	// reeval marks a dependent rebuilt from the cache without the validator.
	reeval bool
}

type run struct {
	rc      *RunContext
	log     *slog.Logger
	filter  *Filter
	matcher *visibility.Matcher
	store   *checksum.Store
	rep     *report.Report
	roots   []discovery.Root

	configKey string
	configSum string

	mu      sync.Mutex
	cached  report.Results
	status  map[string]fileState
	seen    map[string]struct{}
	fresh   map[string]freshFile
	touched map[models.Symbol]struct{}

	defineMu  sync.Mutex
	validated atomic.Int64
}

// Run performs one incremental lint run:
// init, discover roots, reconcile the cache, enumerate and validate changed
// files, merge the report and persist state. The returned report is complete
// even when it contains failures; deciding the exit status is up to the caller.
func Run(ctx context.Context, rc *RunContext) (*report.Report, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	filter, err := NewFilter(rc.Options.Include, rc.Options.Exclude)
	if err != nil {
		return nil, err
	}
	r := &run{
		rc:      rc,
		log:     rc.Logger,
		filter:  filter,
		matcher: visibility.NewMatcher(rc.Options.OutputDefine, rc.Options.DefaultVisibility),
		rep:     report.New(),
		cached:  report.Results{},
		status:  make(map[string]fileState),
		seen:    make(map[string]struct{}),
		fresh:   make(map[string]freshFile),
		touched: make(map[models.Symbol]struct{}),
	}

	start := time.Now()
	r.log.Info("lint: run started", slog.String("dir", rc.WorkDir))

	if err := r.init(ctx); err != nil {
		return nil, err
	}

	roots, err := discovery.FindRoots(rc.WorkDir, rc.Options.DetectionDepth, r.log)
	if err != nil {
		return nil, err
	}
	r.roots = roots
	for _, root := range roots {
		r.log.Info("lint: root found", slog.String("path", root.Path))
	}

	if err := r.reconcile(ctx); err != nil {
		return nil, err
	}
	if err := r.enumerate(ctx); err != nil {
		return nil, err
	}
	if err := r.dependents(); err != nil {
		return nil, err
	}
	if err := r.merge(); err != nil {
		return nil, err
	}
	if err := r.persist(ctx); err != nil {
		return nil, err
	}

	fc := r.rep.FailCount()
	r.log.Info("lint: run finished",
		slog.Int("files", len(r.rep.Paths())),
		slog.Int64("validated", r.validated.Load()),
		slog.Int("errors", fc.Error),
		slog.Int("warnings", fc.Warning),
		slog.Duration("took", time.Since(start)))
	return r.rep, nil
}

// locate finds the innermost root containing abs and the root-relative path.
func (r *run) locate(abs string) (discovery.Root, string, bool) {
	var best discovery.Root
	found := false
	for _, root := range r.roots {
		if root.Contains(abs) && len(root.Path) > len(best.Path) {
			best, found = root, true
		}
	}
	if !found {
		return discovery.Root{}, "", false
	}
	rel, err := best.Rel(abs)
	if err != nil {
		return discovery.Root{}, "", false
	}
	return best, rel, true
}

// accept reports whether the root-relative path is a lintable resource.
func (r *run) accept(rel string) bool {
	if !r.rc.Validator.Supports(rel) || !r.filter.Match(rel) {
		return false
	}
	_, ok := models.ResourceFromRel(rel)
	return ok
}

// touch records symbols whose declaring files changed. Callers hold r.mu.
func (r *run) touch(decls []models.Declaration) {
	for _, d := range decls {
		r.touched[d.Symbol] = struct{}{}
	}
}

// drop removes a file from every cache.
func (r *run) drop(key string) error {
	decls, err := r.rc.Cache.Declarations(key)
	if err != nil {
		return fmt.Errorf("lint: read declarations of %s: %w", key, err)
	}
	if err := r.rc.Cache.OnDeleted(key); err != nil {
		return fmt.Errorf("lint: delete %s: %w", key, err)
	}
	r.store.MarkDeleted(key)

	r.mu.Lock()
	delete(r.cached, key)
	r.touch(decls)
	r.mu.Unlock()

	r.log.Debug("reconcile: file deleted", slog.String("path", key))
	return nil
}

// stagedSuffix marks state files written by a run but not yet committed.
const stagedSuffix = ".next"

// stateFiles lists the persisted state in commit order. Checksums go last so
// a crash leaves them behind the caches, never ahead.
var stateFiles = []string{SnapshotFile, report.ResultsFile, ChecksumFile}

// persist stages every state file, then commits them by rename. A staging
// failure leaves the previous state untouched. A commit failure removes the
// state so the next run starts cold.
func (r *run) persist(ctx context.Context) error {
	if err := r.stage(ctx); err != nil {
		r.discardStaged()
		return err
	}
	for _, name := range stateFiles {
		if err := r.rc.State.Rename(name+stagedSuffix, name); err != nil {
			r.log.Error("lint: commit failed, dropping state", slog.String("file", name), slog.String("error", err.Error()))
			r.discardStaged()
			for _, f := range stateFiles {
				if derr := r.rc.State.Delete(f); derr != nil {
					r.log.Warn("lint: drop state failed", slog.String("file", f), slog.String("error", derr.Error()))
				}
			}
			return fmt.Errorf("lint: commit %s: %w", name, persistErr(err))
		}
	}
	return nil
}

func (r *run) stage(ctx context.Context) error {
	snap, err := r.rc.State.Abs(SnapshotFile + stagedSuffix)
	if err != nil {
		return fmt.Errorf("lint: resolve snapshot: %w", errors.Join(apperr.ErrPersist, err))
	}
	if err := r.rc.Cache.Save(ctx, snap); err != nil {
		return fmt.Errorf("lint: save snapshot: %w", errors.Join(apperr.ErrPersist, err))
	}

	results := report.Results{}
	for k, v := range r.rep.Results() {
		if !v.Skipped {
			results[k] = v
		}
	}
	if err := r.rc.State.WriteJSON(report.ResultsFile+stagedSuffix, results); err != nil {
		return fmt.Errorf("lint: save results: %w", persistErr(err))
	}
	if err := r.rc.State.WriteJSON(ChecksumFile+stagedSuffix, r.store.Flush()); err != nil {
		return fmt.Errorf("lint: save checksums: %w", persistErr(err))
	}
	return nil
}

func (r *run) discardStaged() {
	for _, name := range stateFiles {
		if err := r.rc.State.Delete(name + stagedSuffix); err != nil {
			r.log.Warn("lint: remove staged state failed", slog.String("file", name), slog.String("error", err.Error()))
		}
	}
}

func persistErr(err error) error {
	if errors.Is(err, apperr.ErrPersist) {
		return err
	}
	return errors.Join(apperr.ErrPersist, err)
}

