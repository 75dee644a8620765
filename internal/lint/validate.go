package lint

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/starford/packlint/internal/checksum"
	"github.com/starford/packlint/internal/discovery"
	"github.com/starford/packlint/internal/models"
	"github.com/starford/packlint/internal/report"
	"github.com/starford/packlint/internal/validator"
	"github.com/starford/packlint/internal/walker"
)

// enumerate walks the data directory of every root, reusing cached results
// for unchanged files and validating the rest.
func (r *run) enumerate(ctx context.Context) error {
	include := func(rel string, isDir bool) bool {
		if isDir {
			return r.filter.Descend(rel)
		}
		return r.accept(rel)
	}
	for _, root := range r.roots {
		visit := func(ctx context.Context, abs, rel string, _ fs.FileInfo) error {
			return r.visit(ctx, root, abs, rel)
		}
		opts := walker.Options{Limit: r.rc.Options.Concurrency, Logger: r.log}
		if err := walker.Walk(ctx, root.Path, root.DataDir(), include, visit, opts); err != nil {
			return fmt.Errorf("lint: walk %s: %w", root.Path, err)
		}
	}

	// Cached files the walk never reached (pruned directories) are gone for this run.
	r.mu.Lock()
	var unreached []string
	for key := range r.status {
		if _, ok := r.seen[key]; !ok {
			unreached = append(unreached, key)
		}
	}
	r.mu.Unlock()
	for _, key := range unreached {
		if err := r.drop(key); err != nil {
			return err
		}
	}

	if _, err := r.rc.Cache.Trim(); err != nil {
		return fmt.Errorf("lint: trim cache: %w", err)
	}
	return nil
}

func (r *run) visit(ctx context.Context, root discovery.Root, abs, rel string) error {
	key := r.rc.key(abs)

	r.mu.Lock()
	if _, dup := r.seen[key]; dup {
		r.mu.Unlock()
		return nil
	}
	r.seen[key] = struct{}{}
	state, inCache := r.status[key]
	prev, hasPrev := r.cached[key]
	r.mu.Unlock()

	if inCache && state == stateUnchanged && hasPrev {
		r.rep.Add(key, prev)
		return r.define(key, root.Name, rel)
	}

	res, _ := models.ResourceFromRel(rel)
	title := report.Title(res.ID, root.Name, rel)

	content, err := os.ReadFile(abs)
	if err != nil {
		r.log.Warn("lint: read failed", slog.String("path", key), slog.String("error", err.Error()))
		return nil
	}
	sum := checksum.Sum(content)

	var prevDecls []models.Declaration
	if inCache {
		if prevDecls, err = r.rc.Cache.Declarations(key); err != nil {
			return fmt.Errorf("lint: read declarations of %s: %w", key, err)
		}
	}

	doc := validator.Document{Path: abs, Rel: rel, Resource: res, Content: content}
	var out *validator.Result
	if inCache {
		out, err = r.rc.Cache.OnModified(ctx, key, sum, doc)
	} else {
		out, err = r.rc.Cache.OnAdded(ctx, key, sum, doc)
	}
	r.validated.Add(1)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Error("lint: validator failed", slog.String("path", key), slog.String("error", err.Error()))
		r.rep.Add(key, report.Skipped(title))
		return nil
	}

	r.store.MarkUpdated(key, sum)
	r.rc.Cache.AddPressure(r.rc.Options.PressurePerFile)

	r.mu.Lock()
	r.fresh[key] = freshFile{title: title, rootName: root.Name, rel: rel, diags: out.Diagnostics}
	r.touch(prevDecls)
	r.touch(out.Declarations)
	r.mu.Unlock()
	return nil
}

// dependents rebuilds, from the cache alone, the results of unchanged files
// referencing a symbol whose declaring files changed.
func (r *run) dependents() error {
	r.mu.Lock()
	syms := slices.SortedFunc(maps.Keys(r.touched), func(a, b models.Symbol) int {
		if a.Category != b.Category {
			return strings.Compare(a.Category, b.Category)
		}
		return strings.Compare(a.ID, b.ID)
	})
	r.mu.Unlock()
	if len(syms) == 0 {
		return nil
	}

	referrers, err := r.rc.Cache.Referrers(syms)
	if err != nil {
		return fmt.Errorf("lint: find referrers: %w", err)
	}
	for _, key := range referrers {
		r.mu.Lock()
		_, isFresh := r.fresh[key]
		_, seen := r.seen[key]
		r.mu.Unlock()
		if isFresh || !seen {
			continue
		}
		if res, ok := r.rep.Get(key); ok && res.Skipped {
			continue
		}

		entry, err := r.rc.Cache.Entry(key)
		if err != nil {
			return fmt.Errorf("lint: read entry of %s: %w", key, err)
		}
		if entry == nil {
			continue
		}
		root, _, ok := r.locate(r.rc.abs(key))
		if !ok {
			continue
		}
		r.mu.Lock()
		r.fresh[key] = freshFile{
			title:    report.Title(entry.Resource.ID, root.Name, entry.Rel),
			rootName: root.Name,
			rel:      entry.Rel,
			diags:    entry.Diagnostics,
			reeval:   true,
		}
		r.mu.Unlock()
		r.log.Debug("lint: dependent re-evaluated", slog.String("path", key))
	}
	return nil
}

// merge renders fresh results, adding unresolved-reference warnings.
func (r *run) merge() error {
	r.mu.Lock()
	keys := slices.Sorted(maps.Keys(r.fresh))
	r.mu.Unlock()

	for _, key := range keys {
		r.mu.Lock()
		f := r.fresh[key]
		prev, hasPrev := r.cached[key]
		r.mu.Unlock()

		extra, err := r.unresolved(key)
		if err != nil {
			return err
		}
		diags := append(slices.Clone(f.diags), extra...)
		res := report.NewResult(f.title, diags)

		if hasPrev {
			if d := report.Drift(key, prev, res); d != "" {
				r.log.Debug("lint: diagnostics changed", slog.String("path", key), slog.String("diff", d))
			}
		}
		r.rep.Add(key, res)
		if !f.reeval {
			if err := r.define(key, f.rootName, f.rel); err != nil {
				return err
			}
		}
	}
	return nil
}

// unresolved turns references to undeclared symbols outside the default
// namespace into warnings.
func (r *run) unresolved(key string) ([]models.Diagnostic, error) {
	if !r.rc.Options.ReportUnresolved {
		return nil, nil
	}
	refs, err := r.rc.Cache.Unresolved(key)
	if err != nil {
		return nil, fmt.Errorf("lint: unresolved references of %s: %w", key, err)
	}
	var out []models.Diagnostic
	for _, ref := range refs {
		if ref.Namespace() == models.DefaultNamespace {
			continue
		}
		out = append(out, models.Diagnostic{
			Severity: models.SeverityWarning,
			Line:     ref.Line,
			Column:   ref.Column,
			Message:  fmt.Sprintf("Cannot find %s %q", ref.Category, ref.ID),
		})
	}
	return out, nil
}

// define records the define report lines of a file.
func (r *run) define(key, rootName, rel string) error {
	if r.matcher.Empty() {
		return nil
	}
	decls, err := r.rc.Cache.Declarations(key)
	if err != nil {
		return fmt.Errorf("lint: read declarations of %s: %w", key, err)
	}
	r.defineMu.Lock()
	lines, err := report.DefineLines(rootName, rel, decls, r.matcher)
	r.defineMu.Unlock()
	if err != nil {
		return fmt.Errorf("lint: define report: %w", err)
	}
	r.rep.AddDefine(key, lines)
	return nil
}
