// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/starford/packlint/internal/apperr"
	"github.com/starford/packlint/internal/archive"
	"github.com/starford/packlint/internal/ci"
	"github.com/starford/packlint/internal/discovery"
	"github.com/starford/packlint/internal/index"
	"github.com/starford/packlint/internal/lint"
	"github.com/starford/packlint/internal/report"
	"github.com/starford/packlint/internal/storage"
	"github.com/starford/packlint/internal/validator"
	"github.com/starford/packlint/internal/versions"
)

// Run lints the packs below the working directory with the given options.
// It returns apperr.ErrLintFailed when the report failed and no forced pass applies.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{
		workDir: ".",
		out:     os.Stdout,
		getenv:  os.Getenv,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	env, envErr := ci.FromEnvironment(app.getenv)

	logger := newLogger(cfg.App, env.Debug)
	slog.SetDefault(logger)

	if envErr != nil {
		logger.Warn("ci: event unavailable", slog.String("error", envErr.Error()))
	}

	workDir, err := filepath.Abs(app.workDir)
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}
	stateDir := cfg.Cache.Dir
	if !filepath.IsAbs(stateDir) {
		stateDir = filepath.Join(workDir, stateDir)
	}

	logger.Info("Configuration loaded",
		slog.String("work_dir", workDir),
		slog.String("state_dir", stateDir),
		slog.String("ref", env.Ref),
		slog.Bool("ci_debug", env.Debug),
		slog.String("log_level", cfg.App.LogLevel.String()))

	archives := &archive.Store{Dir: cfg.Cache.ArchiveDir}
	if cfg.Cache.ArchiveEnabled() {
		restoreArchive(ctx, archives, cfg.Cache, env, stateDir, logger)
	}

	state, err := storage.NewFS(stateDir)
	if err != nil {
		return fmt.Errorf("init state: %w", err)
	}

	v := validator.NewBuiltin()
	cache, err := index.Open(v,
		index.WithLogger(logger),
		index.WithGCThreshold(cfg.Lint.GCThreshold))
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer cache.Close()

	var header string
	if cfg.Versions.Enabled {
		info, err := versions.Fetch(ctx, http.DefaultClient, cfg.Versions.URL, cfg.Versions.Timeout)
		if err != nil {
			logger.Warn("versions: feature unavailable", slog.String("error", err.Error()))
		}
		header = "Minecraft versions: " + info.String()
	}

	regenerate := app.regenerate
	if env.RegenerateRequested() {
		logger.Info("ci: regenerate requested by commit message")
		regenerate = true
	}

	renderer := report.NewRenderer(app.out)
	lintOnce := func(ctx context.Context) (*report.Report, error) {
		rep, err := lint.Run(ctx, &lint.RunContext{
			WorkDir:    workDir,
			ConfigPath: app.configPath,
			Options: lint.Options{
				DetectionDepth:    cfg.Lint.DetectionDepth,
				Include:           cfg.Lint.Include,
				Exclude:           cfg.Lint.Exclude,
				DefaultVisibility: cfg.Lint.DefaultVisibility.Default(),
				OutputDefine:      cfg.Lint.OutputDefine,
				Concurrency:       cfg.Lint.Concurrency,
				ReportUnresolved:  cfg.Lint.ReportUnresolved,
				Regenerate:        regenerate,
			},
			Validator: v,
			Cache:     cache,
			State:     state,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		// Only the first run honours a regenerate request.
		regenerate = false
		if header != "" {
			rep.AddHeader(header)
		}
		if err := renderer.Render(app.out, rep); err != nil {
			return nil, fmt.Errorf("render report: %w", err)
		}
		return rep, nil
	}

	if app.watch {
		return watch(ctx, workDir, cfg.Lint.DetectionDepth, logger, lintOnce)
	}

	rep, err := lintOnce(ctx)
	if err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	if cfg.Cache.ArchiveEnabled() {
		key := archive.Key(cfg.Cache.KeyPrefix, cfg.Cache.Version, env.Ref, time.Now())
		if err := archives.Save(ctx, key, state.Root()); err != nil {
			logger.Warn("archive: save failed", slog.String("error", err.Error()))
		} else {
			logger.Info("archive: saved", slog.String("key", key))
		}
	}

	return exitPolicy(rep, cfg.Lint.ForcePass, env.Debug, app, logger)
}

// exitPolicy maps a failed report to apperr.ErrLintFailed unless a forced pass applies.
func exitPolicy(rep *report.Report, forcePass, debug bool, app *application, logger *slog.Logger) error {
	if !rep.Failed() {
		return nil
	}
	switch {
	case forcePass:
		logger.Info("lint: forced pass", slog.String("summary", rep.Summary()))
		return nil
	case debug:
		fmt.Fprintln(app.out, "Test forced pass. Because debug mode")
		return nil
	}
	return fmt.Errorf("%s: %w", rep.Summary(), apperr.ErrLintFailed)
}

func restoreArchive(ctx context.Context, store *archive.Store, cfg CacheConfig, env ci.Env, stateDir string, logger *slog.Logger) {
	prefixes := archive.RestoreKeys(cfg.KeyPrefix, cfg.Version, env.RestoreRef())
	key, err := store.Restore(ctx, stateDir, "", prefixes...)
	switch {
	case err != nil:
		logger.Warn("archive: restore failed", slog.String("error", err.Error()))
	case key == "":
		logger.Info("archive: nothing to restore")
	default:
		logger.Info("archive: restored", slog.String("key", key))
	}
}

// watch lints once, then re-lints on every change below the pack roots until
// a shutdown signal arrives.
func watch(ctx context.Context, workDir string, depth int, logger *slog.Logger, lintOnce func(context.Context) (*report.Report, error)) error {
	if _, err := lintOnce(ctx); err != nil {
		return err
	}

	roots, err := discovery.FindRoots(workDir, depth, logger)
	if err != nil {
		return err
	}
	dirs := make([]string, 0, len(roots))
	for _, r := range roots {
		dirs = append(dirs, r.Path)
	}
	if len(dirs) == 0 {
		dirs = append(dirs, workDir)
	}

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, cancel := context.WithCancel(gCtx)
	defer cancel()

	g.Go(func() error {
		return lint.Watch(watchCtx, dirs, lint.DefaultDebounce, logger, func(ctx context.Context) error {
			_, err := lintOnce(ctx)
			return err
		})
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-watchCtx.Done():
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Watch stopped")
	return nil
}

// newLogger builds the JSON handler or the human-readable charmbracelet one.
// CI debug mode lowers the level to debug.
func newLogger(cfg ApplicationConfig, debug bool) *slog.Logger {
	level := cfg.LogLevel
	if debug {
		level = slog.LevelDebug
	}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	}
	return slog.New(log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.Level(level),
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}))
}
