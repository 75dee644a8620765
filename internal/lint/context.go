// Package lint coordinates incremental lint runs over pack roots.
package lint

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/starford/packlint/internal/index"
	"github.com/starford/packlint/internal/storage"
	"github.com/starford/packlint/internal/validator"
	"github.com/starford/packlint/internal/visibility"
)

// Persisted state file names inside the state directory.
const (
	ChecksumFile = "checksum.json"
	SnapshotFile = "validation.db"
)

// Options tunes a run.
type Options struct {
	DetectionDepth    int
	Include           []string
	Exclude           []string
	DefaultVisibility visibility.Default
	OutputDefine      []string
	Concurrency       int
	ReportUnresolved  bool
	// Regenerate discards every persisted state before the run.
	Regenerate      bool
	PressurePerFile int
}

// RunContext carries everything one run needs. It replaces process-wide state.
type RunContext struct {
	// WorkDir is the directory searched for pack roots. File keys are relative to it.
	WorkDir string
	// ConfigPath is the configuration file whose fingerprint guards the caches. Optional.
	ConfigPath string
	Options    Options

	Validator validator.Validator
	Cache     index.ValidationCache
	State     storage.Provider
	Logger    *slog.Logger
}

func (rc *RunContext) validate() error {
	var errs []error
	if rc.WorkDir == "" {
		errs = append(errs, errors.New("work dir is required"))
	}
	if rc.Validator == nil {
		errs = append(errs, errors.New("validator is required"))
	}
	if rc.Cache == nil {
		errs = append(errs, errors.New("cache is required"))
	}
	if rc.State == nil {
		errs = append(errs, errors.New("state storage is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("lint: invalid run context: %w", err)
	}
	if rc.Logger == nil {
		rc.Logger = slog.Default()
	}
	if rc.Options.Concurrency <= 0 {
		rc.Options.Concurrency = runtime.NumCPU()
	}
	if rc.Options.PressurePerFile <= 0 {
		rc.Options.PressurePerFile = index.DefaultPressurePerFile
	}
	abs, err := filepath.Abs(rc.WorkDir)
	if err != nil {
		return fmt.Errorf("lint: resolve work dir: %w", err)
	}
	rc.WorkDir = abs
	return nil
}

// key converts an absolute path to the slash-separated key used by the caches.
func (rc *RunContext) key(abs string) string {
	rel, err := filepath.Rel(rc.WorkDir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// abs converts a cache key back to an absolute path.
func (rc *RunContext) abs(key string) string {
	p := filepath.FromSlash(key)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rc.WorkDir, p)
}
