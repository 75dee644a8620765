// Package apperr defines the sentinel errors shared across packlint components.
package apperr

import "errors"

var (
	// ErrIO marks a file that could not be read; callers treat it as absent.
	ErrIO = errors.New("io error")
	// ErrValidator marks a validator failure for a single file.
	ErrValidator = errors.New("validator error")
	// ErrCacheCorrupt marks persisted state that could not be decoded.
	ErrCacheCorrupt = errors.New("cache corrupt")
	// ErrDiscovery marks a failure to scan the working directory itself.
	ErrDiscovery = errors.New("root discovery failed")
	// ErrPersist marks a failure to write persisted state.
	ErrPersist = errors.New("persist failed")
	// ErrLintFailed is returned when diagnostics fail the run.
	ErrLintFailed = errors.New("lint failed")
)
