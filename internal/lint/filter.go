package lint

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects root-relative paths with doublestar include and exclude globs.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter validates the patterns. An empty include list accepts everything.
func NewFilter(include, exclude []string) (*Filter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("lint: invalid glob %q", p)
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// Match reports whether the file at rel is linted.
func (f *Filter) Match(rel string) bool {
	if f.excluded(rel) {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Descend reports whether the directory at rel may contain linted files.
func (f *Filter) Descend(rel string) bool {
	return !f.excluded(rel)
}

func (f *Filter) excluded(rel string) bool {
	for _, p := range f.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
