package checksum

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Store holds the baseline fingerprints of the previous run plus the pending
// delta of the current one. The baseline is only replaced by Flush.
type Store struct {
	mu       sync.Mutex
	baseline map[string]string
	updated  map[string]string
	deleted  []string
	removed  map[string]struct{}
	forced   map[string]struct{}
}

// NewStore returns a store seeded with baseline. A nil baseline is an empty store.
// Fingerprints are compared in lower case.
func NewStore(baseline map[string]string) *Store {
	b := make(map[string]string, len(baseline))
	for p, h := range baseline {
		b[p] = strings.ToLower(h)
	}
	return &Store{
		baseline: b,
		updated:  make(map[string]string),
		removed:  make(map[string]struct{}),
		forced:   make(map[string]struct{}),
	}
}

// IsKnown reports whether path has a baseline fingerprint.
func (s *Store) IsKnown(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.baseline[path]
	return ok
}

// Get returns the baseline fingerprint of path.
func (s *Store) Get(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.baseline[path]
	return h, ok
}

// IsChanged reports whether hash differs from the baseline of path.
// Forced paths are always changed; unknown paths are changed when treatUnknownAsChanged is set.
func (s *Store) IsChanged(path, hash string, treatUnknownAsChanged bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forced[path]; ok {
		return true
	}
	old, ok := s.baseline[path]
	if !ok {
		return treatUnknownAsChanged
	}
	return old != strings.ToLower(hash)
}

// MarkUpdated records the new fingerprint of path for the next flush.
func (s *Store) MarkUpdated(path, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated[path] = strings.ToLower(hash)
}

// MarkDeleted records the removal of path for the next flush.
func (s *Store) MarkDeleted(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.removed[path]; ok {
		return
	}
	s.removed[path] = struct{}{}
	s.deleted = append(s.deleted, path)
}

// Force marks paths as changed regardless of their fingerprint.
func (s *Store) Force(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		s.forced[p] = struct{}{}
	}
}

// Invalidate drops the baseline so that every file is treated as new.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = make(map[string]string)
}

// Flush applies pending deletions, then pending updates, onto the baseline and
// returns a copy of the merged map. The pending delta and forced set are cleared.
func (s *Store) Flush() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.deleted {
		delete(s.baseline, p)
	}
	maps.Copy(s.baseline, s.updated)

	s.updated = make(map[string]string)
	s.deleted = nil
	s.removed = make(map[string]struct{})
	s.forced = make(map[string]struct{})

	out := make(map[string]string, len(s.baseline))
	maps.Copy(out, s.baseline)
	return out
}

// Paths returns the baseline paths in sorted order.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.baseline))
}

// Len returns the number of baseline entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.baseline)
}
