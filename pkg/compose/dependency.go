package compose

import "sync"

// tracker records the sources read while it is the current tracker.
type tracker interface {
	track(src *source)
}

// dependent is invalidated when one of its sources changes.
type dependent interface {
	ID() uint64
	invalidate()
}

// source provides type-erased dependent management. It is embedded in
// Cell[T] and Computed[T] so a Computed can depend on either.
type source struct {
	id uint64

	deps   []dependent
	depsMu sync.RWMutex
}

// read registers s with the current tracker, if any.
func (s *source) read() {
	if t := currentTracker(); t != nil {
		t.track(s)
	}
}

// addDependent deduplicates by ID.
func (s *source) addDependent(d dependent) {
	s.depsMu.Lock()
	defer s.depsMu.Unlock()

	id := d.ID()
	for _, existing := range s.deps {
		if existing.ID() == id {
			return
		}
	}
	s.deps = append(s.deps, d)
}

func (s *source) removeDependent(d dependent) {
	s.depsMu.Lock()
	defer s.depsMu.Unlock()

	id := d.ID()
	for i, existing := range s.deps {
		if existing.ID() == id {
			s.deps = append(s.deps[:i], s.deps[i+1:]...)
			return
		}
	}
}

// invalidateDependents copies the dependent list before notifying so
// dependents may detach and re-attach while being invalidated.
func (s *source) invalidateDependents() {
	s.depsMu.RLock()
	deps := make([]dependent, len(s.deps))
	copy(deps, s.deps)
	s.depsMu.RUnlock()

	for _, d := range deps {
		d.invalidate()
	}
}

func (s *source) dependentCount() int {
	s.depsMu.RLock()
	defer s.depsMu.RUnlock()
	return len(s.deps)
}
