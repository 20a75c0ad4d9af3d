package composetest

import (
	"fmt"
	"sync"

	"github.com/vango-dev/compose/pkg/compose"
)

// Host is a compose.ChangeDetector that counts renders.
type Host struct {
	mu       sync.Mutex
	renders  int
	checks   int
	detached bool

	// OnRender runs during every render, after the count is updated.
	OnRender func()
	// Err is returned from DetectChanges.
	Err error
}

// DetectChanges implements compose.ChangeDetector.
func (h *Host) DetectChanges() error {
	h.mu.Lock()
	h.renders++
	fn, err := h.OnRender, h.Err
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return err
}

// CheckNoChanges implements compose.NoChangesChecker.
func (h *Host) CheckNoChanges() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks++
	return nil
}

// Detach implements compose.Detacher.
func (h *Host) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = true
}

// Renders returns the number of renders so far.
func (h *Host) Renders() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renders
}

// Checks returns the number of dev-mode no-changes checks so far.
func (h *Host) Checks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checks
}

// Detached reports whether the Scheduler detached the host.
func (h *Host) Detached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detached
}

// MapResolver resolves tokens from a map.
type MapResolver map[any]any

// Resolve implements compose.Resolver.
func (m MapResolver) Resolve(token any) (any, error) {
	v, ok := m[token]
	if !ok {
		return nil, fmt.Errorf("%v: %w", token, compose.ErrNotProvided)
	}
	return v, nil
}

// Provide registers value for tok.
func Provide[T any](m MapResolver, tok *compose.Token[T], value T) MapResolver {
	m[tok] = value
	return m
}

// ErrorRecorder is a compose.ErrorHandler that keeps every error.
type ErrorRecorder struct {
	mu   sync.Mutex
	errs []error
}

// HandleError implements compose.ErrorHandler.
func (r *ErrorRecorder) HandleError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// Errors returns a copy of the recorded errors.
func (r *ErrorRecorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// Len returns the number of recorded errors.
func (r *ErrorRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// Last returns the most recent error, or nil.
func (r *ErrorRecorder) Last() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

// Reset forgets every recorded error.
func (r *ErrorRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = nil
}
