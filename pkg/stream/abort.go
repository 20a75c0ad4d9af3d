package stream

import "sync"

// AbortController owns an AbortSignal and fires it.
type AbortController struct {
	signal *AbortSignal
}

// NewAbortController returns a controller with a fresh signal.
func NewAbortController() *AbortController {
	return &AbortController{signal: &AbortSignal{}}
}

// Signal returns the controller's signal.
func (c *AbortController) Signal() *AbortSignal {
	return c.signal
}

// Abort fires the signal. Only the first call has any effect.
func (c *AbortController) Abort() {
	c.signal.abort()
}

// AbortSignal is a one-shot cancellation notification.
type AbortSignal struct {
	mu        sync.Mutex
	aborted   bool
	nextID    uint64
	listeners []abortListener
}

type abortListener struct {
	id uint64
	fn func()
}

// Aborted reports whether the signal has fired.
func (s *AbortSignal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// OnAbort registers fn to run once when the signal fires. If the signal has
// already fired, fn runs immediately. The returned function removes the
// listener; it is safe to call more than once.
func (s *AbortSignal) OnAbort(fn func()) (remove func()) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		fn()
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, abortListener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *AbortSignal) abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn()
	}
}
