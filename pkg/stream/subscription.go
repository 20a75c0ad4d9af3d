package stream

import (
	"fmt"
	"strings"
	"sync"
)

// Unsubscribable is anything that can be torn down.
type Unsubscribable interface {
	Unsubscribe()
}

// TeardownFunc adapts a function to Unsubscribable.
type TeardownFunc func()

// Unsubscribe calls f.
func (f TeardownFunc) Unsubscribe() {
	f()
}

// UnsubscriptionError collects the panics raised by teardowns during a
// single Unsubscribe call. Every teardown still runs.
type UnsubscriptionError struct {
	Errors []error
}

func (e *UnsubscriptionError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("stream: %d error(s) during unsubscription: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap supports errors.Is/As over every collected error.
func (e *UnsubscriptionError) Unwrap() []error {
	return e.Errors
}

// Subscription is a group of teardowns released together.
//
// Unsubscribe runs every teardown exactly once, in the order they were
// added. Adding a teardown to a closed Subscription runs it immediately.
// A child Subscription removes itself from its parents when it closes, so
// long-lived groups do not accumulate released children.
type Subscription struct {
	mu        sync.Mutex
	closed    bool
	teardowns []Unsubscribable
	parents   []*Subscription
}

// NewSubscription returns an open, empty Subscription.
func NewSubscription() *Subscription {
	return &Subscription{}
}

// Closed reports whether Unsubscribe has been called.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Add registers a teardown. Nil and self additions are ignored.
func (s *Subscription) Add(t Unsubscribable) {
	if t == nil {
		return
	}
	child, isSub := t.(*Subscription)
	if isSub && (child == s || child == nil) {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.Unsubscribe()
		return
	}
	s.teardowns = append(s.teardowns, t)
	s.mu.Unlock()

	if isSub {
		if !child.addParent(s) {
			// Child closed before we linked it.
			s.Remove(child)
		}
	}
}

// AddFunc registers a teardown function.
func (s *Subscription) AddFunc(fn func()) {
	if fn == nil {
		return
	}
	s.Add(TeardownFunc(fn))
}

// Remove drops a child Subscription without running it.
func (s *Subscription) Remove(child *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.teardowns {
		if c, ok := t.(*Subscription); ok && c == child {
			s.teardowns = append(s.teardowns[:i], s.teardowns[i+1:]...)
			return
		}
	}
}

// Len returns the number of pending teardowns.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.teardowns)
}

func (s *Subscription) addParent(p *Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.parents = append(s.parents, p)
	return true
}

// Unsubscribe closes the Subscription and runs its teardowns. Calling it
// again is a no-op. Panics raised by teardowns are collected and re-raised
// as a single *UnsubscriptionError after all teardowns ran.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	teardowns := s.teardowns
	parents := s.parents
	s.teardowns = nil
	s.parents = nil
	s.mu.Unlock()

	for _, p := range parents {
		p.Remove(s)
	}

	var errs []error
	for _, t := range teardowns {
		if err := runTeardown(t); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		panic(&UnsubscriptionError{Errors: flatten(errs)})
	}
}

func runTeardown(t Unsubscribable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("teardown panic: %v", r)
		}
	}()
	t.Unsubscribe()
	return nil
}

// flatten inlines nested UnsubscriptionErrors raised by child groups.
func flatten(errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if ue, ok := err.(*UnsubscriptionError); ok {
			out = append(out, ue.Errors...)
			continue
		}
		out = append(out, err)
	}
	return out
}
