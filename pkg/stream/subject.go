package stream

import (
	"sync"
	"sync/atomic"
)

// Subject is a multicast Observer/Subscribable with no replay.
//
// Observers added during a notification do not receive that notification.
// After Error or Complete the Subject is stopped: later subscribers receive
// the terminal notification immediately.
type Subject[T any] struct {
	mu        sync.Mutex
	observers []*subjectEntry[T]
	stopped   bool
	err       error
}

type subjectEntry[T any] struct {
	obs    Observer[T]
	closed atomic.Bool
}

// NewSubject returns an open Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe implements Subscribable.
func (s *Subject[T]) Subscribe(obs Observer[T]) *Subscription {
	sub := NewSubscription()

	s.mu.Lock()
	if s.stopped {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			obs.Error(err)
		} else {
			obs.Complete()
		}
		sub.Unsubscribe()
		return sub
	}
	entry := &subjectEntry[T]{obs: obs}
	s.observers = append(s.observers, entry)
	s.mu.Unlock()

	sub.AddFunc(func() {
		entry.closed.Store(true)
		s.remove(entry)
	})
	return sub
}

func (s *Subject[T]) remove(entry *subjectEntry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.observers {
		if e == entry {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// snapshot copies the observer list so notification runs without the lock.
func (s *Subject[T]) snapshot() []*subjectEntry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	entries := make([]*subjectEntry[T], len(s.observers))
	copy(entries, s.observers)
	return entries
}

// Next delivers value to every current observer in subscription order.
func (s *Subject[T]) Next(value T) {
	for _, e := range s.snapshot() {
		if !e.closed.Load() {
			e.obs.Next(value)
		}
	}
}

// Error stops the Subject and delivers err to every current observer.
func (s *Subject[T]) Error(err error) {
	for _, e := range s.stop(err) {
		e.obs.Error(err)
	}
}

// Complete stops the Subject and completes every current observer.
func (s *Subject[T]) Complete() {
	for _, e := range s.stop(nil) {
		e.obs.Complete()
	}
}

func (s *Subject[T]) stop(err error) []*subjectEntry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.err = err
	entries := s.observers
	s.observers = nil
	return entries
}

// Observed reports whether the Subject has at least one observer.
func (s *Subject[T]) Observed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers) > 0
}

// Stopped reports whether Error or Complete has been called.
func (s *Subject[T]) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
