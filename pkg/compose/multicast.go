package compose

import (
	"sync"
	"sync/atomic"

	"github.com/vango-dev/compose/pkg/stream"
)

// multicast is a Subject whose Error is not terminal. A Computed that
// fails keeps its observers and notifies them again once it recovers.
type multicast[T any] struct {
	mu        sync.Mutex
	observers []*multicastEntry[T]
}

type multicastEntry[T any] struct {
	obs    stream.Observer[T]
	closed atomic.Bool
}

func (m *multicast[T]) subscribe(obs stream.Observer[T]) (*stream.Subscription, *multicastEntry[T]) {
	entry := &multicastEntry[T]{obs: obs}
	m.mu.Lock()
	m.observers = append(m.observers, entry)
	m.mu.Unlock()

	sub := stream.NewSubscription()
	sub.AddFunc(func() {
		entry.closed.Store(true)
		m.remove(entry)
	})
	return sub, entry
}

func (m *multicast[T]) remove(entry *multicastEntry[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.observers {
		if e == entry {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

func (m *multicast[T]) snapshot() []*multicastEntry[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*multicastEntry[T], len(m.observers))
	copy(out, m.observers)
	return out
}

func (m *multicast[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers)
}

func (m *multicast[T]) next(v T) {
	for _, e := range m.snapshot() {
		if !e.closed.Load() {
			e.obs.Next(v)
		}
	}
}

func (m *multicast[T]) fail(err error) {
	for _, e := range m.snapshot() {
		if !e.closed.Load() {
			e.obs.Error(err)
		}
	}
}

// complete notifies and drops every observer.
func (m *multicast[T]) complete() {
	m.mu.Lock()
	entries := m.observers
	m.observers = nil
	m.mu.Unlock()
	for _, e := range entries {
		if !e.closed.Swap(true) {
			e.obs.Complete()
		}
	}
}
