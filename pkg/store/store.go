// Package store groups named cells into a store with an event log.
//
// A Store is built inside a compose Service. Its state is a set of named
// cells registered with Define; actions are dispatched by name and applied
// by reducers. Every dispatch is published on Events together with the
// state before and after it, which is what the logging plugin prints.
//
//	s, _ := store.New("todos", store.WithPlugins(store.LogPlugin(logger)))
//	items, _ := store.Define(s, "items", []string{})
//	store.Handle(s, "add", func(title string) {
//	    items.Update(func(v []string) []string { return append(v, title) })
//	})
//	s.Dispatch("add", "write tests")
package store

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/compose/pkg/compose"
	"github.com/vango-dev/compose/pkg/stream"
)

var (
	ErrDuplicateKey = errors.New("store: key already defined")
	ErrUnknownKey   = errors.New("store: unknown key")
	ErrDestroyed    = errors.New("store: destroyed")
)

// EventKind tags store events.
type EventKind string

const (
	KindNext     EventKind = "N"
	KindError    EventKind = "E"
	KindComplete EventKind = "C"
)

func (k EventKind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	default:
		return string(k)
	}
}

// Snapshot is the value of every defined key at one point in time.
type Snapshot map[string]any

// Keys returns the snapshot keys in order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Event is published for every dispatch, put and the store's destruction.
type Event struct {
	Kind     EventKind
	Store    string
	Action   string
	Payload  any
	Previous Snapshot
	Current  Snapshot
	Err      error
	Time     time.Time
}

// Plugin extends a store. Plugins run inside the store's scope, so the
// effects they register live as long as the store.
type Plugin func(s *Store)

// Reducer applies an action payload to the store's cells.
type Reducer func(payload any) error

type options struct {
	parent   *Store
	plugins  []Plugin
	resolver compose.Resolver
	errors   compose.ErrorHandler
}

// Option configures New.
type Option func(*options)

// WithParent nests the store under parent. The parent only affects Path.
func WithParent(parent *Store) Option {
	return func(o *options) { o.parent = parent }
}

// WithPlugins installs plugins in order after the store is built.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) { o.plugins = append(o.plugins, plugins...) }
}

// WithResolver sets the resolver plugins inject from.
func WithResolver(r compose.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithErrorHandler sets the handler for errors escalated by plugin
// effects.
func WithErrorHandler(h compose.ErrorHandler) Option {
	return func(o *options) { o.errors = h }
}

type entry struct {
	get func() any
	set func(v any) error
}

// Store is a named group of cells.
type Store struct {
	name   string
	parent *Store
	svc    *compose.Service[struct{}]
	events *compose.Emitter[Event]

	mu       sync.Mutex
	keys     map[string]entry
	reducers map[string][]Reducer
}

// New builds a store and installs its plugins.
func New(name string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		name:     name,
		parent:   o.parent,
		events:   compose.NewEmitter[Event](),
		keys:     make(map[string]entry),
		reducers: make(map[string][]Reducer),
	}

	hostOpts := []compose.HostOption{compose.WithName("store:" + name)}
	if o.errors != nil {
		hostOpts = append(hostOpts, compose.WithErrorHandler(o.errors))
	}
	svc, err := compose.NewService(o.resolver, func() struct{} { return struct{}{} }, hostOpts...)
	if err != nil {
		return nil, err
	}
	s.svc = svc

	for _, p := range o.plugins {
		if err := s.Use(p); err != nil {
			svc.Destroy()
			return nil, err
		}
	}
	return s, nil
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Parent returns the parent store, or nil.
func (s *Store) Parent() *Store { return s.parent }

// Path returns the names from the root store down to s, joined with
// slashes.
func (s *Store) Path() string {
	var parts []string
	for cur := s; cur != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}

// Scope returns the store's compose scope.
func (s *Store) Scope() *compose.Scope { return s.svc.Scope() }

// Events publishes every store event.
func (s *Store) Events() *compose.Emitter[Event] { return s.events }

// Event emits the payloads of successful events for action.
func (s *Store) Event(action string) stream.Subscribable[any] {
	only := stream.Filter[Event](s.events, func(ev Event) bool {
		return ev.Kind == KindNext && ev.Action == action
	})
	return stream.Map(only, func(ev Event) any { return ev.Payload })
}

// Use runs plugin inside the store's scope.
func (s *Store) Use(plugin Plugin) (err error) {
	if s.Destroyed() {
		return ErrDestroyed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store %s: plugin: %v", s.name, r)
		}
	}()
	s.svc.RunIn(func() { plugin(s) })
	return nil
}

// Define registers a cell under key.
func Define[T any](s *Store, key string, initial T, opts ...compose.Option) (*compose.Cell[T], error) {
	if s.Destroyed() {
		return nil, ErrDestroyed
	}
	s.mu.Lock()
	_, dup := s.keys[key]
	s.mu.Unlock()
	if dup {
		return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateKey, s.name, key)
	}

	var c *compose.Cell[T]
	s.svc.RunIn(func() {
		c = compose.NewCell(initial, opts...)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = entry{
		get: func() any { return c.Get() },
		set: func(v any) error {
			t, ok := v.(T)
			if !ok {
				return fmt.Errorf("store: %s.%s holds %T, got %T", s.name, key, initial, v)
			}
			c.Set(t)
			return nil
		},
	}
	return c, nil
}

// On registers reducer for action. Reducers run in registration order.
func (s *Store) On(action string, reducer Reducer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reducers[action] = append(s.reducers[action], reducer)
}

// Handle registers a typed reducer. A payload of another type fails the
// dispatch.
func Handle[T any](s *Store, action string, fn func(payload T)) {
	s.On(action, func(payload any) error {
		v, ok := payload.(T)
		if !ok && payload != nil {
			var zero T
			return fmt.Errorf("store: action %s wants %T, got %T", action, zero, payload)
		}
		fn(v)
		return nil
	})
}

// Dispatch applies every reducer registered for action inside one batch
// and publishes the event. An action without reducers is still published.
func (s *Store) Dispatch(action string, payload any) error {
	if s.Destroyed() {
		return ErrDestroyed
	}
	s.mu.Lock()
	reducers := append([]Reducer(nil), s.reducers[action]...)
	s.mu.Unlock()

	return s.apply(action, payload, func() error {
		for _, r := range reducers {
			if err := r(payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// Put writes v to the cell defined under key and publishes an event
// named after the key.
func (s *Store) Put(key string, v any) error {
	if s.Destroyed() {
		return ErrDestroyed
	}
	s.mu.Lock()
	e, ok := s.keys[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownKey, s.name, key)
	}
	return s.apply(key, v, func() error { return e.set(v) })
}

func (s *Store) apply(action string, payload any, fn func() error) (err error) {
	previous := s.Snapshot()
	compose.Batch(func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("store %s: action %s: %v", s.name, action, r)
			}
		}()
		err = fn()
	})

	ev := Event{
		Kind:     KindNext,
		Store:    s.name,
		Action:   action,
		Payload:  payload,
		Previous: previous,
		Current:  s.Snapshot(),
		Err:      err,
		Time:     time.Now(),
	}
	if err != nil {
		ev.Kind = KindError
	}
	s.events.Emit(ev)
	return err
}

// Snapshot returns the current value of every key without tracking.
func (s *Store) Snapshot() Snapshot {
	var snap Snapshot
	compose.Untracked(func() {
		snap = s.read()
	})
	return snap
}

// read reads every key, recording dependencies when called from a
// Computed.
func (s *Store) read() Snapshot {
	s.mu.Lock()
	entries := make(map[string]entry, len(s.keys))
	for k, e := range s.keys {
		entries[k] = e
	}
	s.mu.Unlock()

	snap := make(Snapshot, len(entries))
	for k, e := range entries {
		snap[k] = e.get()
	}
	return snap
}

// Select returns a Computed over the store state, owned by the store.
func Select[T any](s *Store, fn func(Snapshot) T, opts ...compose.Option) *compose.Computed[T] {
	var c *compose.Computed[T]
	s.svc.RunIn(func() {
		c = compose.NewComputed(func() T { return fn(s.read()) }, opts...)
	})
	return c
}

// Destroy publishes a complete event and disposes the store scope, its
// plugins and selections. Calling it again is a no-op.
func (s *Store) Destroy() {
	if s.Destroyed() {
		return
	}
	snap := s.Snapshot()
	s.events.Emit(Event{
		Kind:     KindComplete,
		Store:    s.name,
		Previous: snap,
		Current:  snap,
		Time:     time.Now(),
	})
	s.svc.Destroy()
}

// Destroyed reports whether Destroy was called.
func (s *Store) Destroyed() bool {
	return s.svc.Destroyed()
}
