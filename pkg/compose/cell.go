package compose

import (
	"sync"

	"github.com/vango-dev/compose/pkg/stream"
)

// Cell is a dirty-checked reactive value.
//
// Subscribing replays the current value, then every change. A write that
// the equality function reports equal to the stored value does nothing.
// A change notifies subscribers synchronously in subscription order,
// invalidates dependent Computeds and marks the host the Cell was created
// in dirty.
type Cell[T any] struct {
	src source

	mu      sync.RWMutex
	value   T
	changes changeHandlers[T]

	equal     func(a, b T) bool
	phase     CheckPhase
	subject   *stream.Subject[T]
	scheduler *Scheduler
}

// NewCell returns a Cell holding initial. The Cell marks the Scheduler of
// the active Scope dirty on change.
func NewCell[T any](initial T, opts ...Option) *Cell[T] {
	o := applyValueOptions(opts)
	c := &Cell[T]{
		src:     source{id: nextID()},
		value:   initial,
		equal:   equalsFor[T](o),
		phase:   o.phase,
		subject: stream.NewSubject[T](),
	}
	if s := currentScope(); s != nil {
		c.scheduler = s.Scheduler()
	}
	return c
}

// ID returns the cell's unique identifier.
func (c *Cell[T]) ID() uint64 { return c.src.id }

// Kind implements Reactive.
func (c *Cell[T]) Kind() Kind { return KindCell }

// Get returns the current value and records the read in the Computed
// being evaluated, if any.
func (c *Cell[T]) Get() T {
	c.src.read()
	return c.Peek()
}

// Peek returns the current value without recording a dependency.
func (c *Cell[T]) Peek() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v if it differs from the current value.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	if c.equal(c.value, v) {
		c.mu.Unlock()
		return
	}
	c.value = v
	c.mu.Unlock()

	c.changed(v)
}

// Next is Set. It makes Cell a Writable.
func (c *Cell[T]) Next(v T) {
	c.Set(v)
}

// Update stores fn applied to the current value.
func (c *Cell[T]) Update(fn func(T) T) {
	c.Set(fn(c.Peek()))
}

// Subscribe replays the current value to obs, then forwards changes.
func (c *Cell[T]) Subscribe(obs stream.Observer[T]) *stream.Subscription {
	sub := c.subject.Subscribe(obs)
	if !sub.Closed() {
		obs.Next(c.Peek())
	}
	return sub
}

// OnChange registers fn to run after a bound host property wrote a new
// value into the cell. The returned function removes it.
func (c *Cell[T]) OnChange(fn func(previous, current T)) (remove func()) {
	c.mu.Lock()
	id := c.changes.add(fn)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.changes.remove(id)
		c.mu.Unlock()
	}
}

func (c *Cell[T]) changed(v T) {
	c.subject.Next(v)
	c.src.invalidateDependents()
	if c.scheduler != nil {
		c.scheduler.MarkDirty()
	}
	if !isPending() {
		Flush()
	}
}

func (c *Cell[T]) checkPhase() CheckPhase { return c.phase }

func (c *Cell[T]) currentAny() any { return c.Peek() }

func (c *Cell[T]) differsAny(v any) bool {
	t, ok := convertAny[T](v)
	if !ok {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.equal(c.value, t)
}

func (c *Cell[T]) assignAny(v any) {
	if t, ok := convertAny[T](v); ok {
		c.Set(t)
	}
}

func (c *Cell[T]) subscribeAny(next func(any), fail func(error)) *stream.Subscription {
	return c.Subscribe(stream.Funcs[T]{
		NextFn:  func(v T) { next(v) },
		ErrorFn: fail,
	})
}

func (c *Cell[T]) notifyChange(previous, current any) {
	p, _ := convertAny[T](previous)
	n, _ := convertAny[T](current)
	c.mu.RLock()
	handlers := c.changes.snapshot()
	c.mu.RUnlock()
	for _, h := range handlers {
		h.fn(p, n)
	}
}
