package compose

import (
	"sync"

	"github.com/vango-dev/compose/pkg/stream"
)

// Accessor pairs an independent read source and write sink. Reads defer
// to the source and writes to the sink, so a host binding can observe one
// channel and report changes on another.
type Accessor[T, U any] struct {
	id    uint64
	read  Readable[T]
	write Writable[U]
	equal func(a, b T) bool
	phase CheckPhase

	mu      sync.Mutex
	changes changeHandlers[T]
}

// NewAccessor pairs read and write.
func NewAccessor[T, U any](read Readable[T], write Writable[U], opts ...Option) *Accessor[T, U] {
	o := applyValueOptions(opts)
	return &Accessor[T, U]{
		id:    nextID(),
		read:  read,
		write: write,
		equal: equalsFor[T](o),
		phase: o.phase,
	}
}

// AccessorFunc builds an Accessor from a getter, evaluated as a Computed,
// and a setter.
func AccessorFunc[T, U any](getter func() T, setter func(U), opts ...Option) *Accessor[T, U] {
	return NewAccessor[T, U](NewComputed(getter, opts...), WriterFunc[U](setter), opts...)
}

// ID returns the accessor's unique identifier.
func (a *Accessor[T, U]) ID() uint64 { return a.id }

// Kind implements Reactive.
func (a *Accessor[T, U]) Kind() Kind { return KindAccessor }

// Get reads the source.
func (a *Accessor[T, U]) Get() T {
	return a.read.Get()
}

// Set writes to the sink.
func (a *Accessor[T, U]) Set(v U) {
	a.write.Next(v)
}

// Next is Set. It makes Accessor a Writable.
func (a *Accessor[T, U]) Next(v U) {
	a.write.Next(v)
}

// Subscribe observes the source.
func (a *Accessor[T, U]) Subscribe(obs stream.Observer[T]) *stream.Subscription {
	return a.read.Subscribe(obs)
}

// OnChange registers fn to run after a bound host property wrote a new
// value through the accessor.
func (a *Accessor[T, U]) OnChange(fn func(previous, current T)) (remove func()) {
	a.mu.Lock()
	id := a.changes.add(fn)
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		a.changes.remove(id)
		a.mu.Unlock()
	}
}

func (a *Accessor[T, U]) peek() T {
	var v T
	Untracked(func() {
		v = a.read.Get()
	})
	return v
}

func (a *Accessor[T, U]) checkPhase() CheckPhase { return a.phase }

func (a *Accessor[T, U]) currentAny() any { return a.peek() }

func (a *Accessor[T, U]) differsAny(v any) bool {
	t, ok := convertAny[T](v)
	if !ok {
		return false
	}
	return !a.equal(a.peek(), t)
}

func (a *Accessor[T, U]) assignAny(v any) {
	if u, ok := convertAny[U](v); ok {
		a.write.Next(u)
	}
}

func (a *Accessor[T, U]) subscribeAny(next func(any), fail func(error)) *stream.Subscription {
	return a.read.Subscribe(stream.Funcs[T]{
		NextFn:  func(v T) { next(v) },
		ErrorFn: fail,
	})
}

func (a *Accessor[T, U]) notifyChange(previous, current any) {
	p, _ := convertAny[T](previous)
	n, _ := convertAny[T](current)
	a.mu.Lock()
	handlers := a.changes.snapshot()
	a.mu.Unlock()
	for _, h := range handlers {
		h.fn(p, n)
	}
}
