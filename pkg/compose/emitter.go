package compose

import "github.com/vango-dev/compose/pkg/stream"

// Emitter is a stateless multicast channel. It never replays.
type Emitter[T any] struct {
	id      uint64
	subject *stream.Subject[T]
}

// NewEmitter returns a bare Emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{id: nextID(), subject: stream.NewSubject[T]()}
}

// NewEmitterFunc returns an Emitter that also runs fn for every emitted
// value. fn runs as an effect registered in the active Scope, so it only
// starts receiving values once that scope's effects are subscribed.
func NewEmitterFunc[T any](fn func(T) Cleanup, opts ...EffectOption) *Emitter[T] {
	e := NewEmitter[T]()
	Subscribe[T](e, Next(fn), opts...)
	return e
}

// ID returns the emitter's unique identifier.
func (e *Emitter[T]) ID() uint64 { return e.id }

// Kind implements Reactive.
func (e *Emitter[T]) Kind() Kind { return KindEmitter }

// Emit delivers v to every current subscriber.
func (e *Emitter[T]) Emit(v T) {
	e.subject.Next(v)
}

// Next is Emit. It makes Emitter a Writable.
func (e *Emitter[T]) Next(v T) {
	e.Emit(v)
}

// Subscribe forwards future emissions to obs.
func (e *Emitter[T]) Subscribe(obs stream.Observer[T]) *stream.Subscription {
	return e.subject.Subscribe(obs)
}

// Observed reports whether anything is subscribed.
func (e *Emitter[T]) Observed() bool {
	return e.subject.Observed()
}
