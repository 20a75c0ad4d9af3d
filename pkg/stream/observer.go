package stream

import "sync/atomic"

// Observer receives notifications from a Subscribable.
type Observer[T any] interface {
	Next(value T)
	Error(err error)
	Complete()
}

// Subscribable is anything that can be observed.
type Subscribable[T any] interface {
	Subscribe(obs Observer[T]) *Subscription
}

// Funcs adapts optional callbacks to the Observer interface.
// Nil callbacks are ignored.
type Funcs[T any] struct {
	NextFn     func(T)
	ErrorFn    func(error)
	CompleteFn func()
}

// Next implements Observer.
func (f Funcs[T]) Next(value T) {
	if f.NextFn != nil {
		f.NextFn(value)
	}
}

// Error implements Observer.
func (f Funcs[T]) Error(err error) {
	if f.ErrorFn != nil {
		f.ErrorFn(err)
	}
}

// Complete implements Observer.
func (f Funcs[T]) Complete() {
	if f.CompleteFn != nil {
		f.CompleteFn()
	}
}

// NextFunc returns an Observer that only handles values.
func NextFunc[T any](fn func(T)) Observer[T] {
	return Funcs[T]{NextFn: fn}
}

// SubscribeFunc implements Subscribable with a plain function.
type SubscribeFunc[T any] func(obs Observer[T]) *Subscription

// Subscribe implements Subscribable.
func (f SubscribeFunc[T]) Subscribe(obs Observer[T]) *Subscription {
	return f(obs)
}

// New builds a Subscribable from a producer. The producer is called once per
// subscriber with a guarded observer and returns an optional teardown.
//
// The guarded observer drops notifications after the subscription closes or
// after a terminal Error/Complete, and it closes the subscription on a
// terminal notification.
func New[T any](produce func(obs Observer[T]) func()) Subscribable[T] {
	return SubscribeFunc[T](func(obs Observer[T]) *Subscription {
		sub := NewSubscription()
		g := &guarded[T]{obs: obs, sub: sub}
		sub.AddFunc(g.close)
		if teardown := produce(g); teardown != nil {
			sub.AddFunc(teardown)
		}
		return sub
	})
}

// guarded enforces the observer contract for producers built with New.
type guarded[T any] struct {
	obs    Observer[T]
	sub    *Subscription
	closed atomic.Bool
}

func (g *guarded[T]) close() {
	g.closed.Store(true)
}

func (g *guarded[T]) Next(value T) {
	if g.closed.Load() {
		return
	}
	g.obs.Next(value)
}

func (g *guarded[T]) Error(err error) {
	if g.closed.Swap(true) {
		return
	}
	g.obs.Error(err)
	g.sub.Unsubscribe()
}

func (g *guarded[T]) Complete() {
	if g.closed.Swap(true) {
		return
	}
	g.obs.Complete()
	g.sub.Unsubscribe()
}
