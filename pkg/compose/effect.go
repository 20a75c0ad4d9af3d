package compose

import (
	"sync/atomic"

	"github.com/vango-dev/compose/pkg/stream"
)

// Cleanup is returned by reactions. It runs before the next notification
// and when the effect is disposed.
type Cleanup func()

// EffectState is the lifecycle state of an EffectObserver.
type EffectState int32

const (
	EffectCreated EffectState = iota
	EffectQueued
	EffectSubscribed
	EffectNotifying
	EffectUnsubscribed
)

func (s EffectState) String() string {
	switch s {
	case EffectCreated:
		return "created"
	case EffectQueued:
		return "queued"
	case EffectSubscribed:
		return "subscribed"
	case EffectNotifying:
		return "notifying"
	case EffectUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// Observer holds the reactions of an effect. Nil fields are ignored; a nil
// Error escalates errors to the effect's error handler.
type Observer[T any] struct {
	Next     func(value T) Cleanup
	Error    func(err error)
	Complete func()
}

// Next returns an Observer that only reacts to values.
func Next[T any](fn func(value T) Cleanup) Observer[T] {
	return Observer[T]{Next: fn}
}

// EffectObserver subscribes a source and runs reactions inside its own
// Scope.
//
// Before each notification the Scope is reset, releasing the cleanup and
// every nested effect or teardown registered by the previous reaction.
// Effects queued by the reaction subscribe after it returns.
type EffectObserver struct {
	id    uint64
	name  string
	owner *Scope
	scope *Scope

	// connect subscribes the source; stopSource stops sources the effect
	// created itself (Watch).
	connect    func() *stream.Subscription
	stopSource func()

	// teardown holds the source subscription and the cancellation wrapper.
	teardown *stream.Subscription
	cancel   cancellation
	errors   ErrorHandler

	state  atomic.Int32
	closed atomic.Bool
	// live is set once the source has been connected.
	live atomic.Bool
}

func newEffect(opts []EffectOption) *EffectObserver {
	var cfg effectConfig
	for _, opt := range opts {
		if opt != nil {
			opt.applyEffect(&cfg)
		}
	}

	owner := currentScope()
	if cfg.errors == nil {
		if owner != nil {
			cfg.errors = owner.ErrorHandler()
		} else {
			cfg.errors = DefaultErrorHandler()
		}
	}

	e := &EffectObserver{
		id:       nextID(),
		name:     cfg.name,
		owner:    owner,
		teardown: stream.NewSubscription(),
		cancel:   cfg.cancel,
		errors:   cfg.errors,
	}
	e.scope = newScope(EffectScope, owner)
	e.scope.errors = cfg.errors
	return e
}

// Subscribe registers an effect observing src.
//
// Inside a Scope the effect is queued and subscribes when the scope's
// queue is activated: on host mount, after service construction, or after
// the enclosing reaction returns. Without a Scope it subscribes at once.
//
//	compose.Subscribe[int](count, compose.Next(func(n int) compose.Cleanup {
//	    fmt.Println("count", n)
//	    return nil
//	}))
func Subscribe[T any](src stream.Subscribable[T], obs Observer[T], opts ...EffectOption) *EffectObserver {
	e := newEffect(opts)
	a := &effectAdapter[T]{e: e, obs: obs}
	e.connect = func() *stream.Subscription {
		return src.Subscribe(a)
	}
	e.start()
	return e
}

// Watch registers an effect that runs fn and re-runs it whenever a Cell
// or Computed read by fn changes. The Cleanup fn returns runs before the
// next run and on disposal.
func Watch(fn func() Cleanup, opts ...EffectOption) *EffectObserver {
	e := newEffect(opts)
	c := newComputed(func() struct{} {
		if cleanup := fn(); cleanup != nil {
			// The computed's nested scope is replaced before each run.
			_ = AddTeardown(cleanup)
		}
		return struct{}{}
	}, neverEqual[struct{}], DoCheck, e.scope, nil)
	a := &effectAdapter[struct{}]{e: e}
	e.connect = func() *stream.Subscription {
		return c.Subscribe(a)
	}
	e.stopSource = c.Stop
	e.start()
	return e
}

// ID returns the effect's unique identifier.
func (e *EffectObserver) ID() uint64 { return e.id }

// Name returns the name given with WithName.
func (e *EffectObserver) Name() string { return e.name }

// State returns the current lifecycle state.
func (e *EffectObserver) State() EffectState {
	return EffectState(e.state.Load())
}

// Closed reports whether the effect was unsubscribed.
func (e *EffectObserver) Closed() bool {
	return e.closed.Load()
}

// Scope returns the effect's own Scope.
func (e *EffectObserver) Scope() *Scope { return e.scope }

func (e *EffectObserver) setState(s EffectState) {
	if !e.closed.Load() {
		e.state.Store(int32(s))
	}
}

func (e *EffectObserver) start() {
	if e.owner != nil {
		if !e.owner.enqueue(e) {
			e.Unsubscribe()
			return
		}
		e.setState(EffectQueued)
		return
	}
	e.activate()
}

// activate attaches the cancellation and subscribes the source.
func (e *EffectObserver) activate() {
	if e.closed.Load() {
		return
	}
	e.setState(EffectSubscribed)
	e.teardown.Add(addSignal(e, e.cancel, e.owner))
	if e.closed.Load() {
		return
	}
	e.live.Store(true)
	instrumentation().EffectSubscribed(e.id)

	defer func() {
		if r := recover(); r != nil {
			e.handleError(asError(r))
		}
	}()
	e.teardown.Add(e.connect())
}

// call runs one reaction inside the effect scope.
func (e *EffectObserver) call(reaction func() Cleanup) {
	if e.closed.Load() {
		return
	}
	RunInScope(e.scope, func() {
		e.observe(reaction)
	})
}

func (e *EffectObserver) observe(reaction func() Cleanup) {
	beginPending()
	prev := EffectState(e.state.Swap(int32(EffectNotifying)))
	defer func() {
		if e.closed.Load() {
			e.state.Store(int32(EffectUnsubscribed))
		} else {
			e.state.Store(int32(prev))
		}
		if endPending() {
			Flush()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			e.handleError(asError(r))
		}
	}()

	e.scope.reset()
	if cleanup := reaction(); cleanup != nil {
		e.scope.Add(stream.TeardownFunc(cleanup))
	}
	e.scope.activateQueued()
}

// handleError reports err and disposes the effect.
func (e *EffectObserver) handleError(err error) {
	instrumentation().EffectError(e.id, err, false)
	e.errors.HandleError(err)
	e.Unsubscribe()
}

// Unsubscribe disposes the effect, its source subscription and everything
// its reactions registered. Calling it again is a no-op.
func (e *EffectObserver) Unsubscribe() {
	if e.closed.Swap(true) {
		return
	}
	e.state.Store(int32(EffectUnsubscribed))

	if e.stopSource != nil {
		e.stopSource()
	}
	e.scope.release(e.teardown)
	e.scope.dispose()
	if e.live.Load() {
		instrumentation().EffectDisposed(e.id)
	}
}

// effectAdapter turns source notifications into effect reactions.
type effectAdapter[T any] struct {
	e   *EffectObserver
	obs Observer[T]
}

func (a *effectAdapter[T]) Next(v T) {
	a.e.call(func() Cleanup {
		if a.obs.Next != nil {
			return a.obs.Next(v)
		}
		return nil
	})
}

func (a *effectAdapter[T]) Error(err error) {
	if a.e.closed.Load() {
		return
	}
	if a.obs.Error == nil {
		a.e.handleError(err)
		return
	}
	instrumentation().EffectError(a.e.id, err, true)
	a.e.call(func() Cleanup {
		a.obs.Error(err)
		return nil
	})
}

func (a *effectAdapter[T]) Complete() {
	a.e.call(func() Cleanup {
		if a.obs.Complete != nil {
			a.obs.Complete()
		}
		return nil
	})
}
