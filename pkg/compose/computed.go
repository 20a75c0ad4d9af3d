package compose

import (
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/vango-dev/compose/pkg/stream"
)

// Computed is a value derived from a function of other reactive values.
//
// Every evaluation runs fn inside a fresh nested Scope, replacing the one
// from the previous evaluation, and records each Cell or Computed fn reads.
// When one of them changes, a Computed with subscribers re-evaluates at
// once and notifies them if the result differs; one without subscribers
// re-evaluates on each Get.
//
// A panic in fn is recovered as a *PanicError. Subscribers receive it as
// an Error notification and stay subscribed: a later successful
// evaluation notifies them again.
type Computed[T any] struct {
	src    source
	fn     func() T
	equal  func(a, b T) bool
	phase  CheckPhase
	parent *Scope
	errors ErrorHandler

	mu       sync.Mutex
	value    T
	hasValue bool
	valid    bool
	err      error
	scope    *Scope
	stopped  bool
	hooks    []*errorHook

	sources    mapset.Set[*source]
	observers  multicast[T]
	evaluating atomic.Bool
}

type errorHook struct {
	fn func(err error)
}

// NewComputed returns a Computed over fn. Created inside a Scope, it is
// stopped when that Scope is released, and its errors without subscribers
// go to the Scope's error handler. Created outside one, such errors panic
// out of Get.
func NewComputed[T any](fn func() T, opts ...Option) *Computed[T] {
	o := applyValueOptions(opts)
	parent := currentScope()
	var errs ErrorHandler
	if parent != nil {
		errs = parent.ErrorHandler()
	}
	c := newComputed(fn, equalsFor[T](o), o.phase, parent, errs)
	if parent != nil {
		parent.Add(stream.TeardownFunc(c.Stop))
	}
	return c
}

func newComputed[T any](fn func() T, equal func(a, b T) bool, phase CheckPhase, parent *Scope, errs ErrorHandler) *Computed[T] {
	return &Computed[T]{
		src:     source{id: nextID()},
		fn:      fn,
		equal:   equal,
		phase:   phase,
		parent:  parent,
		errors:  errs,
		sources: mapset.NewSet[*source](),
	}
}

// ID returns the computed's unique identifier.
func (c *Computed[T]) ID() uint64 { return c.src.id }

// Kind implements Reactive.
func (c *Computed[T]) Kind() Kind { return KindComputed }

// Get returns the value. With subscribers the cached value is returned;
// without, fn is evaluated again. A stopped Computed returns its last
// value.
func (c *Computed[T]) Get() T {
	c.src.read()

	live := c.observers.len() > 0
	c.mu.Lock()
	if c.stopped || (live && c.valid) {
		v := c.value
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	v, ok, err := c.evaluate()
	if !ok {
		return c.cached()
	}
	c.store(v, err)
	if err != nil {
		c.reportUnobserved(err)
		return c.cached()
	}
	return v
}

// Peek is Get without recording a dependency.
func (c *Computed[T]) Peek() T {
	var v T
	Untracked(func() {
		v = c.Get()
	})
	return v
}

// Err returns the error of the last evaluation, or nil.
func (c *Computed[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Subscribe replays the current value (or error) to obs, then forwards
// changes.
func (c *Computed[T]) Subscribe(obs stream.Observer[T]) *stream.Subscription {
	wasLive := c.observers.len() > 0
	sub, entry := c.observers.subscribe(obs)

	c.mu.Lock()
	stopped, valid := c.stopped, c.valid
	c.mu.Unlock()
	if stopped {
		sub.Unsubscribe()
		obs.Complete()
		return sub
	}

	if !wasLive || !valid {
		if v, ok, err := c.evaluate(); ok {
			c.store(v, err)
		}
	}

	if entry.closed.Load() {
		return sub
	}
	c.mu.Lock()
	v, err, has := c.value, c.err, c.hasValue
	c.mu.Unlock()
	switch {
	case err != nil:
		obs.Error(err)
	case has:
		obs.Next(v)
	}
	return sub
}

// Stop disposes the nested Scope, detaches from every dependency and
// completes subscribers. Calling it again is a no-op.
func (c *Computed[T]) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	scope := c.scope
	c.scope = nil
	c.hooks = nil
	c.mu.Unlock()

	c.detach()
	if scope != nil {
		scope.dispose()
	}
	c.observers.complete()
}

// Stopped reports whether Stop was called.
func (c *Computed[T]) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Computed[T]) cached() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// evaluate runs fn once. ok is false when the Computed is already
// evaluating further up the stack or has been stopped.
func (c *Computed[T]) evaluate() (v T, ok bool, err error) {
	if c.evaluating.Swap(true) {
		return v, false, nil
	}
	defer c.evaluating.Store(false)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return v, false, nil
	}
	old := c.scope
	scope := newScope(ComputedScope, c.parent)
	scope.errors = c.errors
	c.scope = scope
	c.mu.Unlock()

	c.detach()
	if old != nil {
		old.dispose()
	}

	beginPending()
	defer func() {
		if endPending() {
			Flush()
		}
	}()

	func() {
		prev := setCurrentTracker(c)
		defer setCurrentTracker(prev)
		defer func() {
			if r := recover(); r != nil {
				err = asError(r)
			}
		}()
		RunInScope(scope, func() {
			v = c.fn()
		})
	}()
	scope.activateQueued()
	return v, true, err
}

// store records an evaluation result and fires error hooks on a change
// between failing and succeeding.
func (c *Computed[T]) store(v T, err error) (prev T, had bool, prevErr error) {
	c.mu.Lock()
	prev, had, prevErr = c.value, c.hasValue, c.err
	c.valid = true
	c.err = err
	if err == nil {
		c.value = v
		c.hasValue = true
	}
	hooks := make([]*errorHook, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	if err != nil || prevErr != nil {
		for _, h := range hooks {
			h.fn(err)
		}
	}
	return prev, had, prevErr
}

func (c *Computed[T]) reportUnobserved(err error) {
	if c.errors == nil {
		panic(err)
	}
	c.errors.HandleError(err)
}

// refresh re-evaluates a Computed with subscribers.
func (c *Computed[T]) refresh() {
	v, ok, err := c.evaluate()
	if !ok {
		return
	}
	prev, had, prevErr := c.store(v, err)
	if err != nil {
		c.observers.fail(err)
		c.src.invalidateDependents()
		return
	}
	if !had || prevErr != nil || !c.equal(prev, v) {
		c.observers.next(v)
		c.src.invalidateDependents()
	}
}

// track implements tracker.
func (c *Computed[T]) track(s *source) {
	if s == &c.src {
		return
	}
	if c.sources.Add(s) {
		s.addDependent(c)
	}
}

// invalidate implements dependent.
func (c *Computed[T]) invalidate() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.valid = false
	c.mu.Unlock()

	if c.observers.len() == 0 {
		c.src.invalidateDependents()
		return
	}
	c.refresh()
}

func (c *Computed[T]) detach() {
	for _, s := range c.sources.ToSlice() {
		s.removeDependent(c)
	}
	c.sources.Clear()
}

func (c *Computed[T]) addErrorHook(fn func(err error)) (remove func()) {
	h := &errorHook{fn: fn}
	c.mu.Lock()
	c.hooks = append(c.hooks, h)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, existing := range c.hooks {
			if existing == h {
				c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
				return
			}
		}
	}
}

func (c *Computed[T]) checkPhase() CheckPhase { return c.phase }

func (c *Computed[T]) currentAny() any { return c.Peek() }

func (c *Computed[T]) differsAny(any) bool { return false }

func (c *Computed[T]) assignAny(any) {}

func (c *Computed[T]) subscribeAny(next func(any), fail func(error)) *stream.Subscription {
	return c.Subscribe(stream.Funcs[T]{
		NextFn:  func(v T) { next(v) },
		ErrorFn: fail,
	})
}

func (c *Computed[T]) notifyChange(any, any) {}
