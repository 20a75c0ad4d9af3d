package compose

import (
	"errors"
	"reflect"
	"sync"

	"github.com/vango-dev/compose/pkg/stream"
)

// ScopeKind distinguishes the owners of a Scope.
type ScopeKind int

const (
	// HostScope is the root scope of a View.
	HostScope ScopeKind = iota
	// ServiceScope is the root scope of a Service.
	ServiceScope
	// EffectScope belongs to one EffectObserver and is reset on every
	// notification.
	EffectScope
	// ComputedScope belongs to one Computed and is replaced on every
	// evaluation.
	ComputedScope
)

func (k ScopeKind) String() string {
	switch k {
	case HostScope:
		return "host"
	case ServiceScope:
		return "service"
	case EffectScope:
		return "effect"
	case ComputedScope:
		return "computed"
	default:
		return "unknown"
	}
}

// CheckPhase is one of the three ordered points in a host update cycle.
type CheckPhase int

const (
	// DoCheck runs before the host updates.
	DoCheck CheckPhase = iota
	// ContentCheck runs after projected content updated.
	ContentCheck
	// ViewCheck runs after the host's own view updated.
	ViewCheck
)

const checkPhaseCount = 3

func (p CheckPhase) String() string {
	switch p {
	case DoCheck:
		return "do-check"
	case ContentCheck:
		return "content-check"
	case ViewCheck:
		return "view-check"
	default:
		return "unknown"
	}
}

func (p CheckPhase) valid() bool {
	return p >= DoCheck && p < checkPhaseCount
}

// Check is a participant in a check phase.
type Check interface {
	Check()
}

// CheckFunc adapts a function to Check.
type CheckFunc func()

// Check calls f.
func (f CheckFunc) Check() {
	f()
}

// checkSets holds the ordered participants of each phase. Only host
// scopes carry them.
type checkSets struct {
	mu     sync.Mutex
	nextID uint64
	sets   [checkPhaseCount][]checkEntry
}

type checkEntry struct {
	id  uint64
	chk Check
}

// add appends chk unless an equal comparable Check is already registered.
func (c *checkSets) add(phase CheckPhase, chk Check) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reflect.TypeOf(chk).Comparable() {
		for _, e := range c.sets[phase] {
			if reflect.TypeOf(e.chk) == reflect.TypeOf(chk) && e.chk == chk {
				return 0, false
			}
		}
	}
	c.nextID++
	c.sets[phase] = append(c.sets[phase], checkEntry{id: c.nextID, chk: chk})
	return c.nextID, true
}

func (c *checkSets) remove(phase CheckPhase, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.sets[phase]
	for i, e := range set {
		if e.id == id {
			c.sets[phase] = append(set[:i], set[i+1:]...)
			return
		}
	}
}

func (c *checkSets) snapshot(phase CheckPhase) []Check {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Check, len(c.sets[phase]))
	for i, e := range c.sets[phase] {
		out[i] = e.chk
	}
	return out
}

func (c *checkSets) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sets {
		c.sets[i] = nil
	}
}

// Scope is the execution context that context-scoped operations act on.
//
// A Scope owns a registry of teardowns released when it is disposed, a
// queue of effects waiting to subscribe, an error handler, a dependency
// resolver, and for hosts a Scheduler and three check sets. Values a Scope
// does not carry itself are inherited from its parent.
type Scope struct {
	id     uint64
	kind   ScopeKind
	parent *Scope

	mu        sync.Mutex
	registry  *stream.Subscription
	queue     []*EffectObserver
	errors    ErrorHandler
	resolv    Resolver
	scheduler *Scheduler
	checks    *checkSets
	disposed  bool
}

func newScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{
		id:       nextID(),
		kind:     kind,
		parent:   parent,
		registry: stream.NewSubscription(),
	}
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uint64 { return s.id }

// Kind reports what owns the scope.
func (s *Scope) Kind() ScopeKind { return s.kind }

// Parent returns the enclosing scope, or nil for roots.
func (s *Scope) Parent() *Scope { return s.parent }

// Disposed reports whether the scope has been disposed.
func (s *Scope) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Scheduler returns the nearest Scheduler, or nil inside services.
func (s *Scope) Scheduler() *Scheduler {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.scheduler != nil {
			return cur.scheduler
		}
	}
	return nil
}

// ErrorHandler returns the nearest error handler, falling back to
// DefaultErrorHandler.
func (s *Scope) ErrorHandler() ErrorHandler {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.errors != nil {
			return cur.errors
		}
	}
	return DefaultErrorHandler()
}

func (s *Scope) resolver() Resolver {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.resolv != nil {
			return cur.resolv
		}
	}
	return nil
}

func (s *Scope) checkHost() *checkSets {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.checks != nil {
			return cur.checks
		}
	}
	return nil
}

// Add registers a teardown released when the scope is disposed, or when
// an effect scope is reset for its next notification. Adding to a
// disposed scope releases t immediately.
func (s *Scope) Add(t stream.Unsubscribable) {
	s.mu.Lock()
	reg := s.registry
	s.mu.Unlock()
	reg.Add(t)
}

// enqueue appends e to the pending-effect queue. It fails once the scope
// is disposed.
func (s *Scope) enqueue(e *EffectObserver) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return false
	}
	s.queue = append(s.queue, e)
	return true
}

// pending returns the number of queued effects.
func (s *Scope) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// activateQueued subscribes queued effects in queue order, including
// effects queued while earlier ones subscribe.
func (s *Scope) activateQueued() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		e.activate()
	}
}

// reset releases everything registered so far and opens a fresh registry.
func (s *Scope) reset() {
	s.mu.Lock()
	old := s.registry
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()

	s.release(old)
	unsubscribeAll(queued)

	s.mu.Lock()
	if !s.disposed {
		s.registry = stream.NewSubscription()
	}
	s.mu.Unlock()
}

// dispose releases the registry and rejects further registrations.
// Calling it again is a no-op.
func (s *Scope) dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	reg := s.registry
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()

	s.release(reg)
	unsubscribeAll(queued)
	if s.checks != nil {
		s.checks.clear()
	}
}

// unsubscribeAll closes effects that were queued but never activated.
func unsubscribeAll(queued []*EffectObserver) {
	for _, e := range queued {
		e.Unsubscribe()
	}
}

// release unsubscribes reg. Teardown panics are reported to the scope's
// error handler instead of unwinding the caller.
func (s *Scope) release(reg *stream.Subscription) {
	defer func() {
		if r := recover(); r != nil {
			var ue *stream.UnsubscriptionError
			if err, ok := r.(error); ok && errors.As(err, &ue) {
				s.ErrorHandler().HandleError(ue)
				return
			}
			s.ErrorHandler().HandleError(asError(r))
		}
	}()
	reg.Unsubscribe()
}

func (s *Scope) addCheck(phase CheckPhase, chk Check) bool {
	host := s.checkHost()
	if host == nil || chk == nil || !phase.valid() {
		return false
	}
	if id, ok := host.add(phase, chk); ok && host != s.checks {
		// Checks registered from nested scopes leave with them.
		s.Add(stream.TeardownFunc(func() { host.remove(phase, id) }))
	}
	return true
}

func (s *Scope) runChecks(phase CheckPhase) {
	host := s.checkHost()
	if host == nil || !phase.valid() {
		return
	}
	for _, chk := range host.snapshot(phase) {
		chk.Check()
	}
}

// AddTeardown registers fn with the active Scope.
func AddTeardown(fn func()) error {
	s := currentScope()
	if s == nil {
		return callContextError("AddTeardown")
	}
	if fn != nil {
		s.Add(stream.TeardownFunc(fn))
	}
	return nil
}

// AddDisposable registers d with the active Scope.
func AddDisposable(d stream.Unsubscribable) error {
	s := currentScope()
	if s == nil {
		return callContextError("AddDisposable")
	}
	s.Add(d)
	return nil
}

// AddCheck registers chk in the given phase of the nearest host. Checks
// registered from a nested scope are removed when that scope is released.
func AddCheck(phase CheckPhase, chk Check) error {
	s := currentScope()
	if s == nil || !s.addCheck(phase, chk) {
		return callContextError("AddCheck")
	}
	return nil
}

// RunCheck runs every participant of phase in registration order.
func RunCheck(phase CheckPhase) error {
	s := currentScope()
	if s == nil || s.checkHost() == nil {
		return callContextError("RunCheck")
	}
	s.runChecks(phase)
	return nil
}

// SubscribeQueued subscribes the effects queued in the active Scope.
func SubscribeQueued() error {
	s := currentScope()
	if s == nil {
		return callContextError("SubscribeQueued")
	}
	s.activateQueued()
	return nil
}

// Unsubscribe disposes the active Scope and everything it owns.
func Unsubscribe() error {
	s := currentScope()
	if s == nil {
		return callContextError("Unsubscribe")
	}
	s.dispose()
	return nil
}

// CurrentScheduler returns the Scheduler of the nearest host. It is nil
// inside services.
func CurrentScheduler() (*Scheduler, error) {
	s := currentScope()
	if s == nil {
		return nil, callContextError("CurrentScheduler")
	}
	return s.Scheduler(), nil
}

// MarkDirty marks the nearest host dirty.
func MarkDirty() error {
	s := currentScope()
	if s == nil {
		return callContextError("MarkDirty")
	}
	if sched := s.Scheduler(); sched != nil {
		sched.MarkDirty()
	}
	return nil
}
