package compose

// View binds the state returned by a factory to one host instance.
//
// The host drives it through its lifecycle: DoCheck before it updates,
// ContentChecked after projected content updated, ViewChecked after its
// own view updated, and Destroy when it is torn down. Effects registered
// by the factory subscribe on the first ViewChecked.
type View struct {
	name      string
	scope     *Scope
	scheduler *Scheduler
	props     Props
	errors    ErrorHandler
}

// NewView builds the root Scope for a host instance, runs factory inside
// it and binds the returned State to props.
//
// A panic in factory is reported to the error handler and the View is
// destroyed; the returned View is then inert.
func NewView(host ChangeDetector, props Props, factory func() State, opts ...HostOption) *View {
	cfg := applyHostOptions(opts)
	if props == nil {
		props = MapProps{}
	}

	sched := NewScheduler(cfg.name, host, cfg.errors)
	if d, ok := host.(Detacher); ok {
		d.Detach()
	}

	scope := newScope(HostScope, nil)
	scope.errors = cfg.errors
	scope.resolv = cfg.resolver
	scope.scheduler = sched
	scope.checks = &checkSets{}
	scope.Add(sched)

	v := &View{
		name:      sched.Name(),
		scope:     scope,
		scheduler: sched,
		props:     props,
		errors:    cfg.errors,
	}
	v.setup(factory)
	return v
}

func (v *View) setup(factory func() State) {
	beginPending()
	defer endPending()
	defer func() {
		if r := recover(); r != nil {
			v.errors.HandleError(asError(r))
			v.scope.dispose()
		}
	}()

	RunInScope(v.scope, func() {
		var state State
		if factory != nil {
			state = factory()
		}
		bindState(v.scope, v.props, state)
	})
}

// Name returns the View's name.
func (v *View) Name() string { return v.name }

// Scope returns the View's root Scope.
func (v *View) Scope() *Scope { return v.scope }

// Scheduler returns the View's Scheduler.
func (v *View) Scheduler() *Scheduler { return v.scheduler }

// Props returns the host property bag.
func (v *View) Props() Props { return v.props }

// Destroyed reports whether Destroy was called or setup failed.
func (v *View) Destroyed() bool { return v.scope.Disposed() }

// DoCheck reconciles DoCheck participants.
func (v *View) DoCheck() {
	v.check(DoCheck)
}

// ContentChecked reconciles ContentCheck participants.
func (v *View) ContentChecked() {
	v.check(ContentCheck)
}

// ViewChecked reconciles ViewCheck participants, subscribes queued
// effects and flushes dirty hosts.
func (v *View) ViewChecked() {
	if v.scope.Disposed() {
		return
	}
	Batch(func() {
		RunInScope(v.scope, func() {
			v.scope.runChecks(ViewCheck)
			v.scope.activateQueued()
		})
	})
	Flush()
}

// Destroy disposes the View's Scope: every effect, teardown and binding it
// owns is released and the Scheduler is closed. Calling it again is a
// no-op.
func (v *View) Destroy() {
	v.scope.dispose()
}

// check runs one phase with flushing deferred to ViewChecked.
func (v *View) check(phase CheckPhase) {
	if v.scope.Disposed() {
		return
	}
	beginPending()
	defer endPending()
	RunInScope(v.scope, func() {
		v.scope.runChecks(phase)
	})
}
