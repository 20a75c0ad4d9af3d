package compose

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/compose/pkg/stream"
)

func TestOperationsOutOfContext(t *testing.T) {
	if CurrentScope() != nil {
		t.Fatal("test goroutine should have no active scope")
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"AddTeardown", func() error { return AddTeardown(func() {}) }},
		{"AddDisposable", func() error { return AddDisposable(stream.NewSubscription()) }},
		{"AddCheck", func() error { return AddCheck(DoCheck, CheckFunc(func() {})) }},
		{"RunCheck", func() error { return RunCheck(DoCheck) }},
		{"SubscribeQueued", SubscribeQueued},
		{"Unsubscribe", Unsubscribe},
		{"MarkDirty", MarkDirty},
		{"CurrentScheduler", func() error { _, err := CurrentScheduler(); return err }},
		{"NewGroup", func() error { _, err := NewGroup(); return err }},
		{"Resolve", func() error { _, err := Resolve("token"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrCallContext) {
				t.Fatalf("expected ErrCallContext, got %v", err)
			}
			var cce *CallContextError
			if !errors.As(err, &cce) || cce.Op != tt.name {
				t.Errorf("expected op %q, got %v", tt.name, err)
			}
		})
	}
}

func TestRunInScopeRestoresOnPanic(t *testing.T) {
	outer := newScope(ServiceScope, nil)
	inner := newScope(ServiceScope, nil)

	RunInScope(outer, func() {
		func() {
			defer func() { _ = recover() }()
			RunInScope(inner, func() {
				if CurrentScope() != inner {
					t.Error("inner scope should be active")
				}
				panic("boom")
			})
		}()
		if CurrentScope() != outer {
			t.Error("outer scope should be restored after a panic")
		}
	})

	if CurrentScope() != nil {
		t.Error("no scope should be active after RunInScope returns")
	}
}

func TestRunInScopeNilClearsScope(t *testing.T) {
	s := newScope(ServiceScope, nil)
	RunInScope(s, func() {
		RunInScope(nil, func() {
			if CurrentScope() != nil {
				t.Error("nil should clear the active scope")
			}
			RunInScope(newScope(ServiceScope, nil), func() {})
		})
		if CurrentScope() != s {
			t.Error("scope should survive a nested clear")
		}
	})
}

func TestScopeIsGoroutineLocal(t *testing.T) {
	s := newScope(ServiceScope, nil)
	seen := make(chan *Scope)
	RunInScope(s, func() {
		go func() { seen <- CurrentScope() }()
		if got := <-seen; got != nil {
			t.Errorf("new goroutine should not inherit the scope, got %v", got.ID())
		}
	})
}

func TestScopeDisposeReleasesInOrderOnce(t *testing.T) {
	s := newScope(ServiceScope, nil)
	var order []int
	RunInScope(s, func() {
		for i := 1; i <= 3; i++ {
			i := i
			if err := AddTeardown(func() { order = append(order, i) }); err != nil {
				t.Fatal(err)
			}
		}
	})

	s.dispose()
	s.dispose()

	if !reflect.DeepEqual(order, []int{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", order)
	}

	late := 0
	s.Add(stream.TeardownFunc(func() { late++ }))
	if late != 1 {
		t.Errorf("teardown added after dispose should run at once, got %d", late)
	}
}

func TestScopeReportsTeardownPanics(t *testing.T) {
	rec := &errorRecorder{}
	s := newScope(ServiceScope, nil)
	s.errors = rec
	boom := errors.New("boom")
	ran := false

	s.Add(stream.TeardownFunc(func() { panic(boom) }))
	s.Add(stream.TeardownFunc(func() { ran = true }))
	s.dispose()

	if !ran {
		t.Error("later teardowns should still run")
	}
	if rec.count() != 1 || !errors.Is(rec.last(), boom) {
		t.Errorf("expected boom reported, got %v", rec.last())
	}
}

func TestUnsubscribeDisposesActiveScope(t *testing.T) {
	s := newScope(ServiceScope, nil)
	released := false
	RunInScope(s, func() {
		_ = AddTeardown(func() { released = true })
		if err := Unsubscribe(); err != nil {
			t.Fatal(err)
		}
	})
	if !released || !s.Disposed() {
		t.Error("Unsubscribe should dispose the active scope")
	}
}

func TestCheckPhasesRunInOrder(t *testing.T) {
	host := &testHost{}
	var log []string

	v := NewView(host, MapProps{}, func() State {
		for _, p := range []CheckPhase{ViewCheck, ContentCheck, DoCheck} {
			p := p
			if err := AddCheck(p, CheckFunc(func() { log = append(log, p.String()) })); err != nil {
				t.Fatal(err)
			}
		}
		return nil
	})
	defer v.Destroy()

	mount(v)
	mount(v)

	want := []string{
		"do-check", "content-check", "view-check",
		"do-check", "content-check", "view-check",
	}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected %v, got %v", want, log)
	}
}

type countingCheck struct{ n *int }

func (c countingCheck) Check() { *c.n++ }

func TestAddCheckDeduplicates(t *testing.T) {
	n := 0
	chk := &countingCheck{n: &n}
	v := NewView(&testHost{}, nil, func() State {
		_ = AddCheck(DoCheck, chk)
		_ = AddCheck(DoCheck, chk)
		return nil
	})
	defer v.Destroy()

	v.DoCheck()
	if n != 1 {
		t.Errorf("duplicate check should run once, ran %d", n)
	}
}

func TestChecksFromNestedScopeLeaveWithIt(t *testing.T) {
	trigger := NewCell(0)
	var log []int

	v := NewView(&testHost{}, nil, func() State {
		Subscribe[int](trigger, Next(func(n int) Cleanup {
			_ = AddCheck(DoCheck, CheckFunc(func() { log = append(log, n) }))
			return nil
		}))
		return nil
	})
	defer v.Destroy()
	mount(v)
	v.DoCheck()

	trigger.Set(1)
	v.DoCheck()

	if !reflect.DeepEqual(log, []int{0, 1}) {
		t.Errorf("only the current reaction's check should run, got %v", log)
	}
}

func TestRunCheckInsideHost(t *testing.T) {
	n := 0
	v := NewView(&testHost{}, nil, func() State {
		_ = AddCheck(ContentCheck, CheckFunc(func() { n++ }))
		if err := RunCheck(ContentCheck); err != nil {
			t.Fatal(err)
		}
		return nil
	})
	defer v.Destroy()

	if n != 1 {
		t.Errorf("expected one check, got %d", n)
	}
}

func TestAddCheckOutsideHostFails(t *testing.T) {
	svc, err := NewService[error](nil, func() error {
		return AddCheck(DoCheck, CheckFunc(func() {}))
	})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Destroy()
	if !errors.Is(svc.Value(), ErrCallContext) {
		t.Errorf("services have no check sets, got %v", svc.Value())
	}
}

func TestInject(t *testing.T) {
	greeting := NewToken[string]("greeting")
	missing := NewToken[int]("missing")

	resolver := ResolverFunc(func(token any) (any, error) {
		if CurrentScope() != nil {
			t.Error("resolver should run without an active scope")
		}
		if token == greeting {
			return "hello", nil
		}
		return nil, ErrNotProvided
	})

	type result struct {
		greeting string
		err      error
	}
	svc, err := NewService[result](resolver, func() result {
		g, err := Inject(greeting)
		if err != nil {
			t.Fatal(err)
		}
		_, err = Inject(missing)
		return result{greeting: g, err: err}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Destroy()

	if svc.Value().greeting != "hello" {
		t.Errorf("expected hello, got %q", svc.Value().greeting)
	}
	var re *ResolveError
	if !errors.Is(svc.Value().err, ErrNotProvided) || !errors.As(svc.Value().err, &re) || re.Token != missing {
		t.Errorf("expected ResolveError for missing, got %v", svc.Value().err)
	}
}

func TestResolverKeepsCallerScope(t *testing.T) {
	tok := NewToken[*Service[int]]("lazy")
	resolver := ResolverFunc(func(any) (any, error) {
		return NewService[int](nil, func() int { return 1 })
	})

	svc, err := NewService[*Scope](resolver, func() *Scope {
		MustInject(tok)
		return CurrentScope()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Destroy()

	if svc.Value() != svc.Scope() {
		t.Error("caller scope should be active after resolving")
	}
}

func TestInjectWithoutResolver(t *testing.T) {
	svc, err := NewService[error](nil, func() error {
		_, err := Inject(NewToken[int]("n"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(svc.Value(), ErrNotProvided) {
		t.Errorf("expected ErrNotProvided, got %v", svc.Value())
	}
}

func TestMustInjectPanicsIntoServiceError(t *testing.T) {
	_, err := NewService[int](nil, func() int {
		return MustInject(NewToken[int]("n"))
	})
	if !errors.Is(err, ErrNotProvided) {
		t.Errorf("expected ErrNotProvided, got %v", err)
	}
}
