package compose

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/compose/pkg/stream"
)

func TestComputedWithoutSubscribersEvaluatesOnEveryGet(t *testing.T) {
	a := NewCell(1)
	runs := 0
	c := NewComputed(func() int {
		runs++
		return a.Get() * 2
	})

	for i := 0; i < 2; i++ {
		if v := c.Get(); v != 2 {
			t.Fatalf("expected 2, got %d", v)
		}
	}
	if runs != 2 {
		t.Errorf("expected one run per Get, got %d", runs)
	}

	a.Set(5)
	if c.Get() != 10 {
		t.Errorf("expected 10, got %d", c.Get())
	}
}

func TestComputedWithSubscribersCachesAndNotifiesOnChange(t *testing.T) {
	a := NewCell(1)
	runs := 0
	parity := NewComputed(func() bool {
		runs++
		return a.Get()%2 == 0
	})

	var got []bool
	sub := parity.Subscribe(stream.NextFunc(func(v bool) { got = append(got, v) }))
	defer sub.Unsubscribe()

	parity.Get()
	parity.Get()
	if runs != 1 {
		t.Errorf("live computed should serve the cache, ran %d times", runs)
	}

	a.Set(3)
	a.Set(4)

	if !reflect.DeepEqual(got, []bool{false, true}) {
		t.Errorf("expected [false true], got %v", got)
	}
}

func TestComputedChain(t *testing.T) {
	s := NewCell(2)
	half := NewComputed(func() int { return s.Get() / 2 })
	double := NewComputed(func() int { return half.Get() * 2 })
	isEven := NewComputed(func() bool { return double.Get() == s.Get() })

	var got []bool
	isEven.Subscribe(stream.NextFunc(func(v bool) { got = append(got, v) }))

	s.Set(3)
	s.Set(4)

	if got[0] != true || got[len(got)-1] != true {
		t.Errorf("expected true at start and end, got %v", got)
	}
	if isEven.Get() != true || double.Get() != 4 {
		t.Errorf("expected true and 4, got %v and %d", isEven.Get(), double.Get())
	}
}

func TestComputedNestedScopeReplacedPerEvaluation(t *testing.T) {
	a := NewCell(0)
	released := 0
	c := NewComputed(func() int {
		if err := AddTeardown(func() { released++ }); err != nil {
			t.Fatal(err)
		}
		return a.Get()
	})

	c.Get()
	c.Get()
	if released != 1 {
		t.Errorf("previous scope should be released before re-evaluation, got %d", released)
	}

	c.Stop()
	if released != 2 {
		t.Errorf("stop should release the last scope, got %d", released)
	}
}

func TestComputedStop(t *testing.T) {
	a := NewCell(1)
	runs := 0
	c := NewComputed(func() int {
		runs++
		return a.Get()
	})

	completed := 0
	c.Subscribe(stream.Funcs[int]{CompleteFn: func() { completed++ }})
	c.Stop()
	c.Stop()

	if completed != 1 {
		t.Errorf("subscribers should complete once, got %d", completed)
	}
	if a.src.dependentCount() != 0 {
		t.Errorf("stopped computed should detach, %d dependents left", a.src.dependentCount())
	}

	a.Set(2)
	if c.Get() != 1 || runs != 1 {
		t.Errorf("stopped computed should keep its last value, got %d after %d runs", c.Get(), runs)
	}

	late := 0
	c.Subscribe(stream.Funcs[int]{CompleteFn: func() { late++ }})
	if late != 1 {
		t.Errorf("late subscriber should complete at once, got %d", late)
	}
}

func TestComputedStoppedWithScope(t *testing.T) {
	scope := newScope(ServiceScope, nil)
	var c *Computed[int]
	RunInScope(scope, func() {
		c = NewComputed(func() int { return 1 })
	})
	scope.dispose()
	if !c.Stopped() {
		t.Error("computed should stop with its scope")
	}
}

func TestComputedErrorsAreNotTerminal(t *testing.T) {
	boom := errors.New("boom")
	fail := NewCell(false)
	c := NewComputed(func() int {
		if fail.Get() {
			panic(boom)
		}
		return 1
	})

	var vals []int
	var errs []error
	c.Subscribe(stream.Funcs[int]{
		NextFn:  func(v int) { vals = append(vals, v) },
		ErrorFn: func(err error) { errs = append(errs, err) },
	})

	fail.Set(true)
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Fatalf("expected boom, got %v", errs)
	}
	if !errors.Is(c.Err(), boom) {
		t.Errorf("Err should hold boom, got %v", c.Err())
	}

	fail.Set(false)
	if !reflect.DeepEqual(vals, []int{1, 1}) {
		t.Errorf("recovery should notify again, got %v", vals)
	}
	if c.Err() != nil {
		t.Errorf("Err should clear, got %v", c.Err())
	}
}

func TestComputedUnobservedErrorPanicsOutsideScope(t *testing.T) {
	c := NewComputed(func() int { panic("no value") })
	defer func() {
		r := recover()
		var pe *PanicError
		err, _ := r.(error)
		if !errors.As(err, &pe) {
			t.Errorf("expected *PanicError, got %v", r)
		}
	}()
	c.Get()
}

func TestComputedUnobservedErrorReportedInScope(t *testing.T) {
	rec := &errorRecorder{}
	svc, err := NewService[int](nil, func() int {
		c := NewComputed(func() int { panic("no value") })
		return c.Get()
	}, WithErrorHandler(rec))
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Destroy()

	if rec.count() != 1 {
		t.Errorf("expected one reported error, got %d", rec.count())
	}
	if svc.Value() != 0 {
		t.Errorf("expected zero value, got %d", svc.Value())
	}
}

func TestComputedCircularReadReturnsCache(t *testing.T) {
	var c *Computed[int]
	depth := 0
	c = NewComputed(func() int {
		depth++
		if depth > 1 {
			t.Fatal("computed re-entered itself")
		}
		return c.Peek() + 1
	})
	if c.Get() != 1 {
		t.Errorf("expected 1, got %d", c.Get())
	}
}

func TestUntrackedReadsDoNotSubscribe(t *testing.T) {
	a := NewCell(1)
	b := NewCell(10)
	runs := 0
	c := NewComputed(func() int {
		runs++
		var v int
		Untracked(func() { v = b.Get() })
		return a.Get() + v
	})
	c.Subscribe(stream.NextFunc(func(int) {}))

	b.Set(20)
	if runs != 1 {
		t.Errorf("untracked read should not trigger, ran %d times", runs)
	}
	a.Set(2)
	if c.Get() != 22 {
		t.Errorf("expected 22, got %d", c.Get())
	}
}

func TestOnError(t *testing.T) {
	fail := NewCell(false)
	var states []ErrorState
	var c *Computed[int]
	var errState *Cell[*ErrorState]

	svc, err := NewService[struct{}](nil, func() struct{} {
		c = NewComputed(func() int {
			if fail.Get() {
				panic("down")
			}
			return 1
		})
		errState = OnError(c, func(es ErrorState) { states = append(states, es) })
		Subscribe[int](c, Observer[int]{Error: func(error) {}})
		return struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Destroy()

	fail.Set(true)
	if errState.Peek() == nil || errState.Peek().Message != "compose: panic: down" {
		t.Fatalf("expected error state, got %+v", errState.Peek())
	}
	fail.Set(false)
	fail.Set(true)

	if len(states) != 2 || states[1].Retries != 1 {
		t.Errorf("expected two failures with retry count, got %+v", states)
	}

	fail.Set(false)
	if errState.Peek() != nil {
		t.Errorf("recovery should clear the state, got %+v", errState.Peek())
	}
}

func TestAccessorFunc(t *testing.T) {
	src := NewCell(3)
	var written []string
	acc := AccessorFunc(func() int { return src.Get() * 2 }, func(v string) {
		written = append(written, v)
	})

	if acc.Get() != 6 {
		t.Errorf("expected 6, got %d", acc.Get())
	}
	acc.Set("a")
	acc.Next("b")
	if !reflect.DeepEqual(written, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", written)
	}

	var got []int
	sub := acc.Subscribe(stream.NextFunc(func(v int) { got = append(got, v) }))
	defer sub.Unsubscribe()
	src.Set(4)
	if !reflect.DeepEqual(got, []int{6, 8}) {
		t.Errorf("expected [6 8], got %v", got)
	}
}
