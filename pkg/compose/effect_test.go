package compose

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vango-dev/compose/pkg/stream"
)

func TestSubscribeWithoutScopeRunsImmediately(t *testing.T) {
	c := NewCell(1)
	var got []int
	e := Subscribe[int](c, collect(&got))
	defer e.Unsubscribe()

	if !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("expected replay [1], got %v", got)
	}
	if e.State() != EffectSubscribed {
		t.Errorf("expected subscribed, got %v", e.State())
	}
	c.Set(2)
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("expected [1 2], got %v", got)
	}
}

func TestEffectQueuedUntilSubscribeQueued(t *testing.T) {
	c := NewCell(1)
	var got []int
	scope := newScope(ServiceScope, nil)
	defer scope.dispose()

	var e *EffectObserver
	RunInScope(scope, func() {
		e = Subscribe[int](c, collect(&got))
	})
	if e.State() != EffectQueued || len(got) != 0 {
		t.Fatalf("expected queued effect without reactions, got %v %v", e.State(), got)
	}

	RunInScope(scope, func() {
		if err := SubscribeQueued(); err != nil {
			t.Fatal(err)
		}
	})
	if e.State() != EffectSubscribed || !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("expected subscribed with [1], got %v %v", e.State(), got)
	}
}

func TestEffectUnsubscribeIsIdempotent(t *testing.T) {
	c := NewCell(0)
	cleanups := 0
	e := Subscribe[int](c, Next(func(int) Cleanup {
		return func() { cleanups++ }
	}))

	e.Unsubscribe()
	e.Unsubscribe()

	if cleanups != 1 {
		t.Errorf("expected cleanup once, got %d", cleanups)
	}
	if !e.Closed() || e.State() != EffectUnsubscribed {
		t.Errorf("expected closed effect, got %v", e.State())
	}
	c.Set(1)
	if cleanups != 1 {
		t.Errorf("closed effect should not react, cleanups %d", cleanups)
	}
}

func TestEffectCleanupRunsBeforeNextReaction(t *testing.T) {
	c := NewCell(0)
	var log []string
	e := Subscribe[int](c, Next(func(v int) Cleanup {
		log = append(log, "run")
		return func() { log = append(log, "cleanup") }
	}))
	c.Set(1)
	e.Unsubscribe()

	want := []string{"run", "cleanup", "run", "cleanup"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected %v, got %v", want, log)
	}
}

func TestNestedEffectsAreRecreatedPerNotification(t *testing.T) {
	outer := NewCell(0)
	inner := NewCell("x")
	created, disposed := 0, 0
	var innerSeen []string

	e := Subscribe[int](outer, Next(func(int) Cleanup {
		Subscribe[string](inner, Next(func(v string) Cleanup {
			innerSeen = append(innerSeen, v)
			return nil
		}))
		Watch(func() Cleanup {
			created++
			return func() { disposed++ }
		})
		return nil
	}))

	if created != 1 || disposed != 0 {
		t.Fatalf("after first run: created %d disposed %d", created, disposed)
	}

	outer.Set(1)
	if created != 2 || disposed != 1 {
		t.Errorf("after second run: created %d disposed %d", created, disposed)
	}

	inner.Set("y")
	if !reflect.DeepEqual(innerSeen, []string{"x", "x", "y"}) {
		t.Errorf("only the current nested effect should react, got %v", innerSeen)
	}

	e.Unsubscribe()
	if disposed != 2 {
		t.Errorf("nested effect should be disposed with its parent, disposed %d", disposed)
	}
	inner.Set("z")
	if len(innerSeen) != 3 {
		t.Errorf("disposed nested effect reacted: %v", innerSeen)
	}
}

func TestEffectErrorIsolation(t *testing.T) {
	rec := &errorRecorder{}
	var bSeen []int
	var a *EffectObserver

	svc, err := NewService[*Cell[int]](nil, func() *Cell[int] {
		src := NewCell(0)
		a = Subscribe[int](src, Next(func(n int) Cleanup {
			if n == 1 {
				panic("A failed")
			}
			return nil
		}))
		Subscribe[int](src, collect(&bSeen))
		return src
	}, WithErrorHandler(rec))
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Destroy()

	src := svc.Value()
	src.Set(1)
	src.Set(2)

	if rec.count() != 1 {
		t.Fatalf("expected one reported error, got %d", rec.count())
	}
	var pe *PanicError
	if !errors.As(rec.last(), &pe) || pe.Value != "A failed" {
		t.Errorf("expected PanicError(A failed), got %v", rec.last())
	}
	if !a.Closed() {
		t.Error("failing effect should be disposed")
	}
	if !reflect.DeepEqual(bSeen, []int{0, 1, 2}) {
		t.Errorf("sibling effect should keep running, got %v", bSeen)
	}
}

func TestEffectLocalErrorHandlerKeepsEffect(t *testing.T) {
	boom := errors.New("boom")
	s := stream.NewSubject[int]()
	rec := &errorRecorder{}
	var handled []error

	e := Subscribe[int](s, Observer[int]{
		Error: func(err error) { handled = append(handled, err) },
	}, WithErrorHandler(rec))
	defer e.Unsubscribe()

	s.Error(boom)

	if len(handled) != 1 || handled[0] != boom {
		t.Errorf("expected local handler to see boom, got %v", handled)
	}
	if rec.count() != 0 {
		t.Errorf("handled error should not escalate, got %d", rec.count())
	}
	if e.Closed() {
		t.Error("handled error should not dispose the effect")
	}
}

func TestEffectUnhandledStreamErrorEscalates(t *testing.T) {
	boom := errors.New("boom")
	s := stream.NewSubject[int]()
	rec := &errorRecorder{}

	e := Subscribe[int](s, Next(func(int) Cleanup { return nil }), WithErrorHandler(rec))
	s.Error(boom)

	if rec.count() != 1 || !errors.Is(rec.last(), boom) {
		t.Errorf("expected boom escalated, got %v", rec.last())
	}
	if !e.Closed() {
		t.Error("effect should be disposed after an escalated error")
	}
}

func TestEffectCompleteReaction(t *testing.T) {
	completed := 0
	var got []int
	Subscribe(stream.Of(1, 2), Observer[int]{
		Next: func(v int) Cleanup {
			got = append(got, v)
			return nil
		},
		Complete: func() { completed++ },
	})

	if !reflect.DeepEqual(got, []int{1, 2}) || completed != 1 {
		t.Errorf("expected [1 2] then complete, got %v (completes %d)", got, completed)
	}
}

func TestDestroyRunsOwnedTeardownOnce(t *testing.T) {
	runs := 0
	svc, err := NewService[*Cell[int]](nil, func() *Cell[int] {
		c := NewCell(0)
		Subscribe[int](c, Next(func(int) Cleanup {
			return func() { runs++ }
		}))
		return c
	})
	if err != nil {
		t.Fatal(err)
	}

	svc.Destroy()
	svc.Destroy()

	if runs != 1 {
		t.Errorf("expected teardown once, got %d", runs)
	}
	svc.Value().Set(1)
	if runs != 1 {
		t.Errorf("destroyed scope should not react, got %d", runs)
	}
}

func TestAbortAfterOneTick(t *testing.T) {
	clock := &manualClock{}
	d := newQueueDispatcher()
	ctrl := stream.NewAbortController()
	count := 0

	e := Subscribe(stream.IntervalWithClock(1000*time.Millisecond, d, clock), Next(func(int) Cleanup {
		count++
		return nil
	}), AbortWith(ctrl.Signal()))

	if clock.tick() != 1 {
		t.Fatal("interval ticker not running")
	}
	if !d.runNext() {
		t.Fatal("tick not dispatched")
	}

	ctrl.Abort()
	ctrl.Abort()

	if clock.tick() != 0 {
		t.Error("ticker should be stopped after abort")
	}
	if count != 1 {
		t.Errorf("expected exactly 1 notification, got %d", count)
	}
	if !e.Closed() {
		t.Error("aborted effect should be closed")
	}
}

func TestAbortWithIgnoresOwnerDisposal(t *testing.T) {
	ctrl := stream.NewAbortController()
	c := NewCell(0)
	var got []int

	svc, err := NewService[struct{}](nil, func() struct{} {
		Subscribe[int](c, collect(&got), AbortWith(ctrl.Signal()))
		return struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	svc.Destroy()

	c.Set(1)
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("abort-bound effect should outlive its scope, got %v", got)
	}

	ctrl.Abort()
	c.Set(2)
	if len(got) != 2 {
		t.Errorf("aborted effect reacted: %v", got)
	}
}

func TestDetachedEffectOutlivesScope(t *testing.T) {
	c := NewCell(0)
	var got []int
	var e *EffectObserver

	svc, err := NewService[struct{}](nil, func() struct{} {
		e = Subscribe[int](c, collect(&got), Detached())
		return struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	svc.Destroy()
	c.Set(1)

	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("detached effect should keep reacting, got %v", got)
	}
	e.Unsubscribe()
	c.Set(2)
	if len(got) != 2 {
		t.Errorf("unsubscribed effect reacted: %v", got)
	}
}

func TestGroupDisposesTogether(t *testing.T) {
	c := NewCell(0)
	var a, b []int
	var group *stream.Subscription

	svc, err := NewService[struct{}](nil, func() struct{} {
		var err error
		group, err = NewGroup()
		if err != nil {
			t.Fatal(err)
		}
		Subscribe[int](c, collect(&a), GroupWith(group))
		Subscribe[int](c, collect(&b), GroupWith(group))
		return struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Destroy()

	group.Unsubscribe()
	c.Set(1)

	if len(a) != 1 || len(b) != 1 {
		t.Errorf("grouped effects should stop together, got %v %v", a, b)
	}
}

func TestEffectInDisposedScopeIsClosed(t *testing.T) {
	scope := newScope(ServiceScope, nil)
	scope.dispose()

	var e *EffectObserver
	RunInScope(scope, func() {
		e = Subscribe[int](NewCell(0), Next(func(int) Cleanup { return nil }))
	})
	if !e.Closed() {
		t.Error("effect created in a disposed scope should be closed")
	}
}

func TestQueuedEffectClosesWithOwner(t *testing.T) {
	scope := newScope(ServiceScope, nil)

	var e *EffectObserver
	RunInScope(scope, func() {
		e = Subscribe[int](NewCell(0), Next(func(int) Cleanup {
			t.Error("effect disposed before activation should not react")
			return nil
		}))
	})
	scope.dispose()

	if !e.Closed() || e.State() != EffectUnsubscribed {
		t.Errorf("expected unsubscribed effect, got %v closed=%v", e.State(), e.Closed())
	}
}

func TestNestedEffectClosesWhenReactionPanics(t *testing.T) {
	var nested *EffectObserver
	outer := Subscribe[int](NewCell(0), Next(func(int) Cleanup {
		nested = Subscribe[int](NewCell(0), Next(func(int) Cleanup { return nil }))
		panic("boom")
	}), WithErrorHandler(ErrorHandlerFunc(func(error) {})))

	if !outer.Closed() {
		t.Error("failing effect should be disposed")
	}
	if nested == nil {
		t.Fatal("nested effect was not created")
	}
	if !nested.Closed() || nested.State() != EffectUnsubscribed {
		t.Errorf("expected nested effect unsubscribed, got %v", nested.State())
	}
}

func TestWatchTracksReads(t *testing.T) {
	first := NewCell("John")
	last := NewCell("Doe")
	var log []string

	e := Watch(func() Cleanup {
		name := first.Get() + " " + last.Get()
		log = append(log, "run "+name)
		return func() { log = append(log, "cleanup "+name) }
	})

	last.Set("Smith")
	e.Unsubscribe()
	first.Set("Jane")

	want := []string{
		"run John Doe",
		"cleanup John Doe",
		"run John Smith",
		"cleanup John Smith",
	}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected %v, got %v", want, log)
	}
}

func TestWatchRerunsOnChange(t *testing.T) {
	a := NewCell(1)
	b := NewCell(2)
	var sums []int
	e := Watch(func() Cleanup {
		sums = append(sums, a.Get()+b.Get())
		return nil
	})
	defer e.Unsubscribe()

	a.Set(10)
	if !reflect.DeepEqual(sums, []int{3, 12}) {
		t.Errorf("expected [3 12], got %v", sums)
	}
}

func TestEffectNameAndState(t *testing.T) {
	e := Subscribe[int](NewCell(0), Next(func(int) Cleanup { return nil }), WithName("printer"))
	defer e.Unsubscribe()
	if e.Name() != "printer" {
		t.Errorf("expected printer, got %q", e.Name())
	}

	states := map[EffectState]string{
		EffectCreated:      "created",
		EffectQueued:       "queued",
		EffectSubscribed:   "subscribed",
		EffectNotifying:    "notifying",
		EffectUnsubscribed: "unsubscribed",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
}

func TestFromStreamAndPipe(t *testing.T) {
	s := stream.NewSubject[int]()
	var cell, evens *Cell[int]

	svc, err := NewService[struct{}](nil, func() struct{} {
		cell = FromStream[int](s, -1)
		evens = Pipe[int, int](s, 0, func(src stream.Subscribable[int]) stream.Subscribable[int] {
			return stream.Filter(src, func(n int) bool { return n%2 == 0 })
		})
		return struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Destroy()

	if cell.Peek() != -1 {
		t.Errorf("expected initial -1, got %d", cell.Peek())
	}
	for i := 1; i <= 3; i++ {
		s.Next(i)
	}
	if cell.Peek() != 3 || evens.Peek() != 2 {
		t.Errorf("expected 3 and 2, got %d and %d", cell.Peek(), evens.Peek())
	}
}
