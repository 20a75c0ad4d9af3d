package compose

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/compose/pkg/stream"
)

func TestSchedulerRendersOncePerFlush(t *testing.T) {
	host := &testHost{}
	s := NewScheduler("once", host, nil)
	defer s.Close()

	s.MarkDirty()
	s.MarkDirty()
	if !s.Dirty() || Pending() != 1 {
		t.Fatalf("expected one pending scheduler, got %d", Pending())
	}

	Flush()
	Flush()

	if host.renderCount() != 1 {
		t.Errorf("expected 1 render, got %d", host.renderCount())
	}
	if s.Dirty() || Pending() != 0 {
		t.Error("flush should leave nothing dirty")
	}
}

func TestSchedulerClosedIgnoresMarks(t *testing.T) {
	host := &testHost{}
	s := NewScheduler("closed", host, nil)
	s.MarkDirty()
	s.Close()
	s.MarkDirty()
	Flush()

	if host.renderCount() != 0 {
		t.Errorf("closed scheduler rendered %d times", host.renderCount())
	}
	if !s.Closed() {
		t.Error("scheduler should report closed")
	}
}

func TestSchedulerReMarkDuringRender(t *testing.T) {
	host := &testHost{}
	s := NewScheduler("again", host, nil)
	defer s.Close()
	host.onRender = func() {
		if host.renderCount() == 1 {
			s.MarkDirty()
		}
	}

	s.MarkDirty()
	Flush()

	if host.renderCount() != 2 {
		t.Errorf("re-marked scheduler should render again in the same flush, got %d", host.renderCount())
	}
}

func TestSchedulerRenderBudget(t *testing.T) {
	Configure(Config{MaxRendersPerFlush: 3})
	defer Configure(Config{})

	rec := &errorRecorder{}
	host := &testHost{}
	s := NewScheduler("runaway", host, rec)
	defer s.Close()
	host.onRender = s.MarkDirty

	s.MarkDirty()
	Flush()

	if host.renderCount() != 3 {
		t.Errorf("expected 3 renders, got %d", host.renderCount())
	}
	if rec.count() != 1 || !errors.Is(rec.last(), ErrRenderBudget) {
		t.Errorf("expected one ErrRenderBudget, got %v", rec.errs)
	}

	host.onRender = nil
	s.MarkDirty()
	Flush()
	if host.renderCount() != 4 {
		t.Errorf("budget should reset between flushes, got %d renders", host.renderCount())
	}
}

func TestSchedulerReportsRenderErrors(t *testing.T) {
	rec := &errorRecorder{}
	boom := errors.New("boom")
	host := &testHost{err: boom}
	s := NewScheduler("failing", host, rec)
	defer s.Close()

	s.MarkDirty()
	Flush()

	if !errors.Is(rec.last(), boom) {
		t.Errorf("expected boom, got %v", rec.last())
	}
}

func TestSchedulerRecoversRenderPanics(t *testing.T) {
	rec := &errorRecorder{}
	s := NewScheduler("panicking", ChangeDetectorFunc(func() error { panic("render") }), rec)
	defer s.Close()

	s.MarkDirty()
	Flush()

	var pe *PanicError
	if !errors.As(rec.last(), &pe) {
		t.Errorf("expected *PanicError, got %v", rec.last())
	}
}

func TestSchedulerEvents(t *testing.T) {
	s := NewScheduler("events", nil, nil)
	var phases []RenderPhase
	s.Events().Subscribe(stream.NextFunc(func(p RenderPhase) { phases = append(phases, p) }))

	s.MarkDirty()
	Flush()

	completed := false
	s.Events().Subscribe(stream.Funcs[RenderPhase]{CompleteFn: func() { completed = true }})
	s.Close()

	if !reflect.DeepEqual(phases, []RenderPhase{BeforeRender, AfterRender}) {
		t.Errorf("expected before and after, got %v", phases)
	}
	if !completed {
		t.Error("close should complete the event stream")
	}
}

func TestSchedulerDevModeChecksNoChanges(t *testing.T) {
	Configure(Config{DevMode: true})
	defer Configure(Config{})

	host := &testHost{}
	s := NewScheduler("dev", host, nil)
	defer s.Close()
	s.MarkDirty()
	Flush()

	if host.checks != 1 {
		t.Errorf("expected one no-changes check, got %d", host.checks)
	}
}

func TestFlushOrder(t *testing.T) {
	var order []string
	a := NewScheduler("a", ChangeDetectorFunc(func() error { order = append(order, "a"); return nil }), nil)
	b := NewScheduler("b", ChangeDetectorFunc(func() error { order = append(order, "b"); return nil }), nil)
	defer a.Close()
	defer b.Close()

	b.MarkDirty()
	a.MarkDirty()
	Flush()

	if !reflect.DeepEqual(order, []string{"b", "a"}) {
		t.Errorf("expected mark order [b a], got %v", order)
	}
}

func TestBatchRendersOnce(t *testing.T) {
	host := &testHost{}
	var first, last *Cell[string]
	v := NewView(host, MapProps{}, func() State {
		first = NewCell("John")
		last = NewCell("Doe")
		return State{"first": first, "last": last}
	})
	defer v.Destroy()
	mount(v)
	before := host.renderCount()

	Batch(func() {
		first.Set("Jane")
		Batch(func() {
			last.Set("Roe")
		})
		if host.renderCount() != before {
			t.Error("nested batch should not flush")
		}
	})

	if host.renderCount() != before+1 {
		t.Errorf("expected one render for the batch, got %d", host.renderCount()-before)
	}
}

func TestReactionWritesRenderOnce(t *testing.T) {
	host := &testHost{}
	props := MapProps{}
	trigger := NewEmitter[int]()

	v := NewView(host, props, func() State {
		a, b, c := NewCell(0), NewCell(0), NewCell(0)
		Subscribe[int](trigger, Next(func(n int) Cleanup {
			a.Set(n)
			b.Set(n * 2)
			c.Set(n * 3)
			return nil
		}))
		return State{"a": a, "b": b, "c": c}
	})
	defer v.Destroy()
	mount(v)

	if host.renderCount() != 1 {
		t.Fatalf("expected the mount render, got %d", host.renderCount())
	}

	trigger.Emit(5)

	if host.renderCount() != 2 {
		t.Errorf("expected one render for three writes, got %d", host.renderCount()-1)
	}
	if props["a"] != 5 || props["b"] != 10 || props["c"] != 15 {
		t.Errorf("unexpected props %v", props)
	}
}

func TestMarkDirtyInsideView(t *testing.T) {
	host := &testHost{}
	var sched *Scheduler
	v := NewView(host, nil, func() State {
		var err error
		sched, err = CurrentScheduler()
		if err != nil {
			t.Fatal(err)
		}
		if err := MarkDirty(); err != nil {
			t.Fatal(err)
		}
		return nil
	})
	defer v.Destroy()

	if sched != v.Scheduler() {
		t.Error("CurrentScheduler should return the view's scheduler")
	}
	mount(v)
	if host.renderCount() != 1 {
		t.Errorf("expected one render, got %d", host.renderCount())
	}
}
