package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/compose/pkg/compose"
	"github.com/vango-dev/compose/pkg/composetest"
)

func newRecorded(t *testing.T, opts ...Option) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return New(append([]Option{WithTracerProvider(tp)}, opts...)...), sr
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestFlushSpanParentsRenders(t *testing.T) {
	tr, sr := newRecorded(t, WithAttributes(attribute.String("app", "test")))

	tr.FlushStarted(2)
	tr.RenderFinished("counter", 2*time.Millisecond, nil)
	tr.RenderFinished("list", time.Millisecond, errors.New("render failed"))
	tr.FlushFinished(2, 3*time.Millisecond)

	spans := sr.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	counter, list, flush := spans[0], spans[1], spans[2]

	if flush.Name() != SpanFlush {
		t.Errorf("expected %s last, got %s", SpanFlush, flush.Name())
	}
	if v, _ := attr(flush, "compose.renders"); v.AsInt64() != 2 {
		t.Errorf("expected compose.renders=2, got %v", v.AsInt64())
	}
	if v, _ := attr(flush, "compose.pending"); v.AsInt64() != 2 {
		t.Errorf("expected compose.pending=2, got %v", v.AsInt64())
	}

	for _, s := range []sdktrace.ReadOnlySpan{counter, list} {
		if s.Name() != SpanRender {
			t.Errorf("expected %s, got %s", SpanRender, s.Name())
		}
		if s.Parent().SpanID() != flush.SpanContext().SpanID() {
			t.Errorf("%s: render span should be a child of the flush", s.Name())
		}
		if v, ok := attr(s, "app"); !ok || v.AsString() != "test" {
			t.Errorf("expected app=test on render span, got %v", v)
		}
	}

	if got := counter.EndTime().Sub(counter.StartTime()); got != 2*time.Millisecond {
		t.Errorf("render span should cover the render, got %v", got)
	}
	if counter.Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", counter.Status().Code)
	}
	if list.Status().Code != codes.Error || list.Status().Description != "render failed" {
		t.Errorf("expected Error status, got %+v", list.Status())
	}
}

func TestRenderOutsideFlushIsRoot(t *testing.T) {
	tr, sr := newRecorded(t)
	tr.RenderFinished("orphan", time.Millisecond, nil)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Parent().IsValid() {
		t.Error("render outside a flush should start a root span")
	}
}

func TestHostFilter(t *testing.T) {
	tr, sr := newRecorded(t, WithHostFilter(func(host string) bool {
		return !strings.HasPrefix(host, "internal-")
	}))

	tr.RenderFinished("internal-clock", time.Millisecond, nil)
	tr.RenderFinished("counter", time.Millisecond, nil)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if v, _ := attr(spans[0], "compose.host"); v.AsString() != "counter" {
		t.Errorf("expected counter, got %q", v.AsString())
	}
}

func TestEffectErrors(t *testing.T) {
	tr, sr := newRecorded(t)
	boom := errors.New("boom")

	t.Run("outside a flush", func(t *testing.T) {
		tr.EffectError(7, boom, false)
		spans := sr.Ended()
		last := spans[len(spans)-1]
		if last.Name() != SpanEffectError {
			t.Fatalf("expected %s, got %s", SpanEffectError, last.Name())
		}
		if last.Status().Code != codes.Error {
			t.Errorf("unhandled error should set Error status, got %v", last.Status().Code)
		}
		if v, _ := attr(last, "compose.effect_id"); v.AsString() != "7" {
			t.Errorf("expected effect id 7, got %q", v.AsString())
		}
	})

	t.Run("inside a flush", func(t *testing.T) {
		before := len(sr.Ended())
		tr.FlushStarted(1)
		tr.EffectError(8, boom, true)
		tr.FlushFinished(0, time.Millisecond)

		spans := sr.Ended()
		if len(spans) != before+1 {
			t.Fatalf("expected only the flush span, got %d new", len(spans)-before)
		}
		events := spans[len(spans)-1].Events()
		if len(events) != 1 || events[0].Name != "exception" {
			t.Errorf("expected one exception event, got %v", events)
		}
	})
}

func TestEffectEvents(t *testing.T) {
	tr, sr := newRecorded(t, WithEffectEvents(true))

	tr.EffectSubscribed(1)
	tr.FlushStarted(1)
	tr.EffectSubscribed(2)
	tr.EffectDisposed(2)
	tr.FlushFinished(0, 0)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	var names []string
	for _, e := range spans[0].Events() {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != "effect.subscribed,effect.disposed" {
		t.Errorf("unexpected events %v", names)
	}
}

func TestTracesViewRenders(t *testing.T) {
	tr, sr := newRecorded(t)
	compose.Configure(compose.Config{Instrumentation: tr})
	t.Cleanup(func() { compose.Configure(compose.Config{}) })

	var count *compose.Cell[int]
	composetest.NewView(func() compose.State {
		count = compose.NewCell(0)
		return compose.State{"count": count}
	}).WithName("counter").Mount(t)

	before := len(sr.Ended())
	count.Set(1)

	spans := sr.Ended()[before:]
	if len(spans) != 2 {
		t.Fatalf("expected a render and a flush span, got %d", len(spans))
	}
	if spans[0].Name() != SpanRender || spans[1].Name() != SpanFlush {
		t.Errorf("expected render then flush, got %s, %s", spans[0].Name(), spans[1].Name())
	}
	if v, _ := attr(spans[0], "compose.host"); v.AsString() != "counter" {
		t.Errorf("expected host counter, got %q", v.AsString())
	}
}

func TestNewProvider(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		var buf bytes.Buffer
		tp, err := NewProvider(ProviderConfig{ServiceName: "demo", Exporter: ExporterStdout, Writer: &buf})
		if err != nil {
			t.Fatalf("NewProvider: %v", err)
		}
		tr := New(WithTracerProvider(tp))
		tr.FlushStarted(1)
		tr.FlushFinished(1, time.Millisecond)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
		if !strings.Contains(buf.String(), SpanFlush) {
			t.Errorf("expected exported flush span, got %q", buf.String())
		}
	})

	t.Run("none", func(t *testing.T) {
		tp, err := NewProvider(ProviderConfig{})
		if err != nil {
			t.Fatalf("NewProvider: %v", err)
		}
		_ = tp.Shutdown(context.Background())
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewProvider(ProviderConfig{Exporter: "zipkin"}); err == nil {
			t.Error("expected error for unknown exporter")
		}
	})
}
