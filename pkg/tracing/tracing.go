// Package tracing reports compose runtime events as OpenTelemetry spans.
//
// Every flush becomes a "compose.flush" span with one child span per host
// render. Effect errors are recorded as span events on the running flush,
// or as their own span when no flush is active.
//
//	compose.Configure(compose.Config{
//	    Instrumentation: tracing.New(tracing.WithTracerName("my-app")),
//	})
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. NewProvider builds one for the exporters the
// CLI understands.
package tracing

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/compose/pkg/compose"
)

// Default tracer name.
const defaultTracerName = "compose"

// Span names.
const (
	SpanFlush       = "compose.flush"
	SpanRender      = "compose.render"
	SpanEffectError = "compose.effect.error"
)

// Config configures the tracing instrumentation.
type Config struct {
	// TracerName is the name of the tracer (default: "compose").
	TracerName string

	// TracerProvider supplies the tracer. Nil means otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// TraceEffects adds "effect.subscribed" and "effect.disposed" events to
	// the running flush span. Disabled by default; busy views subscribe
	// many effects per flush.
	TraceEffects bool

	// Filter decides whether a host's renders are traced.
	// If nil, all hosts are traced.
	Filter func(host string) bool

	// Attributes are added to every span.
	Attributes []attribute.KeyValue
}

// Option configures New.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

// WithEffectEvents enables effect lifecycle events.
func WithEffectEvents(enabled bool) Option {
	return func(c *Config) {
		c.TraceEffects = enabled
	}
}

// WithHostFilter sets a filter for traced hosts.
func WithHostFilter(filter func(host string) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// WithAttributes adds attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *Config) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

func defaultConfig() Config {
	return Config{
		TracerName: defaultTracerName,
	}
}

// Tracer is a compose.Instrumentation that emits spans.
type Tracer struct {
	config Config
	tracer trace.Tracer

	mu       sync.Mutex
	flushCtx context.Context
	flush    trace.Span
}

var _ compose.Instrumentation = (*Tracer)(nil)

// New returns a tracing instrumentation.
func New(opts ...Option) *Tracer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		config: config,
		tracer: tp.Tracer(config.TracerName),
	}
}

// FlushStarted implements compose.Instrumentation.
func (t *Tracer) FlushStarted(pending int) {
	attrs := append([]attribute.KeyValue{
		attribute.Int("compose.pending", pending),
	}, t.config.Attributes...)

	ctx, span := t.tracer.Start(context.Background(), SpanFlush,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	t.mu.Lock()
	t.flushCtx, t.flush = ctx, span
	t.mu.Unlock()
}

// FlushFinished implements compose.Instrumentation.
func (t *Tracer) FlushFinished(renders int, _ time.Duration) {
	t.mu.Lock()
	span := t.flush
	t.flushCtx, t.flush = nil, nil
	t.mu.Unlock()

	if span == nil {
		return
	}
	span.SetAttributes(attribute.Int("compose.renders", renders))
	span.SetStatus(codes.Ok, "")
	span.End()
}

// RenderFinished implements compose.Instrumentation. The span is
// backdated by d so it covers the render.
func (t *Tracer) RenderFinished(host string, d time.Duration, err error) {
	if t.config.Filter != nil && !t.config.Filter(host) {
		return
	}
	end := time.Now()
	attrs := append([]attribute.KeyValue{
		attribute.String("compose.host", host),
	}, t.config.Attributes...)

	_, span := t.tracer.Start(t.parent(), SpanRender,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(end.Add(-d)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

// EffectError implements compose.Instrumentation.
func (t *Tracer) EffectError(effectID uint64, err error, handled bool) {
	attrs := []attribute.KeyValue{
		attribute.String("compose.effect_id", strconv.FormatUint(effectID, 10)),
		attribute.Bool("compose.handled", handled),
	}

	if span := t.currentFlush(); span != nil {
		span.RecordError(err, trace.WithAttributes(attrs...))
		return
	}

	_, span := t.tracer.Start(context.Background(), SpanEffectError,
		trace.WithAttributes(append(attrs, t.config.Attributes...)...),
	)
	span.RecordError(err)
	if !handled {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// EffectSubscribed implements compose.Instrumentation.
func (t *Tracer) EffectSubscribed(effectID uint64) {
	t.effectEvent("effect.subscribed", effectID)
}

// EffectDisposed implements compose.Instrumentation.
func (t *Tracer) EffectDisposed(effectID uint64) {
	t.effectEvent("effect.disposed", effectID)
}

func (t *Tracer) effectEvent(name string, effectID uint64) {
	if !t.config.TraceEffects {
		return
	}
	if span := t.currentFlush(); span != nil {
		span.AddEvent(name, trace.WithAttributes(
			attribute.String("compose.effect_id", strconv.FormatUint(effectID, 10)),
		))
	}
}

func (t *Tracer) currentFlush() trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flush
}

// parent returns the running flush context, or a background context for
// renders outside a flush.
func (t *Tracer) parent() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.flushCtx != nil {
		return t.flushCtx
	}
	return context.Background()
}
