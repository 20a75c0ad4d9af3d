// Package metrics exports compose runtime events as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	compose.Configure(compose.Config{
//	    Instrumentation: metrics.New(metrics.WithRegistry(reg)),
//	})
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/compose/pkg/compose"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "compose").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush and render duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures New.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "compose",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a compose.Instrumentation backed by Prometheus collectors.
//
// Metrics collected:
//   - compose_flushes_total: Counter of flushes that rendered at least one host
//   - compose_flush_duration_seconds: Histogram of flush duration
//   - compose_flush_pending: Histogram of schedulers pending at flush start
//   - compose_renders_total: Counter of renders by host and status
//   - compose_render_duration_seconds: Histogram of render duration by host
//   - compose_effect_errors_total: Counter of effect errors by type and handling
//   - compose_effects_active: Gauge of subscribed effects
type Metrics struct {
	flushes        prometheus.Counter
	flushDuration  prometheus.Histogram
	flushPending   prometheus.Histogram
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	effectErrors   *prometheus.CounterVec
	effectsActive  prometheus.Gauge
}

var _ compose.Instrumentation = (*Metrics)(nil)

// New registers the collectors and returns the instrumentation. Register
// it with compose.Configure.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of flushes of the dirty host set",
			ConstLabels: config.ConstLabels,
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Flush duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushPending: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_pending",
			Help:        "Dirty schedulers waiting when a flush starts",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 50, 100, 500},
		}),

		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of host renders",
			ConstLabels: config.ConstLabels,
		}, []string{"host", "status"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Host render duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"host"}),

		effectErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_errors_total",
			Help:        "Total number of errors raised in effects",
			ConstLabels: config.ConstLabels,
		}, []string{"error_type", "handled"}),

		effectsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effects_active",
			Help:        "Number of subscribed effects",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// FlushStarted implements compose.Instrumentation.
func (m *Metrics) FlushStarted(pending int) {
	m.flushPending.Observe(float64(pending))
}

// FlushFinished implements compose.Instrumentation.
func (m *Metrics) FlushFinished(renders int, d time.Duration) {
	m.flushDuration.Observe(d.Seconds())
	if renders > 0 {
		m.flushes.Inc()
	}
}

// RenderFinished implements compose.Instrumentation.
func (m *Metrics) RenderFinished(host string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.renders.WithLabelValues(host, status).Inc()
	m.renderDuration.WithLabelValues(host).Observe(d.Seconds())
}

// EffectError implements compose.Instrumentation.
func (m *Metrics) EffectError(_ uint64, err error, handled bool) {
	m.effectErrors.WithLabelValues(categorizeError(err), strconv.FormatBool(handled)).Inc()
}

// EffectSubscribed implements compose.Instrumentation.
func (m *Metrics) EffectSubscribed(uint64) {
	m.effectsActive.Inc()
}

// EffectDisposed implements compose.Instrumentation.
func (m *Metrics) EffectDisposed(uint64) {
	m.effectsActive.Dec()
}

// categorizeError returns a category for the error type.
// This prevents high-cardinality labels from error messages.
func categorizeError(err error) string {
	var pe *compose.PanicError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, compose.ErrCallContext):
		return "call_context"
	case errors.Is(err, compose.ErrNotProvided):
		return "not_provided"
	case errors.Is(err, compose.ErrRenderBudget):
		return "render_budget"
	case errors.Is(err, compose.ErrDisposed):
		return "disposed"
	case errors.As(err, &pe):
		return "panic"
	case strings.Contains(err.Error(), "timeout"):
		return "timeout"
	default:
		return "internal"
	}
}
