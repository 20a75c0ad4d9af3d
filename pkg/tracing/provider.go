package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted by NewProvider.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// ProviderConfig configures NewProvider.
type ProviderConfig struct {
	// ServiceName is recorded as the service.name resource attribute.
	ServiceName string

	// Exporter is "stdout" or "none". Empty means "none".
	Exporter string

	// Writer receives stdout exports. Nil means os.Stdout.
	Writer io.Writer

	// SamplingRate is the fraction of root spans sampled. Zero means 1.
	SamplingRate float64

	// Global installs the provider with otel.SetTracerProvider.
	Global bool
}

// NewProvider builds an SDK tracer provider. Call Shutdown on the result
// to flush pending spans.
func NewProvider(cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultTracerName
	}
	if cfg.SamplingRate <= 0 {
		cfg.SamplingRate = 1
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(cfg.SamplingRate),
		)),
	}

	switch cfg.Exporter {
	case "", ExporterNone:
	case ExporterStdout:
		exporterOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Writer != nil {
			exporterOpts = append(exporterOpts, stdouttrace.WithWriter(cfg.Writer))
		}
		exporter, err := stdouttrace.New(exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("tracing: create stdout exporter: %w", err)
		}
		// Synchronous so short CLI runs do not lose spans.
		opts = append(opts, sdktrace.WithSyncer(exporter))
	default:
		return nil, fmt.Errorf("tracing: unsupported exporter %q", cfg.Exporter)
	}

	provider := sdktrace.NewTracerProvider(opts...)
	if cfg.Global {
		otel.SetTracerProvider(provider)
	}
	return provider, nil
}
