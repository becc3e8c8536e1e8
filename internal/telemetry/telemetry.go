// Package telemetry owns the process-wide observability plumbing: the
// prometheus registry served on /metrics and the OpenTelemetry tracer
// provider, exporting over OTLP/HTTP when an endpoint is configured.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// MetricsService is the AppContext service name of the /metrics handler.
const MetricsService = "telemetry.metrics"

// Config selects what is exported.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// OTLPEndpoint is host:port or a full URL. Empty disables export;
	// spans are still created so sampling decisions stay consistent.
	OTLPEndpoint string
	Insecure     bool

	// SampleRatio is the fraction of root spans sampled, in [0, 1].
	SampleRatio float64
}

// Option customizes New.
type Option func(*options)

type options struct {
	processors []sdktrace.SpanProcessor
}

// WithSpanProcessor registers an extra span processor, e.g. a recorder in tests.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.processors = append(o.processors, sp) }
}

// Telemetry bundles the registry and tracer provider.
type Telemetry struct {
	Registry *prometheus.Registry

	tp     *sdktrace.TracerProvider
	logger *slog.Logger
}

// New builds the registry and tracer provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	if cfg.OTLPEndpoint != "" {
		exp, err := otlptracehttp.New(ctx, exporterOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
		logger.Info("trace export enabled", "endpoint", cfg.OTLPEndpoint)
	}
	for _, sp := range o.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	return &Telemetry{
		Registry: reg,
		tp:       sdktrace.NewTracerProvider(tpOpts...),
		logger:   logger,
	}, nil
}

func exporterOptions(cfg Config) []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if strings.Contains(cfg.OTLPEndpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// InstallGlobal makes this provider and the W3C trace context propagator
// the otel globals, so libraries using otel.Tracer pick them up.
func (t *Telemetry) InstallGlobal() {
	otel.SetTracerProvider(t.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Tracer returns a named tracer from this provider.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return t.tp.Tracer(name)
}

// MetricsHandler serves the registry in the prometheus exposition format.
func (t *Telemetry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{Registry: t.Registry})
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.tp.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}
