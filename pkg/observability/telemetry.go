package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/stdr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TelemetryConfig holds configuration for OpenTelemetry
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	OTLPInsecure   bool
	SamplingRate   float64
	EnableTracing  bool
	EnableMetrics  bool
}

// Telemetry manages OpenTelemetry components
type Telemetry struct {
	config        *TelemetryConfig
	tracer        trace.Tracer
	meter         metric.Meter
	shutdownFuncs []func(context.Context) error
}

// NewTelemetry creates and initializes OpenTelemetry. Disabled signals
// fall back to noop providers so callers never nil-check.
func NewTelemetry(config *TelemetryConfig) (*Telemetry, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// Exporter failures must not interleave with CLI output.
	stdr.SetVerbosity(0)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {}))

	t := &Telemetry{config: config}

	res, err := t.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if config.EnableTracing {
		if err := t.initTracing(res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	} else {
		t.tracer = noop.NewTracerProvider().Tracer(config.ServiceName)
	}

	if config.EnableMetrics {
		if err := t.initMetrics(res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	} else {
		t.meter = metricnoop.NewMeterProvider().Meter(config.ServiceName)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// NewTelemetryWithProviders wires caller-supplied providers, typically an
// in-memory span recorder and a manual metric reader in tests.
func NewTelemetryWithProviders(config *TelemetryConfig, tp trace.TracerProvider, mp metric.MeterProvider) *Telemetry {
	if config == nil {
		config = DefaultConfig()
	}
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	return &Telemetry{
		config: config,
		tracer: tp.Tracer(config.ServiceName),
		meter:  mp.Meter(config.ServiceName),
	}
}

// NewNoopTelemetry returns telemetry that records nothing.
func NewNoopTelemetry() *Telemetry {
	return NewTelemetryWithProviders(nil, nil, nil)
}

// DefaultConfig returns a config with every signal disabled. The CLI fills
// the real values from its configuration file.
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		ServiceName:    "wikihop",
		ServiceVersion: "dev",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4318",
		OTLPInsecure:   true,
		SamplingRate:   1.0,
	}
}

func (t *Telemetry) createResource() (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(t.config.ServiceName),
		semconv.ServiceVersion(t.config.ServiceVersion),
		semconv.DeploymentEnvironment(t.config.Environment),
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(hostname))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

// newTraceExporter builds the OTLP/HTTP span exporter. Export retries
// stop after one minute.
func newTraceExporter(ctx context.Context, endpoint string, insecure bool) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithTimeout(10 * time.Second),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 2 * time.Second,
			MaxInterval:     15 * time.Second,
			MaxElapsedTime:  time.Minute,
		}),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
}

func (t *Telemetry) initTracing(res *resource.Resource) error {
	exporter, err := newTraceExporter(context.Background(), t.config.OTLPEndpoint, t.config.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.config.SamplingRate))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	t.shutdownFuncs = append(t.shutdownFuncs, tp.Shutdown)
	otel.SetTracerProvider(tp)

	t.tracer = tp.Tracer(t.config.ServiceName, trace.WithInstrumentationVersion(t.config.ServiceVersion))
	return nil
}

func (t *Telemetry) initMetrics(res *resource.Resource) error {
	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	t.shutdownFuncs = append(t.shutdownFuncs, mp.Shutdown)
	otel.SetMeterProvider(mp)

	t.meter = mp.Meter(
		t.config.ServiceName,
		metric.WithInstrumentationVersion(t.config.ServiceVersion),
	)
	return nil
}

// Shutdown flushes exporters in registration order and joins their errors.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	errs := make([]error, 0, len(t.shutdownFuncs))
	for _, fn := range t.shutdownFuncs {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// Tracer returns the configured tracer
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Meter returns the configured meter
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// StartSpan starts a new span
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}
