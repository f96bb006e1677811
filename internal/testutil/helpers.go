package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/observability"
)

// TestTimeout provides a standard timeout for test contexts
const TestTimeout = 5 * time.Second

// NewTestContext creates a context with standard test timeout
func NewTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewTestQuestion creates a benchmark question with a known answer
func NewTestQuestion(id, question, answer string) domain.BenchmarkQuestion {
	return domain.BenchmarkQuestion{ID: id, Question: question, Answer: answer}
}

// Decision renders one oracle reply in the envelope the parser expects.
func Decision(thought, tool string, args map[string]interface{}) string {
	if args == nil {
		args = map[string]interface{}{}
	}
	data, _ := json.Marshal(map[string]interface{}{
		"thought": thought,
		"tool":    tool,
		"args":    args,
	})
	return string(data)
}

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNoError checks if error is nil
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError checks if error is not nil
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error but got nil", msg)
	}
}

// SetupTestTelemetry creates test telemetry with span recorder and metric reader
func SetupTestTelemetry(spanRecorder *tracetest.SpanRecorder, metricReader metric.Reader) *observability.Telemetry {
	tracerProvider := trace.NewTracerProvider(
		trace.WithSpanProcessor(spanRecorder),
	)
	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metricReader),
	)

	config := &observability.TelemetryConfig{
		ServiceName:    "test-service",
		ServiceVersion: "test",
		Environment:    "test",
		EnableTracing:  true,
		EnableMetrics:  true,
		SamplingRate:   1.0,
	}
	return observability.NewTelemetryWithProviders(config, tracerProvider, meterProvider)
}

// SpanNames lists the names of every ended span in the recorder
func SpanNames(recorder *tracetest.SpanRecorder) []string {
	spans := recorder.Ended()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	return names
}
