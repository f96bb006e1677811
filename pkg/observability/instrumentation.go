package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentStep wraps one control loop iteration in a span
func (t *Telemetry) InstrumentStep(ctx context.Context, step int, fn func(context.Context) error) error {
	return t.withSpan(ctx, "agent.step", "step", fn, attribute.Int("step.number", step))
}

// InstrumentToolExecution wraps a tool execution in a span named after the tool
func (t *Telemetry) InstrumentToolExecution(ctx context.Context, toolName string, fn func(context.Context) error) error {
	return t.withSpan(ctx, "tool."+toolName, "tool", fn, attribute.String("tool.name", toolName))
}

// withSpan runs fn inside a span and records its outcome under prefix.status
// and prefix.duration_seconds.
func (t *Telemetry) withSpan(ctx context.Context, name, prefix string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := t.StartSpan(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.String(prefix+".status", outcome),
		attribute.Float64(prefix+".duration_seconds", time.Since(start).Seconds()),
	)
	return err
}

// StartSession starts the root span of one solve session
func (t *Telemetry) StartSession(ctx context.Context, requestID, question string, maxSteps int) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "agent.session",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.Int("question.length", len(question)),
			attribute.Int("session.max_steps", maxSteps),
		),
	)
}

// EndSession annotates and ends a session span
func EndSession(span trace.Span, state string, steps int, answered bool) {
	span.SetAttributes(
		attribute.String("session.state", state),
		attribute.Int("session.steps", steps),
		attribute.Bool("session.answered", answered),
	)
	span.SetStatus(codes.Ok, "")
	span.End()
}
