package observability

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	meter metric.Meter

	// Counters
	sessionsTotal          metric.Int64Counter
	stepsTotal             metric.Int64Counter
	loopInterventionsTotal metric.Int64Counter
	parseFailuresTotal     metric.Int64Counter
	oracleFailuresTotal    metric.Int64Counter
	llmRequestsTotal       metric.Int64Counter
	llmTokensUsedTotal     metric.Int64Counter
	llmRetriesTotal        metric.Int64Counter
	toolExecutionsTotal    metric.Int64Counter
	evalQuestionsTotal     metric.Int64Counter

	// Histograms
	sessionDuration       metric.Float64Histogram
	sessionSteps          metric.Int64Histogram
	llmRequestDuration    metric.Float64Histogram
	toolExecutionDuration metric.Float64Histogram

	// Gauges
	activeSessions metric.Int64ObservableGauge

	activeSessionCount atomic.Int64
}

// NewMetrics creates all instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}

	counters := []struct {
		dst         *metric.Int64Counter
		name, about string
	}{
		{&m.sessionsTotal, "sessions_total", "Total number of solve sessions by terminal state"},
		{&m.stepsTotal, "steps_total", "Total number of control loop steps by tool"},
		{&m.loopInterventionsTotal, "loop_interventions_total", "Total number of repeated actions intercepted"},
		{&m.parseFailuresTotal, "parse_failures_total", "Total number of unparsable oracle outputs"},
		{&m.oracleFailuresTotal, "oracle_failures_total", "Total number of steps abandoned after oracle errors"},
		{&m.llmRequestsTotal, "llm_requests_total", "Total number of LLM requests"},
		{&m.llmTokensUsedTotal, "llm_tokens_used_total", "Total number of LLM tokens used"},
		{&m.llmRetriesTotal, "llm_retries_total", "Total number of LLM request retries"},
		{&m.toolExecutionsTotal, "tool_executions_total", "Total number of tool executions"},
		{&m.evalQuestionsTotal, "eval_questions_total", "Total number of benchmark questions evaluated"},
	}
	durations := []struct {
		dst         *metric.Float64Histogram
		name, about string
	}{
		{&m.sessionDuration, "session_duration_seconds", "Duration of solve sessions in seconds"},
		{&m.llmRequestDuration, "llm_request_duration_seconds", "Duration of LLM requests in seconds"},
		{&m.toolExecutionDuration, "tool_execution_duration_seconds", "Duration of tool executions in seconds"},
	}

	var errs []error
	for _, c := range counters {
		var err error
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.about), metric.WithUnit("1"))
		errs = append(errs, err)
	}
	for _, h := range durations {
		var err error
		*h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.about), metric.WithUnit("s"))
		errs = append(errs, err)
	}

	var err error
	m.sessionSteps, err = meter.Int64Histogram("session_steps",
		metric.WithDescription("Steps consumed per solve session"),
		metric.WithUnit("1"),
	)
	errs = append(errs, err)

	m.activeSessions, err = meter.Int64ObservableGauge("active_sessions",
		metric.WithDescription("Number of solve sessions in progress"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeSessionCount.Load())
			return nil
		}),
	)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}
	return m, nil
}

// RecordSessionStart records a new solve session
func (m *Metrics) RecordSessionStart(ctx context.Context) {
	m.activeSessionCount.Add(1)
}

// RecordSessionComplete records the terminal state of a solve session
func (m *Metrics) RecordSessionComplete(ctx context.Context, duration time.Duration, state string, steps int) {
	attrs := metric.WithAttributes(attribute.String("state", state))
	m.sessionsTotal.Add(ctx, 1, attrs)
	m.sessionDuration.Record(ctx, duration.Seconds(), attrs)
	m.sessionSteps.Record(ctx, int64(steps), attrs)
	m.activeSessionCount.Add(-1)
}

// RecordStep records one recorded control loop step
func (m *Metrics) RecordStep(ctx context.Context, tool string, intercepted bool) {
	m.stepsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.Bool("intercepted", intercepted),
		),
	)
	if intercepted {
		m.loopInterventionsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("tool", tool)),
		)
	}
}

// RecordParseFailure records oracle output no strategy could decode
func (m *Metrics) RecordParseFailure(ctx context.Context) {
	m.parseFailuresTotal.Add(ctx, 1)
}

// RecordOracleFailure records a step abandoned because the oracle failed
func (m *Metrics) RecordOracleFailure(ctx context.Context) {
	m.oracleFailuresTotal.Add(ctx, 1)
}

// RecordLLMRequest records an LLM request
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, promptTokens, completionTokens int64, duration time.Duration, success bool) {
	status := outcomeLabel(success)

	m.llmRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
		),
	)

	m.llmTokensUsedTotal.Add(ctx, promptTokens+completionTokens,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("type", "total"),
		),
	)

	m.llmRequestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)
}

// RecordLLMRetry records a retried LLM request
func (m *Metrics) RecordLLMRetry(ctx context.Context, reason string) {
	m.llmRetriesTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordToolExecution records a tool execution
func (m *Metrics) RecordToolExecution(ctx context.Context, toolName string, duration time.Duration, success bool) {
	status := outcomeLabel(success)

	m.toolExecutionsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", toolName),
			attribute.String("status", status),
		),
	)

	m.toolExecutionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("tool", toolName),
			attribute.String("status", status),
		),
	)
}

// RecordEvalQuestion records one evaluated benchmark question
func (m *Metrics) RecordEvalQuestion(ctx context.Context, success, answered bool) {
	m.evalQuestionsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("success", success),
			attribute.Bool("answered", answered),
		),
	)
}

// ActiveSessions returns the current number of solve sessions in progress
func (m *Metrics) ActiveSessions() int64 {
	return m.activeSessionCount.Load()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
