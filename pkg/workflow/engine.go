// Package workflow runs the decide, act, observe control loop that drives
// one question to an answer or to the end of its step budget.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ncolesummers/wikihop/pkg/action"
	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/state"
	"github.com/ncolesummers/wikihop/pkg/tools"
)

// Config provides configuration for the control loop
type Config struct {
	// MaxSteps is the hard ceiling on loop iterations, failed ones included.
	MaxSteps int
	// HistoryWindow is the number of recent steps shown in each prompt.
	HistoryWindow int
	// RepeatThreshold is how many back-to-back repeats of one action are
	// tolerated before the guard intercepts.
	RepeatThreshold int
	// ObservationLimit caps observations stored in the trace, in runes.
	ObservationLimit int

	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string

	Session *state.Config
}

// DefaultConfig returns default loop configuration
func DefaultConfig() Config {
	return Config{
		MaxSteps:         25,
		HistoryWindow:    5,
		RepeatThreshold:  1,
		ObservationLimit: 1000,
		Temperature:      0,
		Session:          state.DefaultConfig(),
	}
}

func (c Config) validate() error {
	if c.MaxSteps < 1 {
		return fmt.Errorf("max steps must be at least 1, got %d", c.MaxSteps)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history window must not be negative, got %d", c.HistoryWindow)
	}
	if c.RepeatThreshold < 1 {
		return fmt.Errorf("repeat threshold must be at least 1, got %d", c.RepeatThreshold)
	}
	if c.ObservationLimit < 1 {
		return fmt.Errorf("observation limit must be at least 1, got %d", c.ObservationLimit)
	}
	return nil
}

// Engine drives solve sessions. It holds no per-session state and may be
// shared by concurrent sessions when its collaborators allow it.
type Engine struct {
	llm       domain.LLMClient
	registry  *tools.Registry
	config    Config
	system    string
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	logger    observability.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithTelemetry sets the telemetry used for session and step spans
func WithTelemetry(t *observability.Telemetry) Option {
	return func(e *Engine) { e.telemetry = t }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger
func WithLogger(l observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a control loop engine
func NewEngine(llm domain.LLMClient, registry *tools.Registry, config Config, opts ...Option) (*Engine, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	e := &Engine{
		llm:       llm,
		registry:  registry,
		config:    config,
		system:    systemPrompt(config.SystemPrompt, registry.Catalog()),
		telemetry: observability.NewNoopTelemetry(),
		logger:    observability.NewStructuredLogger("workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Solve answers one question in a fresh session
func (e *Engine) Solve(ctx context.Context, question string) (*domain.SessionResult, error) {
	return e.Run(ctx, state.NewSession(ulid.Make().String(), question, e.config.Session))
}

// Run drives sess until it is answered or its step budget is spent. The
// only error is cancellation of ctx, returned with the partial result.
func (e *Engine) Run(ctx context.Context, sess *state.Session) (*domain.SessionResult, error) {
	ctx, span := e.telemetry.StartSession(ctx, sess.RequestID, sess.Question, e.config.MaxSteps)
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordSessionStart(ctx)
	}

	e.logger.Info(ctx, "Session started", map[string]interface{}{
		"request_id": sess.RequestID,
		"question":   sess.Question,
		"max_steps":  e.config.MaxSteps,
	})

	guard := newLoopGuard(e.config.RepeatThreshold)
	var runErr error
	for !sess.Phase().IsTerminal() && sess.Steps() < e.config.MaxSteps {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		step := sess.BeginStep()
		if err := e.telemetry.InstrumentStep(ctx, step, func(ctx context.Context) error {
			return e.step(ctx, sess, guard, step)
		}); err != nil {
			runErr = err
			break
		}
	}
	sess.Exhaust()

	result := sess.Result()
	if e.metrics != nil {
		e.metrics.RecordSessionComplete(ctx, time.Since(start), string(result.State), result.Steps)
	}
	observability.EndSession(span, string(result.State), result.Steps, result.Answered())

	e.logger.Info(ctx, "Session finished", map[string]interface{}{
		"request_id": sess.RequestID,
		"state":      string(result.State),
		"steps":      result.Steps,
		"answer":     result.Answer(),
		"duration":   time.Since(start).String(),
	})
	return result, runErr
}

// step performs one iteration. A failed oracle call abandons the step
// without a trace entry; only cancellation is returned as an error.
func (e *Engine) step(ctx context.Context, sess *state.Session, guard *loopGuard, step int) error {
	messages := []domain.Message{
		{Role: "system", Content: e.system, Timestamp: time.Now()},
		{Role: "user", Content: stepPrompt(sess, sess.RecentSteps(e.config.HistoryWindow)), Timestamp: time.Now()},
	}

	resp, err := e.llm.Chat(ctx, messages, domain.ChatOptions{
		Model:       e.config.Model,
		Temperature: domain.Temperature(e.config.Temperature),
		MaxTokens:   e.config.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.metrics != nil {
			e.metrics.RecordOracleFailure(ctx)
		}
		e.logger.Warn(ctx, "Oracle call failed, skipping step", map[string]interface{}{
			"step":  step,
			"error": err.Error(),
		})
		return nil
	}

	parsed := action.Parse(resp.Content)
	if !parsed.OK {
		if e.metrics != nil {
			e.metrics.RecordParseFailure(ctx)
		}
		e.logger.Warn(ctx, "Could not parse oracle output", map[string]interface{}{
			"step":   step,
			"output": truncate(resp.Content, 200),
		})
	}
	act := parsed.Decision.Action

	intercepted := guard.Observe(action.Signature(act))
	var observation string
	if intercepted {
		observation = LoopInterventionObservation
		e.logger.Warn(ctx, "Repeated action intercepted", map[string]interface{}{
			"step": step,
			"tool": act.Tool(),
		})
	} else {
		observation = e.registry.Dispatch(ctx, sess, act)
	}

	sess.AppendStep(domain.ReasoningStep{
		Step:        step,
		Thought:     parsed.Decision.Thought,
		Tool:        act.Tool(),
		Args:        action.Args(act),
		Result:      truncate(observation, e.config.ObservationLimit),
		Intercepted: intercepted,
	})
	if e.metrics != nil {
		e.metrics.RecordStep(ctx, act.Tool(), intercepted)
	}

	e.logger.Info(ctx, "Step completed", map[string]interface{}{
		"step":     step,
		"tool":     act.Tool(),
		"thought":  parsed.Decision.Thought,
		"strategy": string(parsed.Strategy),
	})
	return nil
}

// truncate caps s at limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
