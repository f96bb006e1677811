// Package tools holds the fixed tool vocabulary of the agent and the
// dispatcher that turns actions into observations.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ncolesummers/wikihop/pkg/action"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/state"
)

var (
	// ErrMissingField is returned when a required argument is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidSelector is returned for a result ordinal outside the
	// last search results.
	ErrInvalidSelector = errors.New("invalid result selector")
)

// Observation texts produced by the dispatcher itself.
const (
	UnparsableObservation = "Error: Could not parse a valid JSON action from your response. " +
		`Reply with exactly one JSON object: {"thought": "...", "tool": "...", "args": {...}}.`
	toolErrorPrefix = "Tool Error: "
)

// Tool is one operation the control loop can dispatch
type Tool interface {
	Name() string
	Description() string
	// Usage shows the expected args object.
	Usage() string
	Execute(ctx context.Context, sess *state.Session, act action.Action) (string, error)
}

// Registry holds tools in registration order and dispatches actions to them
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string

	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	logger    observability.Logger
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithTelemetry wraps every tool execution in a span
func WithTelemetry(t *observability.Telemetry) RegistryOption {
	return func(r *Registry) { r.telemetry = t }
}

// WithMetrics records tool execution counts and durations
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the logger used for tool failures
func WithLogger(l observability.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:     make(map[string]Tool),
		telemetry: observability.NewNoopTelemetry(),
		logger:    observability.NewStructuredLogger("tools"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register registers a new tool
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

// List returns all tools in registration order
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Catalog renders the tool list for the system prompt.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for i, tool := range r.List() {
		fmt.Fprintf(&b, "%d. %s: %s\n   args: %s\n", i+1, tool.Name(), tool.Description(), tool.Usage())
	}
	return b.String()
}

// Dispatch executes act against sess and returns the observation for the
// oracle. Every failure, including a panicking tool, becomes observation
// text.
func (r *Registry) Dispatch(ctx context.Context, sess *state.Session, act action.Action) string {
	switch a := act.(type) {
	case nil:
		return UnparsableObservation
	case action.Unparsable:
		return UnparsableObservation
	case action.Unknown:
		return fmt.Sprintf("Unknown tool: %s. Available tools: %s", a.Name, strings.Join(r.names(), ", "))
	case action.Invalid:
		return fmt.Sprintf("%sinvalid arguments for %s: %s", toolErrorPrefix, a.Name, a.Reason)
	}

	tool, err := r.Get(act.Tool())
	if err != nil {
		return fmt.Sprintf("Unknown tool: %s. Available tools: %s", act.Tool(), strings.Join(r.names(), ", "))
	}

	var output string
	start := time.Now()
	err = r.telemetry.InstrumentToolExecution(ctx, tool.Name(), func(ctx context.Context) error {
		out, err := safeExecute(ctx, tool, sess, act)
		output = out
		return err
	})
	if r.metrics != nil {
		r.metrics.RecordToolExecution(ctx, tool.Name(), time.Since(start), err == nil)
	}

	if err != nil {
		r.logger.Warn(ctx, "Tool execution failed", map[string]interface{}{
			"tool":  tool.Name(),
			"error": err.Error(),
		})
		return toolErrorPrefix + err.Error()
	}
	return output
}

func safeExecute(ctx context.Context, tool Tool, sess *state.Session, act action.Action) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), p)
		}
	}()
	return tool.Execute(ctx, sess, act)
}

func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
