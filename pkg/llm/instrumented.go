package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/observability"
)

// InstrumentedLLMClient wraps an LLM client with observability
type InstrumentedLLMClient struct {
	client    domain.LLMClient
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	provider  string
	model     string
}

// NewInstrumentedLLMClient creates a new instrumented LLM client
func NewInstrumentedLLMClient(client domain.LLMClient, telemetry *observability.Telemetry, metrics *observability.Metrics, provider, model string) (*InstrumentedLLMClient, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}
	if metrics == nil {
		m, err := observability.NewMetrics(telemetry.Meter())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		metrics = m
	}

	return &InstrumentedLLMClient{
		client:    client,
		telemetry: telemetry,
		metrics:   metrics,
		provider:  provider,
		model:     model,
	}, nil
}

// Chat forwards to the wrapped client inside an llm.chat span and records
// latency and token usage. Failed calls are counted with zero tokens.
func (c *InstrumentedLLMClient) Chat(ctx context.Context, messages []domain.Message, opts domain.ChatOptions) (*domain.ChatResponse, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	ctx, span := c.telemetry.StartSpan(ctx, "llm.chat", trace.WithAttributes(requestAttributes(c.provider, model, len(messages), opts)...))
	defer span.End()

	began := time.Now()
	resp, err := c.client.Chat(ctx, messages, opts)
	elapsed := time.Since(began)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordLLMRequest(ctx, model, 0, 0, elapsed, false)
		return nil, err
	}

	usage := resp.Usage
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", usage.PromptTokens),
		attribute.Int("llm.completion_tokens", usage.CompletionTokens),
		attribute.Int("llm.total_tokens", usage.TotalTokens),
		attribute.String("llm.finish_reason", resp.FinishReason),
	)
	span.SetStatus(codes.Ok, "")
	c.metrics.RecordLLMRequest(ctx, model, int64(usage.PromptTokens), int64(usage.CompletionTokens), elapsed, true)
	return resp, nil
}

func requestAttributes(provider, model string, messageCount int, opts domain.ChatOptions) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
		attribute.Int("llm.message_count", messageCount),
		attribute.Int("llm.max_tokens", opts.MaxTokens),
	}
	if opts.Temperature != nil {
		attrs = append(attrs, attribute.Float64("llm.temperature", *opts.Temperature))
	}
	if len(opts.Stop) > 0 {
		attrs = append(attrs, attribute.Int("llm.stop_sequences", len(opts.Stop)))
	}
	return attrs
}
