package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

// RetryingClient retries transient oracle failures and stops calling a
// backend that keeps failing.
type RetryingClient struct {
	client  domain.LLMClient
	policy  resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	metrics *observability.Metrics
	logger  observability.Logger
}

// RetryOption configures a RetryingClient
type RetryOption func(*RetryingClient)

// WithCircuitBreaker replaces the default breaker; nil disables it.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) RetryOption {
	return func(c *RetryingClient) { c.breaker = cb }
}

// WithRetryMetrics records every retry as llm_retries_total
func WithRetryMetrics(m *observability.Metrics) RetryOption {
	return func(c *RetryingClient) { c.metrics = m }
}

// WithRetryLogger sets the logger used for retry warnings
func WithRetryLogger(l observability.Logger) RetryOption {
	return func(c *RetryingClient) { c.logger = l }
}

// NewRetryingClient wraps client with policy
func NewRetryingClient(client domain.LLMClient, policy resilience.RetryPolicy, opts ...RetryOption) *RetryingClient {
	c := &RetryingClient{
		client:  client,
		policy:  policy,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		logger:  observability.NewStructuredLogger("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat implements domain.LLMClient
func (c *RetryingClient) Chat(ctx context.Context, messages []domain.Message, opts domain.ChatOptions) (*domain.ChatResponse, error) {
	if c.breaker != nil && !c.breaker.CanExecute() {
		return nil, resilience.ErrCircuitOpen
	}

	var resp *domain.ChatResponse
	err := c.policy.Do(ctx, func() error {
		r, err := c.client.Chat(ctx, messages, opts)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, func(err error, wait time.Duration) {
		reason := "transient"
		if errors.Is(err, resilience.ErrRateLimited) {
			reason = "rate_limited"
		}
		if c.metrics != nil {
			c.metrics.RecordLLMRetry(ctx, reason)
		}
		c.logger.Warn(ctx, "Retrying oracle call", map[string]interface{}{
			"reason": reason,
			"wait":   wait.String(),
			"error":  err.Error(),
		})
	})

	if c.breaker != nil && ctx.Err() == nil {
		if err != nil {
			if c.breaker.RecordFailure() {
				c.logger.Warn(ctx, "Oracle circuit opened")
			}
		} else {
			c.breaker.RecordSuccess()
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
