package llm_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ncolesummers/wikihop/internal/testutil"
	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/llm"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

var fastPolicy = resilience.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestRetryingClientRetriesRateLimit(t *testing.T) {
	mock := testutil.NewMockLLMClient("ok")
	mock.Errors = []error{&resilience.StatusError{Code: http.StatusTooManyRequests}, nil}

	client := llm.NewRetryingClient(mock, fastPolicy)
	resp, err := client.Chat(testutil.NewTestContext(t), nil, domain.ChatOptions{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}
	if got := mock.GetCallCount(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestRetryingClientGivesUp(t *testing.T) {
	limited := &resilience.StatusError{Code: http.StatusTooManyRequests}
	mock := testutil.NewMockLLMClient()
	mock.Errors = []error{limited, limited, limited, limited}

	client := llm.NewRetryingClient(mock, fastPolicy)
	_, err := client.Chat(testutil.NewTestContext(t), nil, domain.ChatOptions{})
	if !errors.Is(err, resilience.ErrRateLimited) {
		t.Errorf("Chat() error = %v, want ErrRateLimited", err)
	}
	if got := mock.GetCallCount(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRetryingClientDoesNotRetryPermanent(t *testing.T) {
	mock := testutil.NewMockLLMClient()
	mock.Errors = []error{&resilience.StatusError{Code: http.StatusBadRequest}}

	client := llm.NewRetryingClient(mock, fastPolicy)
	if _, err := client.Chat(testutil.NewTestContext(t), nil, domain.ChatOptions{}); err == nil {
		t.Fatal("Chat() should fail on 400")
	}
	if got := mock.GetCallCount(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRetryingClientOpensCircuit(t *testing.T) {
	mock := testutil.NewMockLLMClient()
	mock.ChatFunc = func(ctx context.Context, _ []domain.Message, _ domain.ChatOptions) (*domain.ChatResponse, error) {
		return nil, errors.New("connection refused")
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenDuration:     time.Hour,
	})
	client := llm.NewRetryingClient(mock, resilience.RetryPolicy{MaxAttempts: 1}, llm.WithCircuitBreaker(breaker))

	ctx := testutil.NewTestContext(t)
	for i := 0; i < 2; i++ {
		client.Chat(ctx, nil, domain.ChatOptions{})
	}
	if _, err := client.Chat(ctx, nil, domain.ChatOptions{}); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Chat() error = %v, want ErrCircuitOpen", err)
	}
	if got := mock.GetCallCount(); got != 2 {
		t.Errorf("calls = %d, want 2 before the circuit opened", got)
	}
}

func TestInstrumentedClientRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	telemetry := testutil.SetupTestTelemetry(recorder, reader)

	mock := testutil.NewMockLLMClient("reply")
	client, err := llm.NewInstrumentedLLMClient(mock, telemetry, nil, "ollama", "llama3.2")
	if err != nil {
		t.Fatalf("NewInstrumentedLLMClient() error = %v", err)
	}
	if _, err := client.Chat(context.Background(), nil, domain.ChatOptions{Temperature: domain.Temperature(0)}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "llm.chat" {
		t.Fatalf("spans = %v, want one llm.chat", testutil.SpanNames(recorder))
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestNewInstrumentedClientValidates(t *testing.T) {
	if _, err := llm.NewInstrumentedLLMClient(nil, observability.NewNoopTelemetry(), nil, "", ""); err == nil {
		t.Error("nil client should fail")
	}
	if _, err := llm.NewInstrumentedLLMClient(testutil.NewMockLLMClient(), nil, nil, "", ""); err == nil {
		t.Error("nil telemetry should fail")
	}
}
