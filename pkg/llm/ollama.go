package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

// OllamaClient implements the LLMClient interface for Ollama
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	options    OllamaOptions
}

// OllamaOptions configures the Ollama client
type OllamaOptions struct {
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
	TopK        int           `json:"top_k"`
	Timeout     time.Duration `json:"timeout"`
}

// chatMessage is the role/content pair shared by the Ollama and
// OpenAI-compatible wire formats.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Options  map[string]interface{} `json:"options,omitempty"`
	Format   string                 `json:"format,omitempty"`
	Stream   bool                   `json:"stream"`
}

type ollamaChatResponse struct {
	Message         chatMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(baseURL, model string, options *OllamaOptions) *OllamaClient {
	if options == nil {
		options = &OllamaOptions{
			Temperature: 0,
			MaxTokens:   1024,
			Timeout:     2 * time.Minute,
		}
	}
	if options.Timeout <= 0 {
		options.Timeout = 2 * time.Minute
	}

	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: options.Timeout,
		},
		options: *options,
	}
}

// Chat sends a non-streaming /api/chat request in JSON format. Ollama
// reports no finish reason for completed turns, so "stop" is assumed.
func (c *OllamaClient) Chat(ctx context.Context, messages []domain.Message, opts domain.ChatOptions) (*domain.ChatResponse, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	req := ollamaChatRequest{
		Model:    model,
		Messages: toChatMessages(messages),
		Options:  c.buildOptions(opts),
		Format:   "json",
	}
	var out ollamaChatResponse
	if err := c.call(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}

	finish := out.DoneReason
	if finish == "" {
		finish = "stop"
	}
	return &domain.ChatResponse{
		Content: out.Message.Content,
		Usage: domain.TokenUsage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
		FinishReason: finish,
	}, nil
}

// call issues one request against the Ollama API and decodes the JSON reply
// into out. Non-200 replies become a *resilience.StatusError.
func (c *OllamaClient) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &resilience.StatusError{Service: "ollama", Code: resp.StatusCode, Body: string(snippet)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return nil
}

func toChatMessages(messages []domain.Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, msg := range messages {
		out[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}
	return out
}

// buildOptions merges per-call options over client defaults. A non-nil
// zero temperature is sent as is.
func (c *OllamaClient) buildOptions(opts domain.ChatOptions) map[string]interface{} {
	options := make(map[string]interface{})

	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	} else {
		options["temperature"] = c.options.Temperature
	}

	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	} else if c.options.MaxTokens > 0 {
		options["num_predict"] = c.options.MaxTokens
	}

	if c.options.TopP > 0 {
		options["top_p"] = c.options.TopP
	}
	if c.options.TopK > 0 {
		options["top_k"] = c.options.TopK
	}

	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}

	return options
}

// CheckHealth verifies the Ollama service is reachable and that the
// configured model has been pulled.
func (c *OllamaClient) CheckHealth(ctx context.Context) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("ollama service unhealthy: %w", err)
	}
	for _, m := range models {
		if m == c.model || strings.TrimSuffix(m, ":latest") == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not available in ollama (have %v)", c.model, models)
}

// ListModels returns the names of the models pulled into Ollama
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}
