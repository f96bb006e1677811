package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

// GeminiClient calls the Gemini API through the genai SDK
type GeminiClient struct {
	models    *genai.Models
	model     string
	maxTokens int
}

// NewGeminiClient creates a Gemini client for the given API key
func NewGeminiClient(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini requires an API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{models: client.Models, model: model, maxTokens: maxTokens}, nil
}

// Chat performs a content generation call. System messages become the
// system instruction; assistant turns map to the model role.
func (c *GeminiClient) Chat(ctx context.Context, messages []domain.Message, opts domain.ChatOptions) (*domain.ChatResponse, error) {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}

	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if opts.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*opts.Temperature))
	}
	maxTokens := c.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if len(opts.Stop) > 0 {
		config.StopSequences = opts.Stop
	}

	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant", genai.RoleModel:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		if code, msg, ok := apiErrorStatus(err); ok {
			return nil, &resilience.StatusError{Service: "gemini", Code: code, Body: msg}
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	out := &domain.ChatResponse{Content: resp.Text(), FinishReason: "stop"}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		out.FinishReason = strings.ToLower(string(resp.Candidates[0].FinishReason))
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = domain.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// apiErrorStatus extracts the HTTP status from a genai.APIError, which the
// SDK may return by value or by pointer.
func apiErrorStatus(err error) (int, string, bool) {
	var byValue genai.APIError
	if errors.As(err, &byValue) {
		return byValue.Code, byValue.Message, true
	}
	var byPointer *genai.APIError
	if errors.As(err, &byPointer) && byPointer != nil {
		return byPointer.Code, byPointer.Message, true
	}
	return 0, "", false
}
