package domain

import (
	"context"
)

// LLMClient defines the interface for language model interactions
type LLMClient interface {
	// Chat performs a chat completion
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResponse, error)
}

// SearchClient defines the interface for encyclopedia-scoped web search
type SearchClient interface {
	// Search returns at most maxResults hits. An empty slice means no hits.
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// ArticleFetcher retrieves article structure and section text
type ArticleFetcher interface {
	// GetStructure returns title, lead summary and section titles
	GetStructure(ctx context.Context, url string) (*ArticleStructure, error)

	// GetSection returns the plain text of one section, resolved by title
	GetSection(ctx context.Context, url, section string) (string, error)
}

// RunStore persists evaluation run artifacts
type RunStore interface {
	// SaveQuestions records the sampled questions of a run
	SaveQuestions(ctx context.Context, questions []BenchmarkQuestion) error

	// SaveTrace records the full session result for one question
	SaveTrace(ctx context.Context, questionID string, result *SessionResult) error

	// SaveResponses rewrites the response list with every record so far
	SaveResponses(ctx context.Context, records []EvalRecord) error

	// LoadResponses reads back the response list
	LoadResponses(ctx context.Context) ([]EvalRecord, error)

	// AppendMetadata appends one run description to the metadata log
	AppendMetadata(ctx context.Context, meta RunMetadata) error
}

// ChatOptions provides options for chat completions
type ChatOptions struct {
	Model string `json:"model,omitempty"`
	// Temperature is nil when the provider default applies. A non-nil
	// zero pins deterministic decoding.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Temperature returns a pointer suitable for ChatOptions.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	Content      string     `json:"content"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
