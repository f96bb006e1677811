package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/llm"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

func TestNewOllamaClient(t *testing.T) {
	client := llm.NewOllamaClient("http://localhost:11434", "llama3.2", nil)
	if client == nil {
		t.Error("Expected client, got nil")
	}

	opts := &llm.OllamaOptions{
		Temperature: 0.8,
		MaxTokens:   1500,
		TopP:        0.95,
		TopK:        50,
	}
	if c := llm.NewOllamaClient("http://localhost:11434", "llama3.2", opts); c == nil {
		t.Error("Expected client with options, got nil")
	}
}

func TestOllamaClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}

		var req struct {
			Model   string                 `json:"model"`
			Format  string                 `json:"format"`
			Stream  bool                   `json:"stream"`
			Options map[string]interface{} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("Expected model test-model, got %v", req.Model)
		}
		if req.Format != "json" || req.Stream {
			t.Errorf("format = %q stream = %v, want json and false", req.Format, req.Stream)
		}
		if got, ok := req.Options["temperature"]; !ok || got != 0.0 {
			t.Errorf("temperature = %v (present %v), want explicit 0", got, ok)
		}
		if got := req.Options["num_predict"]; got != 2000.0 {
			t.Errorf("num_predict = %v, want 2000", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":           map[string]interface{}{"role": "assistant", "content": `{"tool":"answer"}`},
			"done":              true,
			"eval_count":        50,
			"prompt_eval_count": 30,
		})
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", &llm.OllamaOptions{Temperature: 0.7})
	response, err := client.Chat(context.Background(), []domain.Message{{Role: "user", Content: "Test message"}}, domain.ChatOptions{
		Temperature: domain.Temperature(0),
		MaxTokens:   2000,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if response.Content != `{"tool":"answer"}` {
		t.Errorf("Content = %s, want the tool envelope", response.Content)
	}
	if response.Usage.TotalTokens != 80 {
		t.Errorf("TotalTokens = %d, want 80", response.Usage.TotalTokens)
	}
	if response.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", response.FinishReason)
	}
}

func TestOllamaClient_Chat_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)
	_, err := client.Chat(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, domain.ChatOptions{})

	var statusErr *resilience.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if !errors.Is(err, resilience.ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited match", err)
	}
	if !resilience.IsTransient(err) {
		t.Error("429 should be transient")
	}
}

func TestOllamaClient_Chat_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Chat(ctx, []domain.Message{{Role: "user", Content: "hi"}}, domain.ChatOptions{}); err == nil {
		t.Error("Expected timeout error, got nil")
	}
}

func TestOllamaClient_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected path /api/tags, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2"},{"name":"qwen2.5"}]}`))
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "llama3.2", nil)
	if err := client.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth() error = %v", err)
	}
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[0] != "llama3.2" {
		t.Errorf("ListModels() = %v, want [llama3.2 qwen2.5]", models)
	}

	missing := llm.NewOllamaClient(server.URL, "mistral", nil)
	if err := missing.CheckHealth(context.Background()); err == nil {
		t.Error("CheckHealth() should fail when the model is not pulled")
	}
}

func TestOpenAIClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if got, ok := req["temperature"]; !ok || got != 0.0 {
			t.Errorf("temperature = %v (present %v), want explicit 0", got, ok)
		}
		w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"{\"tool\":\"search\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}
		}`))
	}))
	defer server.Close()

	client := llm.NewOpenAIClient(server.URL+"/v1/", "sk-test", "gpt-4o-mini", 0, time.Second)
	resp, err := client.Chat(context.Background(), []domain.Message{{Role: "user", Content: "q"}}, domain.ChatOptions{Temperature: domain.Temperature(0)})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != `{"tool":"search"}` || resp.Usage.TotalTokens != 16 {
		t.Errorf("Chat() = %+v", resp)
	}
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := llm.NewOpenAIClient(server.URL, "", "m", 0, time.Second)
	if _, err := client.Chat(context.Background(), nil, domain.ChatOptions{}); err == nil {
		t.Error("Chat() with no choices should fail")
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	if _, err := llm.NewGeminiClient(context.Background(), "", "gemini-2.0-flash", 0); err == nil {
		t.Error("NewGeminiClient() without key should fail")
	}
}
