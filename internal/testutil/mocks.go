package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ncolesummers/wikihop/pkg/domain"
)

// MockLLMClient is a mock implementation of LLMClient for testing. Replies
// in Script are returned in order; once exhausted the last reply repeats.
type MockLLMClient struct {
	mu           sync.Mutex
	Script       []string
	Errors       []error
	CallCount    int
	LastMessages []domain.Message
	LastOptions  domain.ChatOptions
	// ChatFunc allows custom chat behavior for tests
	ChatFunc func(ctx context.Context, messages []domain.Message, options domain.ChatOptions) (*domain.ChatResponse, error)
}

// NewMockLLMClient creates a mock that replays the given replies
func NewMockLLMClient(script ...string) *MockLLMClient {
	return &MockLLMClient{Script: script}
}

// Chat implements domain.LLMClient
func (m *MockLLMClient) Chat(ctx context.Context, messages []domain.Message, options domain.ChatOptions) (*domain.ChatResponse, error) {
	m.mu.Lock()
	call := m.CallCount
	m.CallCount++
	m.LastMessages = messages
	m.LastOptions = options
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, options)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Errors are consumed first, one per call, nil entries mean success.
	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return nil, err
		}
	}

	content := ""
	switch {
	case len(m.Script) == 0:
		content = "Mock response"
	case call < len(m.Script):
		content = m.Script[call]
	default:
		content = m.Script[len(m.Script)-1]
	}

	return &domain.ChatResponse{
		Content: content,
		Usage: domain.TokenUsage{
			PromptTokens:     50,
			CompletionTokens: 50,
			TotalTokens:      100,
		},
		FinishReason: "stop",
	}, nil
}

// GetCallCount returns the number of Chat calls made
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockSearchClient returns canned results and records queries
type MockSearchClient struct {
	mu      sync.Mutex
	Results map[string][]domain.SearchResult
	Default []domain.SearchResult
	Err     error
	Queries []string
}

// NewMockSearchClient creates a search client that always returns results
func NewMockSearchClient(results ...domain.SearchResult) *MockSearchClient {
	return &MockSearchClient{Results: map[string][]domain.SearchResult{}, Default: results}
}

// Search implements domain.SearchClient
func (s *MockSearchClient) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, query)
	if s.Err != nil {
		return nil, s.Err
	}
	results, ok := s.Results[query]
	if !ok {
		results = s.Default
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	out := make([]domain.SearchResult, len(results))
	copy(out, results)
	return out, nil
}

// QueryCount returns the number of searches issued
func (s *MockSearchClient) QueryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Queries)
}

// MockArticle is one article served by MockArticleFetcher
type MockArticle struct {
	Title    string
	Summary  string
	Sections map[string]string
	Order    []string
}

// MockArticleFetcher serves articles from memory, keyed by URL
type MockArticleFetcher struct {
	mu       sync.Mutex
	Articles map[string]MockArticle
	Calls    []string
}

// NewMockArticleFetcher creates an empty fetcher
func NewMockArticleFetcher() *MockArticleFetcher {
	return &MockArticleFetcher{Articles: map[string]MockArticle{}}
}

// Add registers an article. Sections are listed in Order.
func (f *MockArticleFetcher) Add(url string, article MockArticle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Articles[url] = article
}

// GetStructure implements domain.ArticleFetcher
func (f *MockArticleFetcher) GetStructure(ctx context.Context, url string) (*domain.ArticleStructure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "structure:"+url)
	a, ok := f.Articles[url]
	if !ok {
		return nil, fmt.Errorf("article not found: %s", url)
	}
	return &domain.ArticleStructure{
		URL:      url,
		Title:    a.Title,
		Summary:  a.Summary,
		Sections: append([]string(nil), a.Order...),
	}, nil
}

// GetSection implements domain.ArticleFetcher. Lead aliases and empty
// names return the summary.
func (f *MockArticleFetcher) GetSection(ctx context.Context, url, section string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "section:"+url+"#"+section)
	a, ok := f.Articles[url]
	if !ok {
		return "", fmt.Errorf("article not found: %s", url)
	}
	switch section {
	case "", "lead", "summary", "introduction", "intro":
		return a.Summary, nil
	}
	if text, ok := a.Sections[section]; ok {
		return text, nil
	}
	return "", fmt.Errorf("section %q not found", section)
}
