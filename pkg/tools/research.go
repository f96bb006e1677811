package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ncolesummers/wikihop/pkg/action"
	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/fetch"
	"github.com/ncolesummers/wikihop/pkg/state"
)

const (
	// DefaultMaxResults is the number of search hits shown per query.
	DefaultMaxResults = 5
	summaryPreview    = 500
	noResults         = "No results found."
	emptySection      = "Section empty or not found."
)

// SearchTool runs an encyclopedia search and remembers the hits so a
// later inspect can select them by ordinal.
type SearchTool struct {
	client     domain.SearchClient
	maxResults int
}

// NewSearchTool creates the search tool
func NewSearchTool(client domain.SearchClient, maxResults int) *SearchTool {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &SearchTool{client: client, maxResults: maxResults}
}

func (t *SearchTool) Name() string { return action.ToolSearch }

func (t *SearchTool) Description() string {
	return "Search Wikipedia. Returns numbered results with title, URL and snippet."
}

func (t *SearchTool) Usage() string { return `{"query": "keywords"}` }

func (t *SearchTool) Execute(ctx context.Context, sess *state.Session, act action.Action) (string, error) {
	a, ok := act.(action.Search)
	if !ok {
		return "", fmt.Errorf("search: unexpected action %T", act)
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", fmt.Errorf("%w: query", ErrMissingField)
	}

	results, err := t.client.Search(ctx, a.Query, t.maxResults)
	if err != nil {
		return "", err
	}
	sess.LastResults = results
	if len(results) == 0 {
		return noResults, nil
	}

	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("%d. [%s](%s)\n   Snippet: %s", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.Join(lines, "\n"), nil
}

// resolveArticle picks the article a selector refers to. A positive
// ordinal indexes the last search results, otherwise url is used as is.
func resolveArticle(sess *state.Session, url string, ordinal int) (string, error) {
	if ordinal > 0 {
		if ordinal > len(sess.LastResults) {
			return "", fmt.Errorf("%w: result %d requested but %d results are available", ErrInvalidSelector, ordinal, len(sess.LastResults))
		}
		return sess.LastResults[ordinal-1].URL, nil
	}
	if ordinal < 0 {
		return "", fmt.Errorf("%w: result %d", ErrInvalidSelector, ordinal)
	}
	return strings.TrimSpace(url), nil
}

// InspectTool shows an article's title, lead summary and section list
type InspectTool struct {
	fetcher domain.ArticleFetcher
}

// NewInspectTool creates the inspect tool
func NewInspectTool(fetcher domain.ArticleFetcher) *InspectTool {
	return &InspectTool{fetcher: fetcher}
}

func (t *InspectTool) Name() string { return action.ToolInspect }

func (t *InspectTool) Description() string {
	return "Show an article's title, summary and section names. Select a search result by number or give a URL."
}

func (t *InspectTool) Usage() string { return `{"url": "https://en.wikipedia.org/wiki/..." or result number}` }

func (t *InspectTool) Execute(ctx context.Context, sess *state.Session, act action.Action) (string, error) {
	a, ok := act.(action.InspectArticle)
	if !ok {
		return "", fmt.Errorf("inspect_article: unexpected action %T", act)
	}
	url, err := resolveArticle(sess, a.URL, a.Result)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", fmt.Errorf("%w: url", fetch.ErrNoArticle)
	}

	structure, err := t.fetcher.GetStructure(ctx, url)
	if err != nil {
		return "", err
	}
	sess.LastInspectedURL = url

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\nSUMMARY: %s...\nSECTIONS:", structure.Title, truncateRunes(structure.Summary, summaryPreview))
	for _, s := range structure.Sections {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return b.String(), nil
}

// ReadSectionTool returns the text of one article section
type ReadSectionTool struct {
	fetcher domain.ArticleFetcher
}

// NewReadSectionTool creates the read_section tool
func NewReadSectionTool(fetcher domain.ArticleFetcher) *ReadSectionTool {
	return &ReadSectionTool{fetcher: fetcher}
}

func (t *ReadSectionTool) Name() string { return action.ToolReadSection }

func (t *ReadSectionTool) Description() string {
	return "Read one section of an article. Use \"lead\" for the introduction. Defaults to the last inspected article."
}

func (t *ReadSectionTool) Usage() string {
	return `{"url": "article URL (optional)", "section_name": "Early life"}`
}

func (t *ReadSectionTool) Execute(ctx context.Context, sess *state.Session, act action.Action) (string, error) {
	a, ok := act.(action.ReadSection)
	if !ok {
		return "", fmt.Errorf("read_section: unexpected action %T", act)
	}
	url, err := resolveArticle(sess, a.URL, a.Result)
	if err != nil {
		return "", err
	}
	if url == "" {
		url = sess.LastInspectedURL
	}
	if url == "" {
		return "", fmt.Errorf("%w: inspect an article first or pass a url", fetch.ErrNoArticle)
	}

	text, err := t.fetcher.GetSection(ctx, url, a.Section)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return emptySection, nil
	}
	return text, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
