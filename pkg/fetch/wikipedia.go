// Package fetch retrieves encyclopedia article structure and section text
// through the MediaWiki parse API.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

const (
	// DefaultAPIURL is the English Wikipedia MediaWiki endpoint.
	DefaultAPIURL = "https://en.wikipedia.org/w/api.php"
	// DefaultUserAgent identifies the agent to the API.
	DefaultUserAgent = "wikihop/0.1 (multi-hop question answering agent)"

	maxSuggestedSections = 5
)

var (
	// ErrArticleNotFound is returned when the API reports a missing page.
	ErrArticleNotFound = errors.New("article not found")
	// ErrEmptySection is returned when a resolved section has no text.
	ErrEmptySection = errors.New("section returned empty content")
	// ErrNoArticle is returned for an empty article reference.
	ErrNoArticle = errors.New("no article given")
)

var leadAliases = map[string]bool{
	"":             true,
	"lead":         true,
	"introduction": true,
	"summary":      true,
	"intro":        true,
	"0":            true,
}

// IsLeadAlias reports whether a section name refers to the lead section.
func IsLeadAlias(section string) bool {
	return leadAliases[strings.ToLower(strings.TrimSpace(section))]
}

// SectionNotFoundError lists a few sections that do exist
type SectionNotFoundError struct {
	Section   string
	Available []string
}

func (e *SectionNotFoundError) Error() string {
	shown := e.Available
	if len(shown) > maxSuggestedSections {
		shown = shown[:maxSuggestedSections]
	}
	quoted := make([]string, len(shown))
	for i, s := range shown {
		quoted[i] = "'" + s + "'"
	}
	return fmt.Sprintf("Section '%s' not found. Available sections: [%s]...", e.Section, strings.Join(quoted, ", "))
}

// Config configures a WikipediaFetcher
type Config struct {
	APIURL     string
	UserAgent  string
	Timeout    time.Duration
	Retry      resilience.RetryPolicy
	HTTPClient *http.Client
}

// DefaultFetcherConfig returns the production endpoint settings
func DefaultFetcherConfig() Config {
	return Config{
		APIURL:    DefaultAPIURL,
		UserAgent: DefaultUserAgent,
		Timeout:   10 * time.Second,
		Retry:     resilience.DefaultRetryPolicy(),
	}
}

type sectionEntry struct {
	Line  string `json:"line"`
	Index string `json:"index"`
	Level string `json:"level"`
}

// WikipediaFetcher implements domain.ArticleFetcher. The per-article
// section index cache is shared by concurrent sessions.
type WikipediaFetcher struct {
	apiURL    string
	userAgent string
	client    *http.Client
	retry     resilience.RetryPolicy
	logger    observability.Logger

	mu       sync.Mutex
	sections map[string][]sectionEntry
}

// NewWikipediaFetcher creates a fetcher
func NewWikipediaFetcher(cfg Config) *WikipediaFetcher {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WikipediaFetcher{
		apiURL:    cfg.APIURL,
		userAgent: cfg.UserAgent,
		client:    client,
		retry:     cfg.Retry,
		logger:    observability.NewStructuredLogger("fetch"),
		sections:  make(map[string][]sectionEntry),
	}
}

// TitleFromURL extracts the article slug from an article URL. A value
// without "/wiki/" is treated as a title.
func TitleFromURL(articleURL string) string {
	s := strings.TrimSpace(articleURL)
	if i := strings.LastIndex(s, "/wiki/"); i >= 0 {
		s = s[i+len("/wiki/"):]
		if j := strings.IndexAny(s, "#?"); j >= 0 {
			s = s[:j]
		}
		if unescaped, err := url.PathUnescape(s); err == nil {
			s = unescaped
		}
	}
	return strings.ReplaceAll(s, " ", "_")
}

// ArticleURL builds the canonical article URL for a title
func ArticleURL(title string) string {
	return "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

type parseResponse struct {
	Parse struct {
		Title    string         `json:"title"`
		Sections []sectionEntry `json:"sections"`
		Text     struct {
			Content string `json:"*"`
		} `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// GetStructure implements domain.ArticleFetcher
func (f *WikipediaFetcher) GetStructure(ctx context.Context, articleURL string) (*domain.ArticleStructure, error) {
	slug := TitleFromURL(articleURL)
	if slug == "" {
		return nil, ErrNoArticle
	}

	var sections parseResponse
	if err := f.parse(ctx, slug, url.Values{"prop": {"sections"}}, &sections); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sections[slug] = sections.Parse.Sections
	f.mu.Unlock()

	var lead parseResponse
	if err := f.parse(ctx, slug, url.Values{"prop": {"text"}, "section": {"0"}}, &lead); err != nil {
		return nil, err
	}
	summary, err := HTMLToText(lead.Parse.Text.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to convert lead section: %w", err)
	}

	title := sections.Parse.Title
	if title == "" {
		title = strings.ReplaceAll(slug, "_", " ")
	}

	names := make([]string, 0, len(sections.Parse.Sections))
	for _, s := range sections.Parse.Sections {
		names = append(names, sectionTitle(s.Line))
	}

	return &domain.ArticleStructure{
		URL:      articleURL,
		Title:    title,
		Summary:  summary,
		Sections: names,
	}, nil
}

// GetSection implements domain.ArticleFetcher. Lead aliases resolve to
// section 0; other names match a section title exactly, then as a
// substring, ignoring case.
func (f *WikipediaFetcher) GetSection(ctx context.Context, articleURL, section string) (string, error) {
	slug := TitleFromURL(articleURL)
	if slug == "" {
		return "", ErrNoArticle
	}

	index := "0"
	if !IsLeadAlias(section) {
		entries, err := f.sectionIndex(ctx, articleURL, slug)
		if err != nil {
			return "", err
		}
		idx, ok := matchSection(entries, section)
		if !ok {
			available := make([]string, 0, len(entries))
			for _, e := range entries {
				available = append(available, sectionTitle(e.Line))
			}
			return "", &SectionNotFoundError{Section: section, Available: available}
		}
		index = idx
	}

	var resp parseResponse
	if err := f.parse(ctx, slug, url.Values{"prop": {"text"}, "section": {index}}, &resp); err != nil {
		return "", err
	}
	text, err := HTMLToText(resp.Parse.Text.Content)
	if err != nil {
		return "", fmt.Errorf("failed to convert section: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptySection, section)
	}
	return text, nil
}

func (f *WikipediaFetcher) sectionIndex(ctx context.Context, articleURL, slug string) ([]sectionEntry, error) {
	f.mu.Lock()
	entries, ok := f.sections[slug]
	f.mu.Unlock()
	if ok {
		return entries, nil
	}

	if _, err := f.GetStructure(ctx, articleURL); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sections[slug], nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func sectionTitle(line string) string {
	s := tagPattern.ReplaceAllString(line, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.Join(strings.Fields(s), " ")
}

func normalizeSection(s string) string {
	return strings.ToLower(sectionTitle(s))
}

func matchSection(entries []sectionEntry, target string) (string, bool) {
	want := normalizeSection(target)
	if want == "" {
		return "", false
	}
	for _, e := range entries {
		if normalizeSection(e.Line) == want {
			return e.Index, true
		}
	}
	for _, e := range entries {
		if strings.Contains(normalizeSection(e.Line), want) {
			return e.Index, true
		}
	}
	return "", false
}

func (f *WikipediaFetcher) parse(ctx context.Context, slug string, extra url.Values, out *parseResponse) error {
	params := url.Values{
		"action":    {"parse"},
		"page":      {slug},
		"format":    {"json"},
		"redirects": {"1"},
	}
	for k, v := range extra {
		params[k] = v
	}
	endpoint := f.apiURL + "?" + params.Encode()

	err := f.retry.Do(ctx, func() error {
		*out = parseResponse{}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("mediawiki request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &resilience.StatusError{Service: "mediawiki", Code: resp.StatusCode, Body: string(body)}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode mediawiki response: %w", err)
		}
		return nil
	}, func(err error, wait time.Duration) {
		f.logger.Warn(ctx, "Retrying MediaWiki request", map[string]interface{}{
			"page":  slug,
			"error": err.Error(),
			"wait":  wait.String(),
		})
	})
	if err != nil {
		return err
	}

	if out.Error != nil {
		if out.Error.Code == "missingtitle" || out.Error.Code == "invalidtitle" {
			return fmt.Errorf("%w: %s", ErrArticleNotFound, strings.ReplaceAll(slug, "_", " "))
		}
		return fmt.Errorf("mediawiki API error %s: %s", out.Error.Code, out.Error.Info)
	}
	return nil
}
