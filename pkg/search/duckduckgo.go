package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

const duckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo scrapes the lite HTML interface. It honours site: filters,
// so results are post-filtered to article URLs.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo backend; an empty endpoint uses the
// public lite page.
func NewDuckDuckGo(endpoint string, client *http.Client) *DuckDuckGo {
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DuckDuckGo{endpoint: endpoint, client: client}
}

// Name implements Backend
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search implements Backend
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Service: "duckduckgo", Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseLiteResults(string(body), maxResults), nil
}

var (
	linkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	linkPattern2   = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	snippetPattern = regexp.MustCompile(`(?s)<td[^>]*class=['"]result-snippet['"][^>]*>(.*?)</td>`)
	tagPattern     = regexp.MustCompile(`<[^>]+>`)
)

func parseLiteResults(page string, maxResults int) []domain.SearchResult {
	matches := linkPattern.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		matches = linkPattern2.FindAllStringSubmatch(page, -1)
	}
	snippets := snippetPattern.FindAllStringSubmatch(page, -1)

	results := []domain.SearchResult{}
	for i, m := range matches {
		link := resolveRedirect(html.UnescapeString(strings.TrimSpace(m[1])))
		title := cleanHTML(m[2])
		if link == "" || title == "" || !isEncyclopediaURL(link) {
			continue
		}

		snippet := ""
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}
		results = append(results, domain.SearchResult{Title: title, URL: link, Snippet: snippet})
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

// resolveRedirect unwraps //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	return link
}

func cleanHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
