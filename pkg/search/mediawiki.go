package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/fetch"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

// MediaWiki searches through the API's full-text search module
type MediaWiki struct {
	apiURL    string
	userAgent string
	client    *http.Client
}

// NewMediaWiki creates a MediaWiki search backend
func NewMediaWiki(apiURL string, client *http.Client) *MediaWiki {
	if apiURL == "" {
		apiURL = fetch.DefaultAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &MediaWiki{apiURL: apiURL, userAgent: fetch.DefaultUserAgent, client: client}
}

// Name implements Backend
func (m *MediaWiki) Name() string { return "mediawiki" }

type mediaWikiResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// Search implements Backend
func (m *MediaWiki) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	terms := stripSiteTerms(query)
	if terms == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {terms},
		"srlimit":  {strconv.Itoa(maxResults)},
		"format":   {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mediawiki search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resilience.StatusError{Service: "mediawiki", Code: resp.StatusCode, Body: string(body)}
	}

	var decoded mediaWikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode mediawiki search: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("mediawiki search error %s: %s", decoded.Error.Code, decoded.Error.Info)
	}

	results := make([]domain.SearchResult, 0, len(decoded.Query.Search))
	for _, hit := range decoded.Query.Search {
		snippet, err := fetch.HTMLToText(hit.Snippet)
		if err != nil {
			snippet = hit.Snippet
		}
		results = append(results, domain.SearchResult{
			Title:   hit.Title,
			URL:     fetch.ArticleURL(hit.Title),
			Snippet: strings.Join(strings.Fields(snippet), " "),
		})
	}
	return results, nil
}
