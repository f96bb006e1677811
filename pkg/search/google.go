package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// maxGoogleResults is the Custom Search API page size limit.
const maxGoogleResults = 10

// Google queries the Custom Search JSON API
type Google struct {
	endpoint string
	apiKey   string
	engineID string
	client   *http.Client
}

// NewGoogle creates a Custom Search backend
func NewGoogle(apiKey, engineID, endpoint string, client *http.Client) (*Google, error) {
	if apiKey == "" || engineID == "" {
		return nil, fmt.Errorf("google search requires an API key and engine ID")
	}
	if endpoint == "" {
		endpoint = googleEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Google{endpoint: endpoint, apiKey: apiKey, engineID: engineID, client: client}, nil
}

// Name implements Backend
func (g *Google) Name() string { return "google" }

// Search implements Backend
func (g *Google) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	if maxResults > maxGoogleResults {
		maxResults = maxGoogleResults
	}
	params := url.Values{
		"key": {g.apiKey},
		"cx":  {g.engineID},
		"q":   {query},
		"num": {strconv.Itoa(maxResults)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resilience.StatusError{Service: "google", Code: resp.StatusCode, Body: string(body)}
	}

	var decoded struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode google response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if !isEncyclopediaURL(item.Link) {
			continue
		}
		results = append(results, domain.SearchResult{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}
