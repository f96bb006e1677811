// Package search provides encyclopedia-scoped web search behind a shared
// rate limiter and retry policy.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/resilience"
)

// DefaultSiteFilter scopes every query to the encyclopedia.
const DefaultSiteFilter = "site:wikipedia.org"

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// Backend performs one raw search request
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error)
}

// Config configures a Client
type Config struct {
	SiteFilter string
	MaxResults int
	RateLimit  time.Duration
	Retry      resilience.RetryPolicy
}

// Client implements domain.SearchClient
type Client struct {
	backend    Backend
	siteFilter string
	maxResults int
	limiter    *resilience.Limiter
	retry      resilience.RetryPolicy
	logger     observability.Logger
}

// NewClient wraps a backend with site filtering, rate limiting and retries
func NewClient(backend Backend, cfg Config) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("search backend is required")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Client{
		backend:    backend,
		siteFilter: cfg.SiteFilter,
		maxResults: cfg.MaxResults,
		limiter:    resilience.NewLimiter(cfg.RateLimit),
		retry:      cfg.Retry,
		logger:     observability.NewStructuredLogger("search"),
	}, nil
}

// ApplySiteFilter prefixes the filter unless the query already has it
func ApplySiteFilter(query, filter string) string {
	query = strings.TrimSpace(query)
	if filter == "" || strings.Contains(query, filter) {
		return query
	}
	return filter + " " + query
}

// Search implements domain.SearchClient. maxResults <= 0 uses the
// configured default. No hits yields an empty slice and no error.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	filtered := ApplySiteFilter(query, c.siteFilter)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	err := c.retry.Do(ctx, func() error {
		var err error
		results, err = c.backend.Search(ctx, filtered, maxResults)
		return err
	}, func(err error, wait time.Duration) {
		c.logger.Warn(ctx, "Retrying search", map[string]interface{}{
			"backend": c.backend.Name(),
			"error":   err.Error(),
			"wait":    wait.String(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", c.backend.Name(), err)
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	c.logger.Debug(ctx, "Search completed", map[string]interface{}{
		"backend": c.backend.Name(),
		"query":   filtered,
		"results": len(results),
	})
	return results, nil
}

// stripSiteTerms removes site: operators for backends that search the
// encyclopedia directly.
func stripSiteTerms(query string) string {
	fields := strings.Fields(query)
	kept := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "site:") {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// isEncyclopediaURL reports whether a URL points at an article.
func isEncyclopediaURL(u string) bool {
	return strings.Contains(u, "wikipedia.org/wiki/")
}
