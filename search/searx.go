package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/askmesh/askmesh/core"
)

// SearxOptions configures the SearXNG client.
type SearxOptions struct {
	// BaseURL of the SearXNG instance, e.g. "https://searx.example.org".
	BaseURL string

	// Timeout for a single search request.
	Timeout time.Duration

	// Language passed through to the instance ("" lets the instance decide).
	Language string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Searx queries a SearXNG-compatible metasearch instance over its JSON API
// (GET /search?q=...&format=json).
type Searx struct {
	opts SearxOptions
}

// NewSearx creates a SearXNG provider.
func NewSearx(baseURL string, optFns ...func(o *SearxOptions)) *Searx {
	opts := SearxOptions{
		BaseURL: baseURL,
		Timeout: 15 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Searx{opts: opts}
}

// Name implements Provider.
func (s *Searx) Name() string { return "searxng" }

// searxResponse mirrors the instance JSON payload, reduced to the fields
// the pipeline consumes.
type searxResponse struct {
	Query   string        `json:"query"`
	Results []searxResult `json:"results"`
}

type searxResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Engine  string  `json:"engine"`
	Score   float64 `json:"score"`
}

// Search implements Provider.
func (s *Searx) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if s.opts.Language != "" {
		params.Set("language", s.opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("searxng: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng: unexpected status %d", resp.StatusCode)
	}

	var payload searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("searxng: decode response: %w", err)
	}

	results := make([]core.SearchResult, 0, limit)
	for i, r := range payload.Results {
		if i >= limit {
			break
		}
		results = append(results, core.SearchResult{
			ID:      "searx_" + strconv.Itoa(i),
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
			Metadata: map[string]any{
				"engine": r.Engine,
			},
		})
	}
	return results, nil
}
