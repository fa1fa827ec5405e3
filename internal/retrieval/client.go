// Package retrieval provides the search/retrieval client consumed by
// the fact-extraction stage. The client is a capability object: it is
// constructed at the process entry point and handed only to the
// extraction stage, which is the single component allowed to issue
// retrieval calls.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/meridianlabs/meridian/internal/logging"
)

// Result is a single search hit.
type Result struct {
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Content        string    `json:"content"`
	Published      time.Time `json:"published"`
	RelevanceScore float64   `json:"relevance_score"` // 0-1
	SourceName     string    `json:"source_name"`
}

// Searcher is the retrieval contract the extraction stage depends on.
type Searcher interface {
	// Available returns true if the retrieval service is configured.
	Available() bool

	// Search returns results for the query, most relevant first.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Client calls an HTTP search API that returns scored results.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a retrieval client. The limiter spaces calls out
// with a minimum inter-call delay; it is advisory, not a concurrency
// gate.
func NewClient(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = "https://api.tavily.com/search"
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// Available returns true if the API key is configured.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// Search executes a search against the retrieval API.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if !c.Available() {
		return nil, fmt.Errorf("retrieval client not configured")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": maxResults,
		"topic":       "news",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.Error("retrieval API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("retrieval API error (status %d): %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Results []struct {
			Title         string  `json:"title"`
			URL           string  `json:"url"`
			Content       string  `json:"content"`
			PublishedDate string  `json:"published_date"`
			Score         float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, len(payload.Results))
	for _, r := range payload.Results {
		published, _ := time.Parse(time.RFC3339, r.PublishedDate)
		results = append(results, Result{
			Title:          r.Title,
			URL:            r.URL,
			Content:        r.Content,
			Published:      published,
			RelevanceScore: r.Score,
			SourceName:     hostOf(r.URL),
		})
	}

	logging.Debug("retrieval search completed", "query", query, "results", len(results))
	return results, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}
