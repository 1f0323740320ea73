// Package duckduck provides a client for the DuckDuckGo instant answer API,
// used as a keyless fallback when the primary search provider is down.
package duckduck

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the DuckDuckGo instant answer operations.
type Client interface {
	// InstantAnswer runs a query and returns the abstract plus related topics.
	InstantAnswer(ctx context.Context, query string) (*AnswerResponse, error)
}

// AnswerResponse is the parsed instant answer response.
type AnswerResponse struct {
	Heading       string         `json:"Heading"`
	AbstractText  string         `json:"AbstractText"`
	AbstractURL   string         `json:"AbstractURL"`
	RelatedTopics []RelatedTopic `json:"RelatedTopics"`
}

// RelatedTopic is one related result.
type RelatedTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

// Option configures the DuckDuckGo client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new DuckDuckGo instant answer client. No API key needed.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.duckduckgo.com",
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) InstantAnswer(ctx context.Context, query string) (*AnswerResponse, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "duckduck: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "duckduck: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "duckduck: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("duckduck: unexpected status %d", resp.StatusCode)
	}

	var result AnswerResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "duckduck: unmarshal response")
	}

	return &result, nil
}
