// Package serper provides a client for the Serper Google search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Endpoint names accepted by Search.
const (
	EndpointSearch  = "search"
	EndpointNews    = "news"
	EndpointScholar = "scholar"
)

// Client defines the Serper search operations.
type Client interface {
	// Search runs a query against the given endpoint (search, news, scholar).
	Search(ctx context.Context, endpoint, query string, opts ...SearchOption) (*SearchResponse, error)
}

// StatusError reports a non-200 response so callers can decide whether the
// failure is worth a retry.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "serper: unexpected status " + http.StatusText(e.Code) + " (" + strconv.Itoa(e.Code) + "): " + e.Body
}

// SearchResponse is the parsed Serper API response. Which result slice is
// populated depends on the endpoint.
type SearchResponse struct {
	Organic []OrganicResult `json:"organic"`
	News    []NewsResult    `json:"news"`
	Scholar []OrganicResult `json:"scholar"`
}

// OrganicResult is one web or scholar search result.
type OrganicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date,omitempty"`
	Position int    `json:"position,omitempty"`
}

// NewsResult is one news search result.
type NewsResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
	Source  string `json:"source,omitempty"`
}

// SearchOption configures a single search request.
type SearchOption func(*searchRequest)

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
}

// WithNum sets the number of results to request.
func WithNum(n int) SearchOption {
	return func(r *searchRequest) { r.Num = n }
}

// WithLocale sets the country and language codes.
func WithLocale(gl, hl string) SearchOption {
	return func(r *searchRequest) {
		r.GL = gl
		r.HL = hl
	}
}

// Option configures the Serper client.
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
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Serper client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://google.serper.dev",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, endpoint, query string, opts ...SearchOption) (*SearchResponse, error) {
	switch endpoint {
	case EndpointSearch, EndpointNews, EndpointScholar:
	default:
		return nil, eris.Errorf("serper: unknown endpoint %q", endpoint)
	}

	reqBody := searchRequest{Q: query, GL: "us", HL: "en"}
	for _, opt := range opts {
		opt(&reqBody)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serper: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serper: unmarshal response")
	}

	return &result, nil
}
