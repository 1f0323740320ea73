package scrape

import "context"

// Result holds extracted page content with the scraper that produced it.
type Result struct {
	URL        string
	Title      string
	Text       string
	StatusCode int
	Source     string // e.g. "local_http", "jina"
}

// Scraper fetches a single URL and returns its content as plaintext.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
