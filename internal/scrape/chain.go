// Package scrape provides chained full-content extraction for search-result URLs.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries scrapers in priority order, returning the first success.
// The retriever falls back to the provider snippet when every scraper fails,
// so a Chain error never fails a run.
type Chain struct {
	filter   *URLFilter
	scrapers []Scraper
}

// NewChain creates a Chain. Scrapers are tried in order.
func NewChain(filter *URLFilter, scrapers ...Scraper) *Chain {
	return &Chain{filter: filter, scrapers: scrapers}
}

// Scrape tries each scraper in order for a single URL.
// Returns the first successful result, or an error if all fail.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if c.filter != nil && c.filter.Unscrapeable(targetURL) {
		return nil, eris.Errorf("scrape: url not scrapeable: %s", targetURL)
	}

	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}
