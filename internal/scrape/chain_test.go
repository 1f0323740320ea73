package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockScraper implements Scraper for testing.
type mockScraper struct {
	name     string
	supports bool
	result   *Result
	err      error
}

func (m *mockScraper) Name() string                                        { return m.name }
func (m *mockScraper) Supports(_ string) bool                              { return m.supports }
func (m *mockScraper) Scrape(_ context.Context, _ string) (*Result, error) { return m.result, m.err }

func TestChain_Scrape_FirstSuccess(t *testing.T) {
	s1 := &mockScraper{
		name: "primary", supports: true,
		result: &Result{URL: "https://acme.com", Title: "Home", Text: "content", Source: "primary"},
	}
	s2 := &mockScraper{name: "fallback", supports: true}

	chain := NewChain(NewURLFilter(nil, nil), s1, s2)
	result, err := chain.Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "primary", result.Source)
	assert.Equal(t, "https://acme.com", result.URL)
}

func TestChain_Scrape_FallbackOnError(t *testing.T) {
	s1 := &mockScraper{name: "primary", supports: true, err: errors.New("failed")}
	s2 := &mockScraper{
		name: "fallback", supports: true,
		result: &Result{URL: "https://acme.com", Title: "Home", Source: "fallback"},
	}

	chain := NewChain(NewURLFilter(nil, nil), s1, s2)
	result, err := chain.Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Source)
}

func TestChain_Scrape_AllFail(t *testing.T) {
	s1 := &mockScraper{name: "s1", supports: true, err: errors.New("s1 error")}
	s2 := &mockScraper{name: "s2", supports: true, err: errors.New("s2 error")}

	chain := NewChain(NewURLFilter(nil, nil), s1, s2)
	result, err := chain.Scrape(context.Background(), "https://acme.com")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "all scrapers failed")
}

func TestChain_Scrape_UnscrapeableURL(t *testing.T) {
	s1 := &mockScraper{name: "s1", supports: true}

	chain := NewChain(NewURLFilter(nil, nil), s1)
	result, err := chain.Scrape(context.Background(), "https://example.com/report.pdf")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "not scrapeable")
}

func TestChain_Scrape_SkipsUnsupported(t *testing.T) {
	s1 := &mockScraper{name: "s1", supports: false}
	s2 := &mockScraper{
		name: "s2", supports: true,
		result: &Result{URL: "https://acme.com", Source: "s2"},
	}

	chain := NewChain(NewURLFilter(nil, nil), s1, s2)
	result, err := chain.Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "s2", result.Source)
}

func TestURLFilter_SkipHosts(t *testing.T) {
	f := NewURLFilter(nil, nil)

	assert.True(t, f.Unscrapeable("https://www.linkedin.com/company/acme"))
	assert.True(t, f.Unscrapeable("https://m.facebook.com/acme"))
	assert.False(t, f.Unscrapeable("https://www.gartner.com/report"))
}

func TestURLFilter_SkipExtensions(t *testing.T) {
	f := NewURLFilter(nil, nil)

	assert.True(t, f.Unscrapeable("https://example.com/whitepaper.PDF"))
	assert.True(t, f.Unscrapeable("https://example.com/data.xlsx"))
	assert.False(t, f.Unscrapeable("https://example.com/article.html"))
}

func TestURLFilter_BadURL(t *testing.T) {
	f := NewURLFilter(nil, nil)
	assert.True(t, f.Unscrapeable("not a url"))
}

func TestURLFilter_CustomLists(t *testing.T) {
	f := NewURLFilter([]string{"internal.test"}, []string{".bin"})

	assert.True(t, f.Unscrapeable("https://internal.test/page"))
	assert.True(t, f.Unscrapeable("https://example.com/blob.bin"))
	// Defaults are replaced, not merged.
	assert.False(t, f.Unscrapeable("https://linkedin.com/company/acme"))
}
