package model

import (
	"net/url"
	"strings"
	"time"
)

// ContentType classifies a retrieved source by its origin.
type ContentType string

const (
	ContentTypeWeb      ContentType = "web"
	ContentTypeNews     ContentType = "news"
	ContentTypeScholar  ContentType = "scholar"
	ContentTypeDocument ContentType = "document"
)

// Source tiers. Lower is more authoritative.
const (
	TierResearch   = 1 // analyst and market research firms
	TierNews       = 2 // established news and financial data outlets
	TierIndustry   = 3 // trade publications, vendor reports
	TierGeneralWeb = 4 // everything else
)

// SourceRecord is one retrieved document flowing through scoring and
// aggregation. Identity is the normalized URL; duplicates across queries and
// providers collapse to a single record.
type SourceRecord struct {
	URL           string      `json:"url"`
	NormalizedURL string      `json:"normalized_url"`
	Title         string      `json:"title"`
	Snippet       string      `json:"snippet,omitempty"`
	Content       string      `json:"content,omitempty"`
	ContentType   ContentType `json:"content_type"`
	Domain        string      `json:"domain"`
	PublishedAt   *time.Time  `json:"published_at,omitempty"`
	RetrievedAt   time.Time   `json:"retrieved_at"`

	// Categories is the union of query categories that surfaced this source.
	Categories []QueryCategory `json:"categories"`

	// ScrapeOK is false when full-content extraction failed and the record
	// carries only the provider snippet.
	ScrapeOK bool `json:"scrape_ok"`

	Tier       int     `json:"tier"`
	Authority  int     `json:"authority"`
	Relevance  float64 `json:"relevance"`
	Recency    float64 `json:"recency"`
	Confidence float64 `json:"confidence"`
}

// Body returns the best available text for the record: scraped content when
// present, otherwise the snippet.
func (s SourceRecord) Body() string {
	if s.Content != "" {
		return s.Content
	}
	return s.Snippet
}

// HasCategory reports whether cat is among the categories that surfaced this
// source.
func (s SourceRecord) HasCategory(cat QueryCategory) bool {
	for _, c := range s.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// AddCategory appends cat if not already present. Used when a duplicate URL
// arrives from a second query category.
func (s *SourceRecord) AddCategory(cat QueryCategory) {
	if !s.HasCategory(cat) {
		s.Categories = append(s.Categories, cat)
	}
}

// NormalizeURL canonicalizes a URL for identity comparison: lowercases scheme
// and host, strips fragments, common tracking parameters, trailing slashes,
// and a leading www.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(strings.ToLower(raw))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "fbclid" || param == "gclid" || param == "ref" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// DomainOf extracts the registrable-ish domain (host without www) from a URL.
func DomainOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
