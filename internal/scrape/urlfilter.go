package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultSkipHosts are domains whose pages cannot be usefully scraped
// (logins, paywalls, JS-only apps). Their snippets are still kept.
var defaultSkipHosts = []string{
	"linkedin.com",
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"youtube.com",
}

// defaultSkipExtensions are binary formats that plaintext extraction
// cannot handle.
var defaultSkipExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx", ".zip",
}

// URLFilter decides which search-result URLs are worth a scrape attempt.
type URLFilter struct {
	skipHosts      []string
	skipExtensions []string
}

// NewURLFilter creates a URLFilter. Empty arguments fall back to defaults.
func NewURLFilter(skipHosts, skipExtensions []string) *URLFilter {
	if len(skipHosts) == 0 {
		skipHosts = defaultSkipHosts
	}
	if len(skipExtensions) == 0 {
		skipExtensions = defaultSkipExtensions
	}
	return &URLFilter{skipHosts: skipHosts, skipExtensions: skipExtensions}
}

// Unscrapeable reports whether the URL should be skipped for full-content
// extraction. Unparseable URLs are skipped.
func (f *URLFilter) Unscrapeable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	for _, skip := range f.skipHosts {
		if host == skip || strings.HasSuffix(host, "."+skip) {
			return true
		}
	}

	ext := strings.ToLower(path.Ext(u.Path))
	for _, skip := range f.skipExtensions {
		if ext == skip {
			return true
		}
	}

	return false
}
