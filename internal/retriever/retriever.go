// Package retriever fans a query plan out against the search provider,
// scrapes the top results, and folds everything into a deduplicated set of
// source record drafts ready for scoring.
package retriever

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/model"
	"github.com/sells-group/segment-cli/internal/resilience"
	"github.com/sells-group/segment-cli/internal/scrape"
	"github.com/sells-group/segment-cli/pkg/duckduck"
	"github.com/sells-group/segment-cli/pkg/serper"
)

// Scraper is the subset of scrape.Chain the retriever needs.
type Scraper interface {
	Scrape(ctx context.Context, targetURL string) (*scrape.Result, error)
}

// Retriever executes one plan's worth of searches and scrapes. Safe for a
// single run; create a new one per run.
type Retriever struct {
	cfg      config.RetrieveConfig
	primary  serper.Client
	fallback duckduck.Client
	scraper  Scraper
	breaker  *resilience.Breaker
	limiter  *rate.Limiter
	gl, hl   string
	now      func() time.Time
}

// Option customizes a Retriever.
type Option func(*Retriever)

// WithClock overrides the time source used for retrieval timestamps and
// relative date parsing.
func WithClock(now func() time.Time) Option {
	return func(r *Retriever) { r.now = now }
}

// WithBreaker overrides the primary-provider breaker, letting callers share
// one breaker set across the process.
func WithBreaker(b *resilience.Breaker) Option {
	return func(r *Retriever) { r.breaker = b }
}

// WithLocale pins the primary provider's country and language codes. Empty
// values leave the provider defaults in place.
func WithLocale(gl, hl string) Option {
	return func(r *Retriever) {
		r.gl = gl
		r.hl = hl
	}
}

// New creates a Retriever. fallback and scraper may be nil, disabling
// provider fallback and full-content extraction respectively.
func New(cfg config.RetrieveConfig, primary serper.Client, fallback duckduck.Client, scraper Scraper, opts ...Option) *Retriever {
	burst := int(cfg.ProviderQPS)
	if burst < 1 {
		burst = 1
	}
	qps := cfg.ProviderQPS
	if qps <= 0 {
		qps = 5
	}
	r := &Retriever{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		scraper:  scraper,
		breaker: resilience.NewBreaker(ProviderBreakerConfig()),
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProviderBreakerConfig is the breaker configuration for search providers.
// Exported so the process-level breaker set and the retriever stay on the
// same trip rules.
func ProviderBreakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		Trip:      tripsBreaker,
	}
}

// tripsBreaker counts provider-level failures. A 4xx other than 408/429 is a
// request problem, not a provider outage, and leaves the breaker alone.
func tripsBreaker(err error) bool {
	var se *serper.StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == 408 || se.Code == 429
	}
	return true
}

// draft pairs a query with its raw results before the dedupe join.
type draft struct {
	query   model.Query
	records []model.SourceRecord
}

// Retrieve runs every query in the plan concurrently, bounded by the
// configured concurrency limit, then dedupes by normalized URL and scrapes
// the top results per query. Provider failures degrade to the fallback
// provider; scrape failures degrade to the provider snippet. The only way to
// get an error back is caller cancellation, and even then the records
// gathered so far are returned.
func (r *Retriever) Retrieve(ctx context.Context, plan model.QueryPlan) ([]model.SourceRecord, error) {
	drafts := make([]draft, len(plan.Queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())

	for i, q := range plan.Queries {
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return nil //nolint:nilerr // cancelled mid-wait, slot stays empty
			}
			drafts[i] = draft{query: q, records: r.searchOne(gctx, q)}
			return nil
		})
	}
	_ = g.Wait()

	records, scrapeSet := r.merge(drafts)
	r.scrapeAll(ctx, records, scrapeSet)

	zap.L().Info("retrieval complete",
		zap.Int("queries", len(plan.Queries)),
		zap.Int("sources", len(records)),
	)

	out := make([]model.SourceRecord, len(records))
	for i, rec := range records {
		out[i] = *rec
	}
	return out, ctx.Err()
}

func (r *Retriever) concurrency() int {
	if r.cfg.Concurrency > 0 {
		return r.cfg.Concurrency
	}
	return 8
}

// searchOne issues a single provider query under its own timeout, retrying
// transient failures and degrading to the fallback provider when the primary
// is down. Failures yield an empty slice, never an error.
func (r *Retriever) searchOne(ctx context.Context, q model.Query) []model.SourceRecord {
	qctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
	defer cancel()

	policy := resilience.PolicyFor(r.cfg.Retries)
	policy.Retryable = retryableSearch
	policy.OnAttempt = resilience.AttemptLogger("serper", "search")

	searchOpts := []serper.SearchOption{serper.WithNum(r.cfg.MaxPerQuery)}
	if r.gl != "" && r.hl != "" {
		searchOpts = append(searchOpts, serper.WithLocale(r.gl, r.hl))
	}

	resp, err := resilience.DoVal(qctx, policy, func(ctx context.Context) (*serper.SearchResponse, error) {
		return resilience.CallVal(ctx, r.breaker, func(ctx context.Context) (*serper.SearchResponse, error) {
			return r.primary.Search(ctx, q.Endpoint, q.Text, searchOpts...)
		})
	})
	if err == nil {
		return r.fromSerper(q, resp)
	}

	zap.L().Warn("primary search failed",
		zap.String("query", q.Text),
		zap.Error(err),
	)
	return r.searchFallback(ctx, q)
}

func retryableSearch(err error) bool {
	if errors.Is(err, resilience.ErrProviderDown) {
		return false
	}
	var se *serper.StatusError
	if errors.As(err, &se) {
		return resilience.RetryableStatus(se.Code)
	}
	return resilience.IsRetryable(err)
}

// searchFallback queries the keyless instant answer API. Results are snippet
// quality at best; they carry no date and skip the scrape stage.
func (r *Retriever) searchFallback(ctx context.Context, q model.Query) []model.SourceRecord {
	if r.fallback == nil {
		return nil
	}
	fctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
	defer cancel()

	resp, err := r.fallback.InstantAnswer(fctx, q.Text)
	if err != nil {
		zap.L().Warn("fallback search failed",
			zap.String("query", q.Text),
			zap.Error(err),
		)
		return nil
	}

	var out []model.SourceRecord
	if resp.AbstractURL != "" && resp.AbstractText != "" {
		out = append(out, r.newRecord(q, resp.AbstractURL, resp.Heading, resp.AbstractText, ""))
	}
	for _, topic := range resp.RelatedTopics {
		if len(out) >= r.cfg.MaxPerQuery {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		out = append(out, r.newRecord(q, topic.FirstURL, topic.Text, topic.Text, ""))
	}
	return out
}

func (r *Retriever) fromSerper(q model.Query, resp *serper.SearchResponse) []model.SourceRecord {
	var out []model.SourceRecord
	add := func(link, title, snippet, date string) {
		if link == "" {
			return
		}
		out = append(out, r.newRecord(q, link, title, snippet, date))
	}
	switch q.Endpoint {
	case serper.EndpointNews:
		for _, res := range resp.News {
			add(res.Link, res.Title, res.Snippet, res.Date)
		}
	case serper.EndpointScholar:
		for _, res := range resp.Scholar {
			add(res.Link, res.Title, res.Snippet, res.Date)
		}
	default:
		for _, res := range resp.Organic {
			add(res.Link, res.Title, res.Snippet, res.Date)
		}
	}
	if len(out) > r.cfg.MaxPerQuery && r.cfg.MaxPerQuery > 0 {
		out = out[:r.cfg.MaxPerQuery]
	}
	return out
}

func (r *Retriever) newRecord(q model.Query, link, title, snippet, date string) model.SourceRecord {
	return model.SourceRecord{
		URL:           link,
		NormalizedURL: model.NormalizeURL(link),
		Title:         strings.TrimSpace(title),
		Snippet:       strings.TrimSpace(snippet),
		ContentType:   contentTypeFor(q.Endpoint),
		Domain:        model.DomainOf(link),
		PublishedAt:   parseDate(date, r.now()),
		RetrievedAt:   r.now(),
		Categories:    []model.QueryCategory{q.Category},
	}
}

func contentTypeFor(endpoint string) model.ContentType {
	switch endpoint {
	case serper.EndpointNews:
		return model.ContentTypeNews
	case serper.EndpointScholar:
		return model.ContentTypeScholar
	default:
		return model.ContentTypeWeb
	}
}

// merge dedupes drafts by normalized URL, first seen wins, folding later
// categories into the surviving record. It also marks which records earned a
// scrape attempt by ranking in a query's top N.
func (r *Retriever) merge(drafts []draft) ([]*model.SourceRecord, map[string]bool) {
	byURL := make(map[string]*model.SourceRecord)
	var ordered []*model.SourceRecord
	scrapeSet := make(map[string]bool)

	topN := r.cfg.ScrapeTopN
	for _, d := range drafts {
		for rank, rec := range d.records {
			existing, ok := byURL[rec.NormalizedURL]
			if ok {
				existing.AddCategory(d.query.Category)
			} else {
				cp := rec
				byURL[rec.NormalizedURL] = &cp
				ordered = append(ordered, &cp)
			}
			if rank < topN {
				scrapeSet[rec.NormalizedURL] = true
			}
		}
	}
	return ordered, scrapeSet
}

// scrapeAll attempts full-content extraction for the marked records with its
// own parallelism and timeouts, independent of the search stage. A failed
// scrape leaves the record on its snippet with ScrapeOK false.
func (r *Retriever) scrapeAll(ctx context.Context, records []*model.SourceRecord, scrapeSet map[string]bool) {
	if r.scraper == nil {
		return
	}

	parallel := r.cfg.ScrapeParallel
	if parallel <= 0 {
		parallel = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, rec := range records {
		if !scrapeSet[rec.NormalizedURL] {
			continue
		}
		g.Go(func() error {
			result, err := r.scraper.Scrape(gctx, rec.URL)
			if err != nil || result == nil || strings.TrimSpace(result.Text) == "" {
				zap.L().Debug("scrape failed, keeping snippet",
					zap.String("url", rec.URL),
					zap.Error(err),
				)
				return nil
			}
			rec.Content = result.Text
			rec.ScrapeOK = true
			if rec.Title == "" && result.Title != "" {
				rec.Title = result.Title
			}
			return nil
		})
	}
	_ = g.Wait()
}

// parseDate turns the provider's loose date strings ("Jan 5, 2025",
// "3 days ago") into a timestamp. Unparseable input yields nil, which the
// scorer treats as a neutral recency signal.
func parseDate(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	layouts := []string{
		"Jan 2, 2006",
		"January 2, 2006",
		"2006-01-02",
		time.RFC3339,
		"02 Jan 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	if t, ok := parseRelativeDate(s, now); ok {
		return &t
	}
	return nil
}

func parseRelativeDate(s string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, false
	}
	n := 0
	for _, ch := range fields[0] {
		if ch < '0' || ch > '9' {
			return time.Time{}, false
		}
		n = n*10 + int(ch-'0')
	}
	switch strings.TrimSuffix(fields[1], "s") {
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}
