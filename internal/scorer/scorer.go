// Package scorer computes authority tier, recency, relevance, and composite
// confidence for retrieved source records. Scoring is pure: identical input
// and tables always yield identical scores.
package scorer

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/model"
)

// Confidence weights. They sum to 1.
const (
	WeightRelevance = 0.35
	WeightAuthority = 0.30
	WeightRecency   = 0.20
	WeightTier      = 0.15
)

// Scorer assigns quality scores to source records for a single run. The
// reference time is fixed at construction so repeated scoring of the same
// record is deterministic.
type Scorer struct {
	cfg      config.ScorerConfig
	tables   Tables
	keywords []string
	now      time.Time
}

// New creates a Scorer for one run. keywords are the plan's salient business
// terms used for relevance matching.
func New(cfg config.ScorerConfig, tables Tables, keywords []string, now time.Time) *Scorer {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Scorer{
		cfg:      cfg,
		tables:   tables,
		keywords: lowered,
		now:      now,
	}
}

// Score returns a scored copy of rec. The input is never mutated; records
// are immutable once scored.
func (s *Scorer) Score(rec model.SourceRecord) model.SourceRecord {
	rec.Tier = s.tables.TierFor(rec.Domain, rec.ContentType)
	rec.Authority = s.tables.AuthorityFor(rec.Domain)
	rec.Recency = s.recency(rec.PublishedAt)
	rec.Relevance = s.relevance(rec)
	rec.Confidence = s.confidence(rec)
	return rec
}

// ScoreAll scores every record, preserving order.
func (s *Scorer) ScoreAll(recs []model.SourceRecord) []model.SourceRecord {
	out := make([]model.SourceRecord, len(recs))
	for i, rec := range recs {
		out[i] = s.Score(rec)
	}
	zap.L().Debug("scored source records", zap.Int("count", len(out)))
	return out
}

// recency maps a publication date to [0,1]. Sources inside the fresh window
// hold full score, so anything dated within it always outranks an undated
// source; past the window the score decays exponentially with the configured
// half life: 2^(-(ageDays-freshDays) / halfLife). Sources without an
// extractable date get a neutral middle score rather than a penalty.
func (s *Scorer) recency(published *time.Time) float64 {
	if published == nil || published.IsZero() {
		return 0.5
	}
	ageDays := s.now.Sub(*published).Hours() / 24
	fresh := s.cfg.FreshDays
	if fresh <= 0 {
		fresh = 730
	}
	if ageDays <= fresh {
		return 1.0
	}
	halfLife := s.cfg.HalfLifeDays
	if halfLife <= 0 {
		halfLife = 365
	}
	return math.Pow(2, -(ageDays-fresh)/halfLife)
}

// relevance is the fraction of plan keywords present in the record's title
// and body, normalized to [0,1]. With no keywords to match it returns a
// neutral middle score.
func (s *Scorer) relevance(rec model.SourceRecord) float64 {
	if len(s.keywords) == 0 {
		return 0.5
	}
	haystack := strings.ToLower(rec.Title + " " + rec.Body())
	var hits int
	for _, kw := range s.keywords {
		if strings.Contains(haystack, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(s.keywords))
}

// confidence combines the four component scores. Snippet-only records are
// discounted because the provider snippet is a weaker signal than scraped
// full text.
func (s *Scorer) confidence(rec model.SourceRecord) float64 {
	tierScore := float64(model.TierGeneralWeb+1-rec.Tier) / float64(model.TierGeneralWeb)

	c := WeightRelevance*rec.Relevance +
		WeightAuthority*float64(rec.Authority)/100 +
		WeightRecency*rec.Recency +
		WeightTier*tierScore

	if !rec.ScrapeOK && rec.ContentType != model.ContentTypeDocument {
		factor := s.cfg.SnippetFactor
		if factor <= 0 || factor > 1 {
			factor = 0.8
		}
		c *= factor
	}

	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
