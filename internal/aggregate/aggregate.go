// Package aggregate packs scored source records into a citation-indexed
// context under a token budget for the analysis phases.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/model"
)

// InsufficientMarker is the context text used when no qualifying sources
// exist. Phases receive this instead of an empty string.
const InsufficientMarker = "NO QUALIFYING RESEARCH SOURCES WERE RETRIEVED. " +
	"Base the analysis on general industry knowledge and mark every figure as low confidence."

// Aggregator builds AggregatedContext values. It is stateless; Aggregate is
// deterministic for a given record set and config.
type Aggregator struct {
	cfg config.ContextConfig
}

// New creates an Aggregator.
func New(cfg config.ContextConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate filters, ranks, and greedily packs records into a context no
// larger than the configured token budget. Selection keeps at least one
// record per query category when one qualifies, then fills the remaining
// budget in rank order. Citation IDs are 1-based and follow rank order.
func (a *Aggregator) Aggregate(recs []model.SourceRecord) model.AggregatedContext {
	qualifying := a.filter(recs)
	rank(qualifying)

	selected := a.selectRecords(qualifying)

	ctx := model.AggregatedContext{
		SourceCount:      len(selected),
		CategoryCoverage: make(map[model.QueryCategory]int),
	}

	for i, rec := range selected {
		cit := model.Citation{
			ID:     i + 1,
			URL:    rec.URL,
			Title:  rec.Title,
			Domain: rec.Domain,
		}
		excerpt := a.excerpt(rec)
		block := model.ContextBlock{
			Citation: cit,
			Text:     renderBlock(cit, rec, excerpt),
			Tier:     rec.Tier,
			Category: primaryCategory(rec),
			Tokens:   estimateTokens(renderBlock(cit, rec, excerpt)),
		}
		ctx.Blocks = append(ctx.Blocks, block)
		ctx.Bibliography = append(ctx.Bibliography, formatCitation(cit, rec))
		ctx.TotalTokens += block.Tokens
		for _, cat := range rec.Categories {
			ctx.CategoryCoverage[cat]++
		}
	}

	if len(selected) < a.cfg.MinSources {
		ctx.Insufficient = true
	}
	if len(selected) == 0 {
		ctx.Blocks = []model.ContextBlock{{
			Text:   InsufficientMarker,
			Tokens: estimateTokens(InsufficientMarker),
		}}
		ctx.TotalTokens = estimateTokens(InsufficientMarker)
	}

	zap.L().Info("context aggregated",
		zap.Int("qualifying", len(qualifying)),
		zap.Int("selected", len(selected)),
		zap.Int("total_tokens", ctx.TotalTokens),
		zap.Bool("insufficient", ctx.Insufficient))
	return ctx
}

func (a *Aggregator) filter(recs []model.SourceRecord) []model.SourceRecord {
	out := make([]model.SourceRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.Confidence >= a.cfg.MinConfidence && strings.TrimSpace(rec.Body()) != "" {
			out = append(out, rec)
		}
	}
	return out
}

// rank sorts by confidence descending, tier ascending on ties, then
// normalized URL so equal records always land in the same order.
func rank(recs []model.SourceRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		if recs[i].Tier != recs[j].Tier {
			return recs[i].Tier < recs[j].Tier
		}
		return recs[i].NormalizedURL < recs[j].NormalizedURL
	})
}

// selectRecords picks records under the token budget. A coverage pass first
// claims the best record for each category so one category cannot buy out
// the whole budget, then the fill pass walks the ranking.
func (a *Aggregator) selectRecords(ranked []model.SourceRecord) []model.SourceRecord {
	budget := a.cfg.TokenBudget
	chosen := make(map[string]bool)
	spent := 0

	take := func(rec model.SourceRecord) bool {
		// Estimate with a wide placeholder ID so the real 1-based ID never
		// renders longer than what was reserved.
		cost := estimateTokens(renderBlock(model.Citation{ID: 9999}, rec, a.excerpt(rec)))
		if spent+cost > budget {
			return false
		}
		chosen[rec.NormalizedURL] = true
		spent += cost
		return true
	}

	perCat := a.cfg.CoveragePerCat
	if perCat < 1 {
		perCat = 1
	}
	for _, cat := range model.AllCategories() {
		taken := 0
		for _, rec := range ranked {
			if taken == perCat {
				break
			}
			if chosen[rec.NormalizedURL] {
				if rec.HasCategory(cat) {
					taken++
				}
				continue
			}
			if rec.HasCategory(cat) && take(rec) {
				taken++
			}
		}
	}

	for _, rec := range ranked {
		if !chosen[rec.NormalizedURL] {
			take(rec)
		}
	}

	out := make([]model.SourceRecord, 0, len(chosen))
	for _, rec := range ranked {
		if chosen[rec.NormalizedURL] {
			out = append(out, rec)
		}
	}
	return out
}

// excerpt caps a record's body at the per-source token limit, cutting on a
// word boundary.
func (a *Aggregator) excerpt(rec model.SourceRecord) string {
	body := strings.TrimSpace(rec.Body())
	maxChars := a.cfg.MaxPerSource * charsPerToken
	if maxChars <= 0 || len(body) <= maxChars {
		return body
	}
	cut := body[:maxChars]
	if idx := strings.LastIndexByte(cut, ' '); idx > maxChars/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func renderBlock(cit model.Citation, rec model.SourceRecord, excerpt string) string {
	return fmt.Sprintf("[%d] %s (%s, tier %d)\n%s", cit.ID, rec.Title, rec.Domain, rec.Tier, excerpt)
}

// formatCitation emits an APA-like bibliography line.
func formatCitation(cit model.Citation, rec model.SourceRecord) string {
	year := "n.d."
	if rec.PublishedAt != nil && !rec.PublishedAt.IsZero() {
		year = fmt.Sprintf("%d", rec.PublishedAt.Year())
	}
	return fmt.Sprintf("[%d] %s. (%s). %s. %s", cit.ID, rec.Title, year, rec.Domain, rec.URL)
}

func primaryCategory(rec model.SourceRecord) model.QueryCategory {
	if len(rec.Categories) > 0 {
		return rec.Categories[0]
	}
	return ""
}

const charsPerToken = 4

// estimateTokens approximates token count from byte length. Close enough for
// budget enforcement; the budget is a ceiling, not an exact fit.
func estimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}
