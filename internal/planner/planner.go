// Package planner turns structured business input into a bounded,
// deduplicated set of search queries across the five research categories.
package planner

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/segment-cli/internal/model"
)

// Planner generates query plans. Generation is deterministic for a given
// input and clock, so runs can be replayed in tests.
type Planner struct {
	maxQueries int
	now        func() time.Time
}

// Option customizes a Planner.
type Option func(*Planner)

// WithClock overrides the time source used for year tokens in templates.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		p.now = now
	}
}

// New creates a Planner capped at maxQueries total queries per plan.
func New(maxQueries int, opts ...Option) *Planner {
	p := &Planner{
		maxQueries: maxQueries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// template is one query pattern. Tokens: {industry}, {model}, {company},
// {geo}, {year}, {next}.
type template struct {
	pattern  string
	endpoint string
}

var categoryTemplates = map[model.QueryCategory][]template{
	model.CategoryMarketSize: {
		{"{industry} market size {year} {next} forecast", "search"},
		{"{industry} TAM total addressable market {model}", "search"},
		{"{industry} market growth rate CAGR projections", "search"},
		{"{industry} industry analysis report {year} {geo}", "search"},
	},
	model.CategorySegments: {
		{"{industry} customer segments {model} buyers", "search"},
		{"{model} {industry} target audience demographics {geo}", "search"},
		{"{industry} buyer personas decision makers", "search"},
		{"{industry} customer pain points challenges problems", "search"},
		{"{model} {industry} use cases applications", "search"},
	},
	model.CategoryCompetitors: {
		{"{company} competitors alternatives {industry}", "search"},
		{"top {industry} companies {model} leaders {geo}", "search"},
		{"{industry} startup funding rounds investments {year}", "news"},
		{"{industry} market share distribution competitive landscape", "search"},
	},
	model.CategoryTrends: {
		{"{industry} industry trends {year} {next} predictions", "search"},
		{"{industry} regulatory changes compliance requirements", "news"},
		{"{industry} technology adoption digital transformation", "search"},
		{"{industry} market opportunities gaps unmet needs", "search"},
	},
	model.CategoryResearch: {
		{"{industry} market research study analysis", "scholar"},
		{"{model} effectiveness ROI case studies", "scholar"},
		{"{industry} consumer behavior research", "scholar"},
	},
}

// genericTemplates back up runs whose input lacks an industry. The {terms}
// token takes whatever free text the input carried.
var genericTemplates = map[model.QueryCategory][]template{
	model.CategoryMarketSize:  {{"{terms} market size estimate {year}", "search"}},
	model.CategorySegments:    {{"{terms} customer segments overview", "search"}},
	model.CategoryCompetitors: {{"{terms} leading companies competitors", "search"}},
	model.CategoryTrends:      {{"{terms} industry trends {year}", "search"}},
	model.CategoryResearch:    {{"{terms} market research", "scholar"}},
}

// Plan builds a QueryPlan from the business input and optional document
// context. Duplicate query strings are removed case-insensitively and the
// total is capped at the planner's limit, trimming evenly across categories
// so no single category is dropped wholesale.
func (p *Planner) Plan(input model.BusinessInput, doc *model.DocumentContext) model.QueryPlan {
	year := p.now().Year()
	tokens := p.tokenValues(input, year)

	templates := categoryTemplates
	generic := !input.Sufficient()
	if generic {
		templates = genericTemplates
		zap.L().Warn("insufficient business input, using generic query templates",
			zap.String("company", input.CompanyName))
	}

	folder := cases.Fold()
	seen := make(map[string]bool)
	var queries []model.Query
	for _, cat := range model.AllCategories() {
		for _, tpl := range templates[cat] {
			text := expand(tpl.pattern, tokens)
			if text == "" {
				continue
			}
			key := folder.String(text)
			if seen[key] {
				continue
			}
			seen[key] = true
			queries = append(queries, model.Query{
				Text:     text,
				Category: cat,
				Endpoint: tpl.endpoint,
			})
		}
	}

	// Known competitors get one direct query each, in the order supplied.
	for _, comp := range input.KnownCompetitors {
		comp = strings.TrimSpace(comp)
		if comp == "" {
			continue
		}
		text := collapse(fmt.Sprintf("%s company profile products customers", comp))
		key := folder.String(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, model.Query{
			Text:     text,
			Category: model.CategoryCompetitors,
			Endpoint: "search",
		})
	}

	queries = capPerCategory(queries, p.maxQueries)

	plan := model.QueryPlan{
		Queries:  queries,
		Keywords: extractKeywords(input, doc),
		Generic:  generic,
	}

	zap.L().Info("query plan generated",
		zap.Int("queries", len(plan.Queries)),
		zap.Int("keywords", len(plan.Keywords)),
		zap.Bool("generic", plan.Generic))
	return plan
}

func (p *Planner) tokenValues(input model.BusinessInput, year int) map[string]string {
	terms := strings.TrimSpace(input.Industry)
	if terms == "" {
		terms = strings.TrimSpace(input.Description)
	}
	if terms == "" {
		terms = strings.TrimSpace(input.TargetDescription)
	}
	return map[string]string{
		"{industry}": strings.TrimSpace(input.Industry),
		"{model}":    string(input.BusinessModel),
		"{company}":  strings.TrimSpace(input.CompanyName),
		"{geo}":      strings.TrimSpace(input.Geography),
		"{year}":     fmt.Sprintf("%d", year),
		"{next}":     fmt.Sprintf("%d", year+1),
		"{terms}":    terms,
	}
}

// expand substitutes tokens and collapses whitespace left by empty ones.
// A pattern whose required terms are all empty expands to "".
func expand(pattern string, tokens map[string]string) string {
	out := pattern
	for tok, val := range tokens {
		out = strings.ReplaceAll(out, tok, val)
	}
	out = collapse(out)
	// A query that lost all its substance (only template filler words left
	// after empty substitutions shorter than 3 words) is not worth issuing.
	if len(strings.Fields(out)) < 3 {
		return ""
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// capPerCategory trims the plan to max queries, removing from the tail of
// each category round-robin so every category keeps its highest-priority
// templates.
func capPerCategory(queries []model.Query, max int) []model.Query {
	if len(queries) <= max {
		return queries
	}

	byCat := make(map[model.QueryCategory][]model.Query)
	for _, q := range queries {
		byCat[q.Category] = append(byCat[q.Category], q)
	}

	excess := len(queries) - max
	cats := model.AllCategories()
	for excess > 0 {
		trimmed := false
		// Trim from the largest categories first, one query per pass.
		for _, cat := range cats {
			if excess == 0 {
				break
			}
			if len(byCat[cat]) > 1 {
				byCat[cat] = byCat[cat][:len(byCat[cat])-1]
				excess--
				trimmed = true
			}
		}
		if !trimmed {
			// Every category is down to one query; trim in category order.
			for _, cat := range cats {
				if excess == 0 {
					break
				}
				if len(byCat[cat]) > 0 {
					byCat[cat] = nil
					excess--
				}
			}
			break
		}
	}

	kept := make(map[string]bool)
	for _, qs := range byCat {
		for _, q := range qs {
			kept[q.Text] = true
		}
	}

	out := make([]model.Query, 0, max)
	for _, q := range queries {
		if kept[q.Text] {
			out = append(out, q)
		}
	}
	return out
}

// extractKeywords pulls the salient terms the scorer will match source text
// against. Order is deterministic: industry words, target words, competitor
// names, then document keywords.
func extractKeywords(input model.BusinessInput, doc *model.DocumentContext) []string {
	folder := cases.Fold()
	seen := make(map[string]bool)
	var out []string

	add := func(term string) {
		term = strings.TrimSpace(term)
		if len(term) < 3 {
			return
		}
		key := folder.String(term)
		if seen[key] || stopWords[key] {
			return
		}
		seen[key] = true
		out = append(out, strings.ToLower(term))
	}

	for _, w := range strings.Fields(input.Industry) {
		add(w)
	}
	for _, w := range strings.Fields(input.TargetDescription) {
		add(w)
	}
	for _, comp := range input.KnownCompetitors {
		add(comp)
	}
	if doc != nil {
		for _, kw := range doc.Keywords {
			add(kw)
		}
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"are": true, "our": true, "their": true, "other": true, "from": true,
}
