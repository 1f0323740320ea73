package model

// QueryCategory labels the research intent behind a generated query.
type QueryCategory string

const (
	CategoryMarketSize  QueryCategory = "market_size"
	CategorySegments    QueryCategory = "segments"
	CategoryCompetitors QueryCategory = "competitors"
	CategoryTrends      QueryCategory = "trends"
	CategoryResearch    QueryCategory = "research"
)

// AllCategories lists every query category in planning order.
func AllCategories() []QueryCategory {
	return []QueryCategory{
		CategoryMarketSize,
		CategorySegments,
		CategoryCompetitors,
		CategoryTrends,
		CategoryResearch,
	}
}

// Query is one search string with its category and the provider endpoint it
// should hit.
type Query struct {
	Text     string        `json:"text"`
	Category QueryCategory `json:"category"`
	Endpoint string        `json:"endpoint"` // search, news, or scholar
}

// QueryPlan is the ordered, deduplicated set of queries for a run.
type QueryPlan struct {
	Queries []Query `json:"queries"`

	// Keywords are the salient business terms extracted during planning,
	// reused by the scorer for relevance matching.
	Keywords []string `json:"keywords"`

	// Generic is true when the input was too thin for targeted queries and
	// the plan fell back to industry-generic templates.
	Generic bool `json:"generic"`
}

// ByCategory returns the plan's queries for one category, preserving order.
func (p QueryPlan) ByCategory(cat QueryCategory) []Query {
	var out []Query
	for _, q := range p.Queries {
		if q.Category == cat {
			out = append(out, q)
		}
	}
	return out
}
