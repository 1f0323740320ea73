package model

// Citation ties a numbered context block back to its source.
type Citation struct {
	ID     int    `json:"id"` // 1-based, stable within a run
	URL    string `json:"url"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

// ContextBlock is one source's contribution to the aggregated context,
// tagged with its citation number.
type ContextBlock struct {
	Citation Citation      `json:"citation"`
	Text     string        `json:"text"`
	Tier     int           `json:"tier"`
	Category QueryCategory `json:"category"`
	Tokens   int           `json:"tokens"`
}

// AggregatedContext is the packed, citation-tagged research context handed to
// each analysis phase.
type AggregatedContext struct {
	Blocks       []ContextBlock `json:"blocks"`
	Bibliography []string       `json:"bibliography"`
	TotalTokens  int            `json:"total_tokens"`
	SourceCount  int            `json:"source_count"`

	// Insufficient marks a context built from too few or too weak sources.
	// Phases still run but stamp their results as degraded.
	Insufficient bool `json:"insufficient"`

	// CategoryCoverage records how many packed sources carry each category.
	CategoryCoverage map[QueryCategory]int `json:"category_coverage"`
}

// Text renders the blocks as a single prompt-ready string with [n] markers.
func (a AggregatedContext) Text() string {
	var sb []byte
	for i, b := range a.Blocks {
		if i > 0 {
			sb = append(sb, '\n', '\n')
		}
		sb = append(sb, b.Text...)
	}
	return string(sb)
}
