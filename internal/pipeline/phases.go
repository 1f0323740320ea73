package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/segment-cli/internal/model"
)

// phaseSpec declares one analysis phase: the prompt it sends, the response
// fields it requires, the earlier phases it consumes, and the template
// result substituted when the model cannot produce a usable answer.
type phaseSpec struct {
	name         model.PhaseName
	predecessors []model.PhaseName
	expected     []string
	instructions string
}

// responseContract is appended to every phase prompt.
const responseContract = "Respond with a single JSON object and nothing else. " +
	"Cite sources inline using their [n] markers from the research context."

// strictReformat is appended on retry after a malformed response.
const strictReformat = "\n\nIMPORTANT: your previous answer was not valid JSON or was missing required fields. " +
	"Return ONLY the JSON object, no prose, no markdown fences, every required field present."

var phaseSpecs = []phaseSpec{
	{
		name:     model.PhaseMarketLandscape,
		expected: []string{"market_size_usd", "growth_rate_pct", "key_trends", "maturity"},
		instructions: `Analyze the market landscape for the business described below.
Required JSON fields:
- "market_size_usd": estimated total addressable market in US dollars (number)
- "growth_rate_pct": annual growth rate percentage (number)
- "key_trends": array of 3-5 trend strings
- "maturity": one of "emerging", "growth", "mature", "declining"
- "summary": short narrative with citations`,
	},
	{
		name:         model.PhaseCompetitors,
		predecessors: []model.PhaseName{model.PhaseMarketLandscape},
		expected:     []string{"competitors", "competitive_intensity"},
		instructions: `Identify and profile the main competitors.
Required JSON fields:
- "competitors": array of objects {"name", "positioning", "strengths" (array), "weaknesses" (array)}
- "competitive_intensity": one of "low", "moderate", "high"
- "summary": short narrative with citations`,
	},
	{
		name:         model.PhaseSegments,
		predecessors: []model.PhaseName{model.PhaseMarketLandscape, model.PhaseCompetitors},
		expected:     []string{"segments"},
		instructions: `Identify 3-5 distinct market segments this business should consider.
Required JSON fields:
- "segments": array of objects {"name", "description", "size_pct" (number, share of the market), "attractiveness" (1-10 number), "rationale"}
- "summary": short narrative with citations`,
	},
	{
		name:         model.PhasePersonas,
		predecessors: []model.PhaseName{model.PhaseSegments},
		expected:     []string{"personas"},
		instructions: `Develop a buyer persona for each identified segment.
Required JSON fields:
- "personas": array of objects {"segment", "title", "role", "goals" (array), "pain_points" (array), "buying_triggers" (array)}
- "summary": short narrative with citations`,
	},
	{
		name:         model.PhaseStrategy,
		predecessors: []model.PhaseName{model.PhaseMarketLandscape, model.PhaseCompetitors, model.PhaseSegments, model.PhasePersonas},
		expected:     []string{"positioning", "recommendations"},
		instructions: `Synthesize a go-to-market strategy from all prior analysis.
Required JSON fields:
- "positioning": one-sentence positioning statement
- "messaging": array of key message strings per segment
- "channels": array of recommended channel strings
- "recommendations": array of 3-7 prioritized recommendation strings
- "roadmap": array of objects {"phase", "timeline", "actions" (array)}
- "quick_wins": array of actions achievable within 90 days
- "success_metrics": array of measurable KPI strings
- "summary": short narrative with citations`,
	},
}

// buildPrompt assembles the user message for one phase: instructions, the
// business input, and the structured outputs of its predecessor phases.
func buildPrompt(spec phaseSpec, input model.BusinessInput, prior map[model.PhaseName]model.PhaseResult, strict bool) string {
	var sb strings.Builder
	sb.WriteString(spec.instructions)
	sb.WriteString("\n\n")
	sb.WriteString(responseContract)

	sb.WriteString("\n\nBusiness under analysis:\n")
	fmt.Fprintf(&sb, "- Company: %s\n- Industry: %s\n- Model: %s\n",
		input.CompanyName, input.Industry, input.BusinessModel)
	if input.TargetDescription != "" {
		fmt.Fprintf(&sb, "- Target: %s\n", input.TargetDescription)
	}
	if input.Geography != "" {
		fmt.Fprintf(&sb, "- Geography: %s\n", input.Geography)
	}
	if input.Description != "" {
		fmt.Fprintf(&sb, "- Description: %s\n", input.Description)
	}

	for _, pred := range spec.predecessors {
		result, ok := prior[pred]
		if !ok {
			continue
		}
		payload, err := json.Marshal(result.Data)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "\nOutput of the %s phase:\n%s\n", pred, payload)
		if result.Degraded() {
			fmt.Fprintf(&sb, "(The %s phase was degraded; treat its figures with caution.)\n", pred)
		}
	}

	if strict {
		sb.WriteString(strictReformat)
	}
	return sb.String()
}

// fallbackData builds the template result substituted after retries are
// exhausted. Clearly lower quality, clearly labeled, never empty.
func fallbackData(spec phaseSpec, input model.BusinessInput) map[string]any {
	industry := input.Industry
	if industry == "" {
		industry = "the target industry"
	}

	switch spec.name {
	case model.PhaseMarketLandscape:
		return map[string]any{
			"market_size_usd": 0,
			"growth_rate_pct": 0,
			"key_trends":      []any{},
			"maturity":        "unknown",
			"summary":         fmt.Sprintf("Market landscape analysis for %s could not be completed from the available data.", industry),
		}
	case model.PhaseCompetitors:
		competitors := make([]any, 0, len(input.KnownCompetitors))
		for _, c := range input.KnownCompetitors {
			competitors = append(competitors, map[string]any{
				"name":        c,
				"positioning": "unknown",
				"strengths":   []any{},
				"weaknesses":  []any{},
			})
		}
		return map[string]any{
			"competitors":           competitors,
			"competitive_intensity": "unknown",
			"summary":               "Competitive analysis could not be completed; only user-supplied competitor names are listed.",
		}
	case model.PhaseSegments:
		return map[string]any{
			"segments": []any{map[string]any{
				"name":           fmt.Sprintf("General %s buyers", industry),
				"description":    "Placeholder segment generated without supporting research.",
				"size_pct":       0,
				"attractiveness": 0,
				"rationale":      "insufficient data",
			}},
			"summary": "Segment identification fell back to a single placeholder segment.",
		}
	case model.PhasePersonas:
		return map[string]any{
			"personas": []any{map[string]any{
				"segment":         fmt.Sprintf("General %s buyers", industry),
				"title":           "Primary decision maker",
				"role":            "unknown",
				"goals":           []any{},
				"pain_points":     []any{},
				"buying_triggers": []any{},
			}},
			"summary": "Persona development fell back to a single placeholder persona.",
		}
	default:
		return map[string]any{
			"positioning":     "Positioning could not be derived from the available research.",
			"messaging":       []any{},
			"channels":        []any{},
			"recommendations": []any{"Re-run the analysis once research sources are available."},
			"roadmap":         []any{},
			"quick_wins":      []any{},
			"success_metrics": []any{},
			"summary":         "Strategy development fell back to template output.",
		}
	}
}
