package pipeline

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// cleanJSON strips markdown fences and any prose around the outermost JSON
// object. Model output is untrusted text; this is recovery, not validation.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// parseResponse validates model output against the phase's expected fields.
// Every expected field must be present and non-null.
func parseResponse(raw string, expected []string) (map[string]any, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, eris.New("pipeline: no JSON object in response")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, eris.Wrap(err, "pipeline: unmarshal response")
	}

	var missing []string
	for _, field := range expected {
		if v, ok := data[field]; !ok || v == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("pipeline: response missing fields: %s", strings.Join(missing, ", "))
	}
	return data, nil
}

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// extractCitations pulls the [n] markers from raw model output, keeping only
// IDs that exist in the bibliography. Sorted and deduplicated.
func extractCitations(raw string, bibliographySize int) []int {
	seen := make(map[int]bool)
	for _, m := range citationRe.FindAllStringSubmatch(raw, -1) {
		id := 0
		for _, ch := range m[1] {
			id = id*10 + int(ch-'0')
		}
		if id >= 1 && id <= bibliographySize {
			seen[id] = true
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// asFloat coerces the loosely typed numerics the model returns. JSON numbers
// arrive as float64; strings like "12.5%" or "$4.2 billion" also show up.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		return parseNumericString(n)
	default:
		return 0, false
	}
}

var numericRe = regexp.MustCompile(`-?[\d,]+\.?\d*`)

func parseNumericString(s string) (float64, bool) {
	lower := strings.ToLower(s)
	match := numericRe.FindString(lower)
	if match == "" {
		return 0, false
	}
	match = strings.ReplaceAll(match, ",", "")
	var n float64
	if err := json.Unmarshal([]byte(match), &n); err != nil {
		return 0, false
	}

	switch {
	case strings.Contains(lower, "trillion"):
		n *= 1e12
	case strings.Contains(lower, "billion"):
		n *= 1e9
	case strings.Contains(lower, "million"):
		n *= 1e6
	}
	return n, true
}
