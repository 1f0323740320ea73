package scorer

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/segment-cli/internal/model"
)

// Tables holds the domain lookup data driving tier assignment and authority
// scores. The zero value falls back to the built-in defaults for every
// lookup, so a partial override file only changes the domains it names.
type Tables struct {
	// Tiers maps a domain (without www) to its authority tier, 1 through 4.
	Tiers map[string]int `yaml:"tiers"`

	// Authority maps a domain to a 0-100 authority score.
	Authority map[string]int `yaml:"authority"`
}

// DefaultAuthority is assigned to domains absent from every table. Mid-range
// rather than zero so unknown sources are usable but never dominant.
const DefaultAuthority = 40

var defaultTiers = map[string]int{
	// Tier 1: analyst houses, market research, standards bodies.
	"gartner.com":           model.TierResearch,
	"forrester.com":         model.TierResearch,
	"mckinsey.com":          model.TierResearch,
	"statista.com":          model.TierResearch,
	"ibisworld.com":         model.TierResearch,
	"grandviewresearch.com": model.TierResearch,
	"marketsandmarkets.com": model.TierResearch,
	"pewresearch.org":       model.TierResearch,
	"bcg.com":               model.TierResearch,
	"bain.com":              model.TierResearch,
	"deloitte.com":          model.TierResearch,
	"pwc.com":               model.TierResearch,

	// Tier 2: established news and financial data outlets.
	"reuters.com":    model.TierNews,
	"bloomberg.com":  model.TierNews,
	"wsj.com":        model.TierNews,
	"ft.com":         model.TierNews,
	"economist.com":  model.TierNews,
	"cnbc.com":       model.TierNews,
	"forbes.com":     model.TierNews,
	"hbr.org":        model.TierNews,
	"crunchbase.com": model.TierNews,

	// Tier 3: trade press and tech media.
	"techcrunch.com":      model.TierIndustry,
	"venturebeat.com":     model.TierIndustry,
	"businessinsider.com": model.TierIndustry,
	"zdnet.com":           model.TierIndustry,
	"wired.com":           model.TierIndustry,

	// Tier 4: unverified social and community content.
	"reddit.com":   model.TierGeneralWeb,
	"medium.com":   model.TierGeneralWeb,
	"quora.com":    model.TierGeneralWeb,
	"twitter.com":  model.TierGeneralWeb,
	"x.com":        model.TierGeneralWeb,
	"facebook.com": model.TierGeneralWeb,
	"linkedin.com": model.TierGeneralWeb,
	"substack.com": model.TierGeneralWeb,
}

var defaultAuthority = map[string]int{
	"gartner.com":           90,
	"forrester.com":         88,
	"mckinsey.com":          92,
	"statista.com":          88,
	"ibisworld.com":         82,
	"grandviewresearch.com": 78,
	"marketsandmarkets.com": 75,
	"pewresearch.org":       90,
	"bcg.com":               88,
	"bain.com":              86,
	"deloitte.com":          85,
	"pwc.com":               85,
	"reuters.com":           92,
	"bloomberg.com":         92,
	"wsj.com":               90,
	"ft.com":                88,
	"economist.com":         88,
	"cnbc.com":              80,
	"forbes.com":            75,
	"hbr.org":               85,
	"crunchbase.com":        72,
	"techcrunch.com":        70,
	"venturebeat.com":       65,
	"businessinsider.com":   65,
	"zdnet.com":             62,
	"wired.com":             70,
	"wikipedia.org":         70,
	"reddit.com":            35,
	"medium.com":            30,
	"quora.com":             25,
	"twitter.com":           25,
	"x.com":                 25,
	"facebook.com":          20,
	"linkedin.com":          45,
	"substack.com":          30,
}

// LoadTables reads a YAML override file on top of the built-in tables. An
// empty path returns empty Tables, meaning defaults only.
func LoadTables(path string) (Tables, error) {
	var t Tables
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, eris.Wrapf(err, "scorer: read table file %s", path)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, eris.Wrapf(err, "scorer: parse table file %s", path)
	}
	return t, nil
}

// TierFor resolves the authority tier for a domain and content type.
// Precedence: explicit table entry, government/academic suffix, content-type
// default, then general web.
func (t Tables) TierFor(domain string, ct model.ContentType) int {
	domain = strings.ToLower(domain)
	if tier, ok := t.Tiers[domain]; ok && tier >= model.TierResearch && tier <= model.TierGeneralWeb {
		return tier
	}
	if tier, ok := defaultTiers[domain]; ok {
		return tier
	}
	if strings.HasSuffix(domain, ".gov") || strings.HasSuffix(domain, ".edu") ||
		strings.HasSuffix(domain, ".ac.uk") || strings.HasSuffix(domain, ".int") {
		return model.TierResearch
	}
	switch ct {
	case model.ContentTypeScholar:
		return model.TierResearch
	case model.ContentTypeNews:
		return model.TierNews
	case model.ContentTypeDocument:
		// User-supplied documents score as Tier 2 equivalent.
		return model.TierNews
	default:
		return model.TierGeneralWeb
	}
}

// AuthorityFor resolves the 0-100 authority score for a domain, with the
// mid-range default for unknown domains.
func (t Tables) AuthorityFor(domain string) int {
	domain = strings.ToLower(domain)
	if score, ok := t.Authority[domain]; ok {
		return clampAuthority(score)
	}
	if score, ok := defaultAuthority[domain]; ok {
		return score
	}
	if strings.HasSuffix(domain, ".gov") || strings.HasSuffix(domain, ".edu") {
		return 85
	}
	return DefaultAuthority
}

func clampAuthority(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
