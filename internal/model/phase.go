package model

import "time"

// PhaseName identifies one of the five analysis phases.
type PhaseName string

const (
	PhaseMarketLandscape PhaseName = "market_landscape"
	PhaseCompetitors     PhaseName = "competitors"
	PhaseSegments        PhaseName = "segments"
	PhasePersonas        PhaseName = "personas"
	PhaseStrategy        PhaseName = "strategy"
)

// PhaseOrder lists the phases in execution order. Later phases consume the
// outputs of earlier ones.
func PhaseOrder() []PhaseName {
	return []PhaseName{
		PhaseMarketLandscape,
		PhaseCompetitors,
		PhaseSegments,
		PhasePersonas,
		PhaseStrategy,
	}
}

// PhaseStatus marks how a phase concluded.
type PhaseStatus string

const (
	PhaseComplete PhaseStatus = "complete"
	PhaseFallback PhaseStatus = "fallback" // template output after degradation
)

// Degradation flags stamped onto phase results. A flagged phase still
// produces output; the flag records what was compromised.
const (
	FlagProviderUnavailable = "provider_unavailable"
	FlagMalformedResponse   = "malformed_response"
	FlagDataImplausible     = "data_implausible"
	FlagInsufficientContext = "insufficient_context"
)

// PhaseResult is the structured output of one analysis phase.
type PhaseResult struct {
	Phase      PhaseName      `json:"phase"`
	Status     PhaseStatus    `json:"status"`
	Flags      []string       `json:"flags,omitempty"`
	Confidence float64        `json:"confidence"`
	Data       map[string]any `json:"data"`
	Duration   time.Duration  `json:"duration"`
	Citations  []int          `json:"citations,omitempty"`

	// RawOutput is the last model response text, kept even when parsing
	// failed so callers can inspect what the fallback replaced.
	RawOutput string `json:"raw_output,omitempty"`

	// RetryCount is the number of reformat retries spent, not counting the
	// first attempt.
	RetryCount int `json:"retry_count"`

	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Flag appends a degradation flag if not already present.
func (r *PhaseResult) Flag(f string) {
	for _, existing := range r.Flags {
		if existing == f {
			return
		}
	}
	r.Flags = append(r.Flags, f)
}

// Degraded reports whether the phase carries any degradation flag.
func (r PhaseResult) Degraded() bool {
	return len(r.Flags) > 0 || r.Status == PhaseFallback
}

// RunStatus marks the overall pipeline outcome.
type RunStatus string

const (
	RunDone RunStatus = "done"
)

// RunResult is the complete output of a pipeline run. Every run reaches
// status done; degradation shows up in phase flags, never as a failed run.
type RunResult struct {
	RunID     string                    `json:"run_id"`
	Status    RunStatus                 `json:"status"`
	Input     BusinessInput             `json:"input"`
	Plan      QueryPlan                 `json:"plan"`
	Context   AggregatedContext         `json:"context"`
	Phases    map[PhaseName]PhaseResult `json:"phases"`
	StartedAt time.Time                 `json:"started_at"`
	Duration  time.Duration             `json:"duration"`

	SourcesRetrieved int     `json:"sources_retrieved"`
	SourcesUsed      int     `json:"sources_used"`
	TotalCostUSD     float64 `json:"total_cost_usd"`

	// DataQuality summarizes how well the research supported the run:
	// category coverage fraction blended with mean phase confidence, [0,1].
	DataQuality float64 `json:"data_quality"`
}

// Degraded reports whether any phase in the run was degraded.
func (r RunResult) Degraded() bool {
	for _, p := range r.Phases {
		if p.Degraded() {
			return true
		}
	}
	return false
}
