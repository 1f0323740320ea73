// Package pipeline orchestrates a segmentation research run: query planning,
// concurrent retrieval, quality scoring, context aggregation, and the five
// sequential analysis phases.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/aggregate"
	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/model"
	"github.com/sells-group/segment-cli/internal/planner"
	"github.com/sells-group/segment-cli/internal/resilience"
	"github.com/sells-group/segment-cli/internal/scorer"
	"github.com/sells-group/segment-cli/pkg/anthropic"
)

// Retriever abstracts the retrieval stage so tests can script it.
type Retriever interface {
	Retrieve(ctx context.Context, plan model.QueryPlan) ([]model.SourceRecord, error)
}

// Pipeline runs the full analysis for one business input. Each run owns its
// own state; pipelines are safe to reuse across sequential runs.
type Pipeline struct {
	cfg       *config.Config
	planner   *planner.Planner
	retriever Retriever
	tables    scorer.Tables
	llm       anthropic.Client
	retry     resilience.Policy
	now       func() time.Time
	newID     func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) { p.newID = gen }
}

// WithRetryPolicy overrides the transient-failure retry policy applied to
// each model call.
func WithRetryPolicy(policy resilience.Policy) Option {
	return func(p *Pipeline) { p.retry = policy }
}

// New creates a Pipeline.
func New(cfg *config.Config, pl *planner.Planner, ret Retriever, tables scorer.Tables, llm anthropic.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		planner:   pl,
		retriever: ret,
		tables:    tables,
		llm:       llm,
		retry:     resilience.DefaultPolicy(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline end to end. Every failure class short of caller
// cancellation degrades the output instead of aborting: the returned RunResult
// always carries a terminal result for all five phases.
func (p *Pipeline) Run(ctx context.Context, input model.BusinessInput, doc *model.DocumentContext) (*model.RunResult, error) {
	started := p.now()
	runID := p.newID()
	log := zap.L().With(zap.String("run_id", runID), zap.String("company", input.CompanyName))
	log.Info("run started", zap.String("industry", input.Industry))

	result := &model.RunResult{
		RunID:     runID,
		Status:    model.RunDone,
		Input:     input,
		Phases:    make(map[model.PhaseName]model.PhaseResult),
		StartedAt: started,
	}

	result.Plan = p.planner.Plan(input, doc)

	planFields := []zap.Field{zap.Int("queries", len(result.Plan.Queries)), zap.Bool("generic", result.Plan.Generic)}
	for _, cat := range model.AllCategories() {
		planFields = append(planFields, zap.Int(string(cat), len(result.Plan.ByCategory(cat))))
	}
	log.Debug("query plan built", planFields...)

	records, err := p.retriever.Retrieve(ctx, result.Plan)
	if err != nil {
		// Only cancellation surfaces here; degraded providers already folded
		// into partial records.
		return result, err
	}
	if doc != nil {
		records = append(records, documentRecord(doc, p.now()))
	}
	result.SourcesRetrieved = len(records)

	sc := scorer.New(p.cfg.Scorer, p.tables, result.Plan.Keywords, p.now())
	scored := sc.ScoreAll(records)

	agg := aggregate.New(p.cfg.Context)
	result.Context = agg.Aggregate(scored)
	result.SourcesUsed = result.Context.SourceCount

	system := anthropic.BuildCachedSystemBlocks(systemPrompt(result.Context))

	var usage anthropic.TokenUsage
	for _, spec := range phaseSpecs {
		if ctx.Err() != nil {
			result.Phases[spec.name] = p.fallbackResult(spec, input, result.Context, model.FlagProviderUnavailable)
			continue
		}
		phaseResult := p.runPhase(ctx, spec, input, system, result.Context, result.Phases)
		result.Phases[spec.name] = phaseResult
		usage.Add(anthropic.TokenUsage{
			InputTokens:  phaseResult.InputTokens,
			OutputTokens: phaseResult.OutputTokens,
		})
	}

	result.TotalCostUSD = usage.EstimateCost(p.cfg.Anthropic.Model)
	result.DataQuality = dataQuality(result.Context, result.Phases)
	result.Duration = p.now().Sub(started)

	log.Info("run complete",
		zap.Duration("duration", result.Duration),
		zap.Int("sources_retrieved", result.SourcesRetrieved),
		zap.Int("sources_used", result.SourcesUsed),
		zap.Bool("degraded", result.Degraded()),
		zap.Float64("cost_usd", result.TotalCostUSD),
	)
	return result, ctx.Err()
}

// runPhase executes one phase with bounded reformatting retries. Malformed
// responses get one stricter retry per configured bound; anything still
// unusable becomes the phase's fallback template result. The run never stops
// here.
func (p *Pipeline) runPhase(ctx context.Context, spec phaseSpec, input model.BusinessInput, system []anthropic.SystemBlock, agg model.AggregatedContext, prior map[model.PhaseName]model.PhaseResult) model.PhaseResult {
	start := p.now()
	log := zap.L().With(zap.String("phase", string(spec.name)))

	pctx, cancel := context.WithTimeout(ctx, p.cfg.Analysis.PhaseTimeout())
	defer cancel()

	attempts := p.cfg.Analysis.ParseRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	policy := p.retry
	policy.OnAttempt = resilience.AttemptLogger("anthropic", string(spec.name))

	var (
		usage       anthropic.TokenUsage
		lastErr     error
		data        map[string]any
		raw         string
		providerErr bool
		retries     int
	)
	for attempt := 0; attempt < attempts; attempt++ {
		retries = attempt
		req := anthropic.MessageRequest{
			Model:     p.cfg.Anthropic.Model,
			MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
			System:    system,
			Messages: []anthropic.Message{{
				Role:    "user",
				Content: buildPrompt(spec, input, prior, attempt > 0),
			}},
		}
		resp, err := resilience.DoVal(pctx, policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return p.llm.CreateMessage(ctx, req)
		})
		if err != nil {
			lastErr = err
			providerErr = true
			log.Warn("model call failed", zap.Int("attempt", attempt+1), zap.Error(err))
			if pctx.Err() != nil {
				break
			}
			continue
		}
		providerErr = false
		usage.Add(resp.Usage)
		raw = resp.Text()

		data, lastErr = parseResponse(raw, spec.expected)
		if lastErr == nil {
			break
		}
		log.Warn("malformed model response", zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}

	var result model.PhaseResult
	if data == nil {
		flag := model.FlagMalformedResponse
		if providerErr {
			flag = model.FlagProviderUnavailable
		}
		result = p.fallbackResult(spec, input, agg, flag)
		log.Warn("phase degraded to fallback output", zap.Error(lastErr))
	} else {
		result = model.PhaseResult{
			Phase:      spec.name,
			Status:     model.PhaseComplete,
			Data:       data,
			Citations:  extractCitations(raw, len(agg.Bibliography)),
			Confidence: 0.9,
		}
		for _, f := range sanitizeNumbers(spec.name, data, p.cfg.Analysis) {
			result.Flag(f)
		}
		if agg.Insufficient {
			result.Flag(model.FlagInsufficientContext)
		}
		result.Confidence -= 0.2 * float64(len(result.Flags))
		if result.Confidence < 0.1 {
			result.Confidence = 0.1
		}
	}

	result.RawOutput = raw
	result.RetryCount = retries
	result.InputTokens = usage.InputTokens + usage.CacheCreationInputTokens + usage.CacheReadInputTokens
	result.OutputTokens = usage.OutputTokens
	result.Duration = p.now().Sub(start)
	usage.LogCost(p.cfg.Anthropic.Model, string(spec.name))

	log.Info("phase finished",
		zap.String("status", string(result.Status)),
		zap.Strings("flags", result.Flags),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (p *Pipeline) fallbackResult(spec phaseSpec, input model.BusinessInput, agg model.AggregatedContext, flag string) model.PhaseResult {
	result := model.PhaseResult{
		Phase:      spec.name,
		Status:     model.PhaseFallback,
		Data:       fallbackData(spec, input),
		Confidence: 0.1,
	}
	result.Flag(flag)
	if agg.Insufficient {
		result.Flag(model.FlagInsufficientContext)
	}
	return result
}

// systemPrompt renders the shared system block: role, the aggregated
// research context, and the bibliography. It is identical across all five
// phases so the provider-side prompt cache pays for itself.
func systemPrompt(agg model.AggregatedContext) string {
	var sb []string
	sb = append(sb,
		"You are a market segmentation analyst. Ground every claim in the research context below and cite sources by their [n] markers.",
		"",
		"## Research context",
		agg.Text(),
	)
	if len(agg.Bibliography) > 0 {
		sb = append(sb, "", "## Bibliography")
		sb = append(sb, agg.Bibliography...)
	}
	if agg.Insufficient {
		sb = append(sb, "", "NOTE: the research context is insufficient. Flag every figure as low confidence.")
	}
	return strings.Join(sb, "\n")
}

// dataQuality blends category coverage with mean phase confidence into a
// single [0,1] summary of how well the research supported the run.
func dataQuality(agg model.AggregatedContext, phases map[model.PhaseName]model.PhaseResult) float64 {
	cats := model.AllCategories()
	covered := 0
	for _, cat := range cats {
		if agg.CategoryCoverage[cat] > 0 {
			covered++
		}
	}
	coverage := float64(covered) / float64(len(cats))

	var confSum float64
	for _, p := range phases {
		confSum += p.Confidence
	}
	meanConf := 0.0
	if len(phases) > 0 {
		meanConf = confSum / float64(len(phases))
	}

	return 0.5*coverage + 0.5*meanConf
}

// documentRecord wraps user-supplied document context as a pseudo-source so
// it competes for context budget alongside retrieved sources.
func documentRecord(doc *model.DocumentContext, now time.Time) model.SourceRecord {
	return model.SourceRecord{
		URL:           "uploads://user-documents",
		NormalizedURL: "uploads://user-documents",
		Title:         fmt.Sprintf("User-supplied documents (%d files, %d data points)", doc.FileCount, doc.DataPoints),
		Content:       doc.Text,
		ContentType:   model.ContentTypeDocument,
		PublishedAt:   &now,
		RetrievedAt:   now,
		Categories:    []model.QueryCategory{model.CategorySegments},
		ScrapeOK:      true,
	}
}
