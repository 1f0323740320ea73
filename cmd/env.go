package main

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/pipeline"
	"github.com/sells-group/segment-cli/internal/planner"
	"github.com/sells-group/segment-cli/internal/resilience"
	"github.com/sells-group/segment-cli/internal/retriever"
	"github.com/sells-group/segment-cli/internal/scorer"
	"github.com/sells-group/segment-cli/internal/scrape"
	anthropicpkg "github.com/sells-group/segment-cli/pkg/anthropic"
	"github.com/sells-group/segment-cli/pkg/duckduck"
	"github.com/sells-group/segment-cli/pkg/jina"
	"github.com/sells-group/segment-cli/pkg/serper"
)

// newPipeline wires the search, scrape, scoring, and LLM clients into a
// ready-to-run pipeline from the loaded configuration. The returned breaker
// set holds the per-provider circuit breakers so the serve command can report
// and reset them.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, *resilience.BreakerSet, error) {
	var serperOpts []serper.Option
	if cfg.Serper.BaseURL != "" {
		serperOpts = append(serperOpts, serper.WithBaseURL(cfg.Serper.BaseURL))
	}
	serperClient := serper.NewClient(cfg.Serper.Key, serperOpts...)

	duckClient := duckduck.NewClient()

	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(
			scrape.WithTimeout(cfg.Scrape.Timeout()),
			scrape.WithMaxBodyBytes(int64(cfg.Scrape.MaxBodyBytes)),
		),
	}
	if cfg.Jina.Key != "" {
		var jinaOpts []jina.Option
		if cfg.Jina.BaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithBaseURL(cfg.Jina.BaseURL))
		}
		scrapers = append(scrapers, scrape.NewJinaAdapter(jina.NewClient(cfg.Jina.Key, jinaOpts...)))
	}
	chain := scrape.NewChain(scrape.NewURLFilter(nil, nil), scrapers...)

	tables, err := scorer.LoadTables(cfg.Scorer.TablePath)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load scoring tables")
	}

	breakers := resilience.NewBreakerSet(retriever.ProviderBreakerConfig())

	retOpts := []retriever.Option{
		retriever.WithBreaker(breakers.Get("serper")),
	}
	if cfg.Serper.GL != "" && cfg.Serper.HL != "" {
		retOpts = append(retOpts, retriever.WithLocale(cfg.Serper.GL, cfg.Serper.HL))
	}

	pl := planner.New(cfg.Planner.MaxQueries)
	ret := retriever.New(cfg.Retrieve, serperClient, duckClient, chain, retOpts...)
	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)

	return pipeline.New(cfg, pl, ret, tables, llm), breakers, nil
}
