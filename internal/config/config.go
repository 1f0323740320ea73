package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Serper    SerperConfig    `yaml:"serper" mapstructure:"serper"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Retrieve  RetrieveConfig  `yaml:"retrieve" mapstructure:"retrieve"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Planner   PlannerConfig   `yaml:"planner" mapstructure:"planner"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Context   ContextConfig   `yaml:"context" mapstructure:"context"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SerperConfig holds Serper search API settings.
type SerperConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Results int    `yaml:"results" mapstructure:"results"`

	// GL and HL are the provider's country and language codes ("us", "en").
	// Empty leaves the locale to the provider.
	GL string `yaml:"gl" mapstructure:"gl"`
	HL string `yaml:"hl" mapstructure:"hl"`
}

// JinaConfig holds Jina AI Reader settings (scrape fallback).
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetrieveConfig bounds the concurrent retrieval stage.
type RetrieveConfig struct {
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries        int     `yaml:"retries" mapstructure:"retries"`
	ProviderQPS    float64 `yaml:"provider_qps" mapstructure:"provider_qps"`
	MaxPerQuery    int     `yaml:"max_per_query" mapstructure:"max_per_query"`
	ScrapeTopN     int     `yaml:"scrape_top_n" mapstructure:"scrape_top_n"`
	ScrapeParallel int     `yaml:"scrape_parallel" mapstructure:"scrape_parallel"`
}

// ScrapeConfig configures full-content extraction for retrieved URLs.
type ScrapeConfig struct {
	TimeoutSecs  int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes int `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// PlannerConfig bounds query generation.
type PlannerConfig struct {
	MaxQueries int `yaml:"max_queries" mapstructure:"max_queries"`
}

// ScorerConfig configures source quality scoring.
type ScorerConfig struct {
	// FreshDays is the window inside which a dated source scores full
	// recency. Decay starts only past the window.
	FreshDays     float64 `yaml:"fresh_days" mapstructure:"fresh_days"`
	HalfLifeDays  float64 `yaml:"half_life_days" mapstructure:"half_life_days"`
	SnippetFactor float64 `yaml:"snippet_factor" mapstructure:"snippet_factor"`
	TablePath     string  `yaml:"table_path" mapstructure:"table_path"`
}

// ContextConfig bounds context aggregation.
type ContextConfig struct {
	// TokenBudget caps the packed context. Tokens are estimated at 4
	// characters each, so the character ceiling is 4 x TokenBudget.
	TokenBudget    int     `yaml:"token_budget" mapstructure:"token_budget"`
	MaxPerSource   int     `yaml:"max_per_source" mapstructure:"max_per_source"`
	MinConfidence  float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinSources     int     `yaml:"min_sources" mapstructure:"min_sources"`
	CoveragePerCat int     `yaml:"coverage_per_cat" mapstructure:"coverage_per_cat"`
}

// AnalysisConfig configures the phase orchestrator.
type AnalysisConfig struct {
	MaxGrowthPct     float64 `yaml:"max_growth_pct" mapstructure:"max_growth_pct"`
	MinMarketUSD     float64 `yaml:"min_market_usd" mapstructure:"min_market_usd"`
	MaxMarketUSD     float64 `yaml:"max_market_usd" mapstructure:"max_market_usd"`
	ParseRetries     int     `yaml:"parse_retries" mapstructure:"parse_retries"`
	PhaseTimeoutSecs int     `yaml:"phase_timeout_secs" mapstructure:"phase_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the per-request retrieval timeout.
func (c RetrieveConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the per-URL scrape timeout.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PhaseTimeout returns the per-phase LLM call timeout.
func (c AnalysisConfig) PhaseTimeout() time.Duration {
	return time.Duration(c.PhaseTimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SEGMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.results", 10)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("retrieve.concurrency", 8)
	v.SetDefault("retrieve.timeout_secs", 15)
	v.SetDefault("retrieve.retries", 2)
	v.SetDefault("retrieve.provider_qps", 5)
	v.SetDefault("retrieve.max_per_query", 10)
	v.SetDefault("retrieve.scrape_top_n", 3)
	v.SetDefault("retrieve.scrape_parallel", 4)
	v.SetDefault("scrape.timeout_secs", 10)
	v.SetDefault("scrape.max_body_bytes", 512*1024)
	v.SetDefault("planner.max_queries", 25)
	v.SetDefault("scorer.fresh_days", 730)
	v.SetDefault("scorer.half_life_days", 365)
	v.SetDefault("scorer.snippet_factor", 0.8)
	v.SetDefault("context.token_budget", 24000)
	v.SetDefault("context.max_per_source", 2000)
	v.SetDefault("context.min_confidence", 0.3)
	v.SetDefault("context.min_sources", 3)
	v.SetDefault("context.coverage_per_cat", 1)
	v.SetDefault("analysis.max_growth_pct", 100)
	v.SetDefault("analysis.min_market_usd", 1_000_000)
	v.SetDefault("analysis.max_market_usd", 5_000_000_000_000)
	v.SetDefault("analysis.parse_retries", 1)
	v.SetDefault("analysis.phase_timeout_secs", 120)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode
// ("run", "plan", or "serve"). Missing credentials and out-of-range bounds
// are collected into a single error.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "plan":
		// Planning is offline; no credentials needed.
	case "run":
		if c.Serper.Key == "" {
			problems = append(problems, "serper.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		if c.Serper.Key == "" {
			problems = append(problems, "serper.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "plan" {
		if c.Retrieve.Concurrency < 1 || c.Retrieve.Concurrency > 64 {
			problems = append(problems, "retrieve.concurrency must be between 1 and 64")
		}
		if c.Context.TokenBudget < 1000 {
			problems = append(problems, "context.token_budget must be >= 1000")
		}
		if c.Scorer.SnippetFactor <= 0 || c.Scorer.SnippetFactor > 1 {
			problems = append(problems, "scorer.snippet_factor must be in (0, 1]")
		}
		if c.Analysis.MaxGrowthPct <= 0 {
			problems = append(problems, "analysis.max_growth_pct must be > 0")
		}
	}
	if c.Planner.MaxQueries < 1 || c.Planner.MaxQueries > 30 {
		problems = append(problems, "planner.max_queries must be between 1 and 30")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
