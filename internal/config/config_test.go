package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://google.serper.dev", cfg.Serper.BaseURL)
	assert.Equal(t, 10, cfg.Serper.Results)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, 8192, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 8, cfg.Retrieve.Concurrency)
	assert.Equal(t, 15, cfg.Retrieve.TimeoutSecs)
	assert.Equal(t, 2, cfg.Retrieve.Retries)
	assert.Equal(t, 25, cfg.Planner.MaxQueries)
	assert.InDelta(t, 730, cfg.Scorer.FreshDays, 0.001)
	assert.InDelta(t, 365, cfg.Scorer.HalfLifeDays, 0.001)
	assert.InDelta(t, 0.8, cfg.Scorer.SnippetFactor, 0.001)
	assert.Equal(t, 24000, cfg.Context.TokenBudget)
	assert.Equal(t, 3, cfg.Context.MinSources)
	assert.InDelta(t, 100, cfg.Analysis.MaxGrowthPct, 0.001)
	assert.InDelta(t, 5_000_000_000_000, cfg.Analysis.MaxMarketUSD, 1)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
retrieve:
  concurrency: 4
planner:
  max_queries: 12
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Retrieve.Concurrency)
	assert.Equal(t, 12, cfg.Planner.MaxQueries)
	// Defaults still apply for unset values
	assert.Equal(t, 24000, cfg.Context.TokenBudget)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
retrieve:
  concurrency: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SEGMENT_LOG_LEVEL", "warn")
	t.Setenv("SEGMENT_RETRIEVE_CONCURRENCY", "16")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 16, cfg.Retrieve.Concurrency)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("SEGMENT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with bounds populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Retrieve.Concurrency = 8
	cfg.Planner.MaxQueries = 25
	cfg.Context.TokenBudget = 24000
	cfg.Scorer.SnippetFactor = 0.8
	cfg.Analysis.MaxGrowthPct = 100
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "serper-key"
	cfg.Anthropic.Key = "sk-ant-key"

	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateRun_MissingKeys(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "serper.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidatePlan_NoCredentialsNeeded(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("plan"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "k"
	cfg.Anthropic.Key = "k"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "k"
	cfg.Anthropic.Key = "k"

	cfg.Retrieve.Concurrency = 0
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retrieve.concurrency must be between 1 and 64")

	cfg.Retrieve.Concurrency = 65
	err = cfg.Validate("run")
	assert.Error(t, err)

	cfg.Retrieve.Concurrency = 64
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateQueryCap(t *testing.T) {
	cfg := validDefaults()
	cfg.Planner.MaxQueries = 31

	err := cfg.Validate("plan")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "planner.max_queries must be between 1 and 30")
}

func TestValidateScorerBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Serper.Key = "k"
	cfg.Anthropic.Key = "k"

	cfg.Scorer.SnippetFactor = 0
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "snippet_factor")

	cfg.Scorer.SnippetFactor = 1.5
	err = cfg.Validate("run")
	assert.Error(t, err)
}
