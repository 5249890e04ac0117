package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/domain"
)

const exampleYAML = "../../configs/signal.example.yaml"

func TestLoad_ExampleYAML(t *testing.T) {
	cfg, err := Load(exampleYAML)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.Registry.SelectionInterval)
	assert.Equal(t, 80.0, cfg.Registry.MinScores[domain.SourceNewPool])
	assert.Equal(t, time.Hour, cfg.Sources.Flow.Window)
	assert.Equal(t, time.Minute, cfg.Sources.Flow.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Guard.FreshnessBudget)

	scalps := cfg.Strategy.Sleeves[domain.SleeveScalps]
	assert.Equal(t, []float64{50, 100, 200}, scalps.TakeProfitLadder)
	assert.Equal(t, 20*time.Minute, scalps.StallAfter)
	assert.Equal(t, 1_000_000.0, scalps.MarketCap.MaxUSD)
	assert.Equal(t, 48*time.Hour, cfg.Strategy.Sleeves[domain.SleeveSwing].DecayAfter)
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load("testdata/minimal.toml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Registry.TopK)
	assert.False(t, cfg.Sources.NewPool.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Sources.Flow.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Sources.Flow.Window)
	assert.Equal(t, time.Hour, cfg.Strategy.Risk.LossStreakCooldown)
	assert.Equal(t, 15.0, cfg.Strategy.Sleeves[domain.SleeveMomentum].TrailingPct)

	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Registry.SelectionInterval)
	assert.Equal(t, "https://quote-api.jup.ag", cfg.Providers.QuoteURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIGNAL_MARKET_DATA_API_KEY", "secret")
	t.Setenv("SIGNAL_POSTGRES_DSN", "postgres://u:p@db/signals")
	t.Setenv("SIGNAL_STORAGE_USE_MEMORY", "false")
	t.Setenv("SIGNAL_REDIS_ADDR", "redis:6379")
	t.Setenv("SIGNAL_PROVIDER_TIMEOUT", "5s")
	t.Setenv("SIGNAL_PROVIDER_MAX_RETRIES", "not-a-number")

	cfg, err := Load(exampleYAML)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Providers.MarketDataAPIKey)
	assert.Equal(t, "postgres://u:p@db/signals", cfg.Storage.PostgresDSN)
	assert.False(t, cfg.Storage.UseMemory)
	assert.Equal(t, "redis:6379", cfg.Bus.Addr)
	assert.Equal(t, 5*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 3, cfg.Providers.MaxRetries, "unparsable override is ignored")
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", "testdata/does-not-exist.yaml"},
		{"unknown yaml key", "testdata/unknown_key.yaml"},
		{"unsupported extension", writeTemp(t, "cfg.json", "{}")},
		{"unknown toml key", writeTemp(t, "cfg.toml", "bogus = 1\n")},
		{"malformed yaml", writeTemp(t, "cfg.yaml", "registry: [\n")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}

func TestValidate_RiskParametersAreNotDefaulted(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "min_liquidity_usd")
	assert.Contains(t, err.Error(), "bankroll_sol")
	assert.Contains(t, err.Error(), "sleeve SCALPS is not configured")
	assert.Contains(t, err.Error(), "risk.daily_drawdown_pct")
}

func TestValidate_PartialFile(t *testing.T) {
	cfg, err := Load("testdata/missing_risk.yaml")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_holders")
	assert.NotContains(t, err.Error(), "guard: min_liquidity_usd")
}

func TestValidate_Runtime(t *testing.T) {
	base, err := Load(exampleYAML)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"top k", func(c *Config) { c.Registry.TopK = 0 }, "registry.top_k"},
		{"no sources", func(c *Config) {
			c.Sources.NewPool.Enabled = false
			c.Sources.Trending.Enabled = false
			c.Sources.Flow.Enabled = false
		}, "at least one source"},
		{"new pool without ws", func(c *Config) { c.Providers.SolanaWS = "" }, "solana_ws"},
		{"unknown source score", func(c *Config) {
			c.Registry.MinScores = map[domain.Source]float64{"WHALE": 10}
		}, "unknown source"},
		{"postgres required", func(c *Config) { c.Storage.UseMemory = false }, "postgres_dsn"},
		{"exit interval", func(c *Config) { c.Orchestrator.ExitInterval = 0 }, "exit_interval"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			cfg.Registry.MinScores = nil
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStrategyConfig_MirrorsGuardLimits(t *testing.T) {
	cfg, err := Load(exampleYAML)
	require.NoError(t, err)

	sc := cfg.StrategyConfig()
	assert.Equal(t, cfg.Guard.MinLiquidityUSD, sc.MinLiquidityUSD)
	assert.Equal(t, cfg.Guard.MinBuySellRatio, sc.MinBuySellRatio)
	assert.Zero(t, cfg.Strategy.MinLiquidityUSD, "source config is not mutated")
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
