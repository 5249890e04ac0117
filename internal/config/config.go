// Package config defines the daemon configuration and its validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"solana-signal-engine/internal/bus"
	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/guard"
	"solana-signal-engine/internal/strategy"
)

// Config is the root configuration. Fields are decoded from a YAML or TOML
// file and then optionally overridden by SIGNAL_* environment variables.
type Config struct {
	LogLevel    string `yaml:"log_level" toml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`

	Registry     RegistryConfig     `yaml:"registry" toml:"registry"`
	Sources      SourcesConfig      `yaml:"sources" toml:"sources"`
	Guard        guard.Thresholds   `yaml:"guard" toml:"guard"`
	Strategy     strategy.Config    `yaml:"strategy" toml:"strategy"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" toml:"orchestrator"`
	Providers    ProvidersConfig    `yaml:"providers" toml:"providers"`
	Storage      StorageConfig      `yaml:"storage" toml:"storage"`
	Bus          bus.RedisConfig    `yaml:"bus" toml:"bus"` // empty addr publishes in memory
}

// RegistryConfig tunes the candidate registry and its ingress queue.
type RegistryConfig struct {
	SelectionInterval time.Duration                   `yaml:"selection_interval" toml:"selection_interval"`
	TopK              int                             `yaml:"top_k" toml:"top_k"`
	MinScores         map[domain.Source]float64       `yaml:"min_scores" toml:"min_scores"`
	TTLs              map[domain.Source]time.Duration `yaml:"ttls" toml:"ttls"`
	IngressCapacity   int                             `yaml:"ingress_capacity" toml:"ingress_capacity"`
	SelectedCapacity  int                             `yaml:"selected_capacity" toml:"selected_capacity"`
}

// SourcesConfig enables and tunes the discovery sources.
type SourcesConfig struct {
	NewPool   NewPoolConfig   `yaml:"new_pool" toml:"new_pool"`
	Trending  PollConfig      `yaml:"trending" toml:"trending"`
	Flow      FlowConfig      `yaml:"flow" toml:"flow"`
	Liquidity LiquidityConfig `yaml:"liquidity" toml:"liquidity"`
}

// NewPoolConfig tunes the on-chain pool-initialization source.
type NewPoolConfig struct {
	Enabled      bool `yaml:"enabled" toml:"enabled"`
	FetchWorkers int  `yaml:"fetch_workers" toml:"fetch_workers"`
}

// PollConfig tunes a polling source.
type PollConfig struct {
	Enabled  bool          `yaml:"enabled" toml:"enabled"`
	Interval time.Duration `yaml:"interval" toml:"interval"`
	Limit    int           `yaml:"limit" toml:"limit"`
}

// FlowConfig tunes the net-inflow source.
type FlowConfig struct {
	PollConfig      `yaml:",inline"`
	Window          time.Duration `yaml:"window" toml:"window"`
	MinNetInflowUSD float64       `yaml:"min_net_inflow_usd" toml:"min_net_inflow_usd"`
}

// LiquidityConfig tunes the liquidity sampler.
type LiquidityConfig struct {
	Interval   time.Duration `yaml:"interval" toml:"interval"`
	TrackFor   time.Duration `yaml:"track_for" toml:"track_for"`
	MaxTracked int           `yaml:"max_tracked" toml:"max_tracked"`
}

// OrchestratorConfig tunes evaluation scheduling.
type OrchestratorConfig struct {
	ExitInterval  time.Duration `yaml:"exit_interval" toml:"exit_interval"`
	EvalTimeout   time.Duration `yaml:"eval_timeout" toml:"eval_timeout"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" toml:"shutdown_grace"`
	ExitWorkers   int           `yaml:"exit_workers" toml:"exit_workers"`
}

// ProvidersConfig holds external endpoints and credentials.
type ProvidersConfig struct {
	MarketDataURL    string        `yaml:"market_data_url" toml:"market_data_url"`
	MarketDataAPIKey string        `yaml:"market_data_api_key" toml:"market_data_api_key"`
	QuoteURL         string        `yaml:"quote_url" toml:"quote_url"`
	SolanaRPC        string        `yaml:"solana_rpc" toml:"solana_rpc"`
	SolanaWS         string        `yaml:"solana_ws" toml:"solana_ws"`
	MaxRetries       int           `yaml:"max_retries" toml:"max_retries"`
	Timeout          time.Duration `yaml:"timeout" toml:"timeout"`
}

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	UseMemory     bool   `yaml:"use_memory" toml:"use_memory"`
	PostgresDSN   string `yaml:"postgres_dsn" toml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn" toml:"clickhouse_dsn"`
}

// Defaults returns transport and runtime defaults. Risk parameters,
// guard limits and sleeve bands are left zero on purpose: Validate rejects
// a config that does not set them.
func Defaults() Config {
	return Config{
		LogLevel:    "info",
		MetricsAddr: ":9090",
		Registry: RegistryConfig{
			SelectionInterval: 30 * time.Second,
			TopK:              5,
			IngressCapacity:   1024,
			SelectedCapacity:  64,
		},
		Sources: SourcesConfig{
			NewPool:  NewPoolConfig{Enabled: true, FetchWorkers: 4},
			Trending: PollConfig{Enabled: true, Interval: time.Minute, Limit: 20},
			Flow: FlowConfig{
				PollConfig: PollConfig{Enabled: true, Interval: time.Minute, Limit: 20},
				Window:     time.Hour,
			},
			Liquidity: LiquidityConfig{
				Interval:   time.Minute,
				TrackFor:   2 * time.Hour,
				MaxTracked: 500,
			},
		},
		Orchestrator: OrchestratorConfig{
			ExitInterval:  15 * time.Second,
			EvalTimeout:   20 * time.Second,
			ShutdownGrace: 10 * time.Second,
			ExitWorkers:   8,
		},
		Providers: ProvidersConfig{
			MarketDataURL: "https://public-api.birdeye.so",
			QuoteURL:      "https://quote-api.jup.ag",
			SolanaRPC:     "https://api.mainnet-beta.solana.com",
			SolanaWS:      "wss://api.mainnet-beta.solana.com",
			MaxRetries:    3,
			Timeout:       30 * time.Second,
		},
		Storage: StorageConfig{UseMemory: true},
		Bus:     bus.RedisConfig{Prefix: "signals", PoolSize: 10, MaxRetries: 3},
	}
}

// StrategyConfig returns the strategy configuration with the guard limits
// the sleeves share mirrored in.
func (c *Config) StrategyConfig() strategy.Config {
	sc := c.Strategy
	sc.MinLiquidityUSD = c.Guard.MinLiquidityUSD
	sc.MinBuySellRatio = c.Guard.MinBuySellRatio
	return sc
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate reports every missing or invalid option. The returned error
// wraps domain.ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: trace, debug, info, warn, error)", c.LogLevel)
	}

	if c.Registry.SelectionInterval <= 0 {
		add("registry.selection_interval must be > 0")
	}
	if c.Registry.TopK <= 0 {
		add("registry.top_k must be > 0")
	}
	if c.Registry.IngressCapacity <= 0 || c.Registry.SelectedCapacity <= 0 {
		add("registry queue capacities must be > 0")
	}
	for src, v := range c.Registry.MinScores {
		if !src.IsValid() {
			add("registry.min_scores: unknown source %q", src)
		} else if v < 0 {
			add("registry.min_scores.%s must be >= 0", src)
		}
	}
	for src, ttl := range c.Registry.TTLs {
		if !src.IsValid() {
			add("registry.ttls: unknown source %q", src)
		} else if ttl <= 0 {
			add("registry.ttls.%s must be > 0", src)
		}
	}

	s := c.Sources
	if !s.NewPool.Enabled && !s.Trending.Enabled && !s.Flow.Enabled {
		add("sources: at least one source must be enabled")
	}
	if s.NewPool.Enabled && (c.Providers.SolanaRPC == "" || c.Providers.SolanaWS == "") {
		add("providers.solana_rpc and providers.solana_ws are required by sources.new_pool")
	}
	if s.Trending.Enabled && s.Trending.Interval <= 0 {
		add("sources.trending.interval must be > 0")
	}
	if s.Flow.Enabled && (s.Flow.Interval <= 0 || s.Flow.Window <= 0) {
		add("sources.flow interval and window must be > 0")
	}
	if s.Flow.MinNetInflowUSD < 0 {
		add("sources.flow.min_net_inflow_usd must be >= 0")
	}

	if c.Orchestrator.ExitInterval <= 0 {
		add("orchestrator.exit_interval must be > 0")
	}
	if c.Orchestrator.ShutdownGrace < 0 {
		add("orchestrator.shutdown_grace must be >= 0")
	}

	if c.Providers.MarketDataURL == "" {
		add("providers.market_data_url is required")
	}
	if c.Providers.QuoteURL == "" {
		add("providers.quote_url is required")
	}

	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		add("storage.postgres_dsn is required unless storage.use_memory is set")
	}

	errs := []error{c.Guard.Validate(), c.StrategyConfig().Validate()}
	if len(problems) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; ")))
	}
	return errors.Join(errs...)
}
