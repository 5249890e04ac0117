package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"solana-signal-engine/internal/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIGNAL_"

// Load reads the configuration file at path on top of Defaults, loads a
// .env file from the working directory if present, and applies SIGNAL_*
// environment overrides. The format follows the file extension: .yaml/.yml
// or .toml. An empty path yields defaults plus overrides.
// The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// a missing .env is not an error
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrConfiguration, path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%w: decode %s: %v", domain.ErrConfiguration, path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("%w: decode %s: %v", domain.ErrConfiguration, path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("%w: %s: unknown keys %s", domain.ErrConfiguration, path, strings.Join(keys, ", "))
		}
	default:
		return fmt.Errorf("%w: unsupported config format %q", domain.ErrConfiguration, ext)
	}
	return nil
}

// applyEnvOverrides lets operators inject endpoints and secrets at deploy
// time without touching the file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.MetricsAddr, "METRICS_ADDR")

	// providers
	setStr(&cfg.Providers.MarketDataURL, "MARKET_DATA_URL")
	setStr(&cfg.Providers.MarketDataAPIKey, "MARKET_DATA_API_KEY")
	setStr(&cfg.Providers.QuoteURL, "QUOTE_URL")
	setStr(&cfg.Providers.SolanaRPC, "SOLANA_RPC")
	setStr(&cfg.Providers.SolanaWS, "SOLANA_WS")
	setInt(&cfg.Providers.MaxRetries, "PROVIDER_MAX_RETRIES")
	setDuration(&cfg.Providers.Timeout, "PROVIDER_TIMEOUT")

	// storage
	setBool(&cfg.Storage.UseMemory, "STORAGE_USE_MEMORY")
	setStr(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
	setStr(&cfg.Storage.ClickHouseDSN, "CLICKHOUSE_DSN")

	// bus
	setStr(&cfg.Bus.Addr, "REDIS_ADDR")
	setStr(&cfg.Bus.Password, "REDIS_PASSWORD")
	setInt(&cfg.Bus.DB, "REDIS_DB")
	setBool(&cfg.Bus.TLSEnabled, "REDIS_TLS")
	setStr(&cfg.Bus.Prefix, "REDIS_PREFIX")

	// sources
	setBool(&cfg.Sources.NewPool.Enabled, "SOURCE_NEW_POOL")
	setBool(&cfg.Sources.Trending.Enabled, "SOURCE_TRENDING")
	setBool(&cfg.Sources.Flow.Enabled, "SOURCE_FLOW")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
