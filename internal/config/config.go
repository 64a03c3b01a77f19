package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the papertrade platform.
type Config struct {
	Storage Storage       `yaml:"storage"`
	Alpaca  Alpaca        `yaml:"alpaca"`
	Engine  EngineConfig  `yaml:"engine"`
	Trading TradingConfig `yaml:"trading"`
	Logging Logging       `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// EngineConfig controls the limit-order monitor loop.
type EngineConfig struct {
	// PollIntervalSec is the fixed interval between evaluation passes.
	PollIntervalSec int `yaml:"poll_interval_sec"`
	// PriceTimeoutSec bounds each price lookup; a timed-out lookup is
	// treated as price-unavailable and the order is retried next pass.
	PriceTimeoutSec int `yaml:"price_timeout_sec"`
	// RateLimitPerMin paces oracle calls against the data API.
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
}

// TradingConfig defines account parameters.
type TradingConfig struct {
	StartingCash float64 `yaml:"starting_cash"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills in zero-valued fields that have sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Engine.PollIntervalSec == 0 {
		cfg.Engine.PollIntervalSec = 60
	}
	if cfg.Engine.PriceTimeoutSec == 0 {
		cfg.Engine.PriceTimeoutSec = 10
	}
	if cfg.Engine.RateLimitPerMin == 0 {
		cfg.Engine.RateLimitPerMin = 200
	}
	if cfg.Trading.StartingCash == 0 {
		cfg.Trading.StartingCash = 100000
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
