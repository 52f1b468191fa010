// Package config loads and validates the driftguard application
// configuration from a YAML file, with environment variable overrides for
// credentials and paths. A malformed configuration is the only fatal error
// in the system: everything downstream is expected to recover.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the driftguard agent.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	PriceFeed PriceFeedConfig `yaml:"pricefeed"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Alpaca    Alpaca          `yaml:"alpaca"`
	Logging   Logging         `yaml:"logging"`
	Rebalance RebalanceConfig `yaml:"rebalance"`
	StopLoss  StopLossConfig  `yaml:"stoploss"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"`
	SQLitePath  string `yaml:"sqlite_path"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

// PriceFeedConfig selects and configures the spot price source.
type PriceFeedConfig struct {
	// Provider is "coingecko" (default) or "alpaca".
	Provider        string `yaml:"provider"`
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// ExchangeConfig holds credentials and endpoint for the sandbox exchange.
type ExchangeConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	PaperMode bool   `yaml:"paper_mode"`
}

// Alpaca holds credentials for the alternate Alpaca crypto price feed.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RebalanceConfig defines drift and execution parameters for the daily
// rebalance job.
type RebalanceConfig struct {
	DriftThreshold float64    `yaml:"drift_threshold"`
	MaxSlippage    float64    `yaml:"max_slippage"`
	DailyAt        string     `yaml:"daily_at"` // "HH:MM" local server time
	TargetsPath    string     `yaml:"targets_path"`
	RiskAdjust     bool       `yaml:"risk_adjust"`
	Risk           RiskConfig `yaml:"risk"`
}

// RiskConfig holds the thresholds for the optional risk-adjustment pass.
// All values are configuration, not hard-coded policy.
type RiskConfig struct {
	HighVolatilityPct float64 `yaml:"high_volatility_pct"` // 24h |change| above this → ×0.8
	LowVolumeUSD      float64 `yaml:"low_volume_usd"`      // 24h volume below this → ×0.9
	SmallCapUSD       float64 `yaml:"small_cap_usd"`       // market cap below this → ×0.85
	StableChangePct   float64 `yaml:"stable_change_pct"`   // stability bonus gates, all three
	StableVolumeUSD   float64 `yaml:"stable_volume_usd"`   // must hold for the ×1.05 bonus
	StableCapUSD      float64 `yaml:"stable_cap_usd"`
}

// StopLossConfig defines cadence and path for the stop-loss job. The stop
// levels themselves live in the JSON parameters file (see
// internal/allocation).
type StopLossConfig struct {
	ParamsPath        string `yaml:"params_path"`
	CheckIntervalSecs int    `yaml:"check_interval_secs"`
}

// Interval returns the stop-loss cadence as a duration.
func (s StopLossConfig) Interval() time.Duration {
	return time.Duration(s.CheckIntervalSecs) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it,
// applies defaults and environment variable overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/driftguard.db"
	}
	if cfg.Storage.SnapshotDir == "" {
		cfg.Storage.SnapshotDir = "data/snapshots"
	}
	if cfg.PriceFeed.Provider == "" {
		cfg.PriceFeed.Provider = "coingecko"
	}
	if cfg.PriceFeed.BaseURL == "" {
		cfg.PriceFeed.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.PriceFeed.RateLimitPerMin == 0 {
		cfg.PriceFeed.RateLimitPerMin = 30
	}
	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = "https://api.sandbox.competitions.recall.network"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Rebalance.DriftThreshold == 0 {
		cfg.Rebalance.DriftThreshold = 0.03
	}
	if cfg.Rebalance.MaxSlippage == 0 {
		cfg.Rebalance.MaxSlippage = 0.05
	}
	if cfg.Rebalance.DailyAt == "" {
		cfg.Rebalance.DailyAt = "09:00"
	}
	if cfg.Rebalance.TargetsPath == "" {
		cfg.Rebalance.TargetsPath = "eth_portfolio_config.json"
	}
	if cfg.Rebalance.Risk.HighVolatilityPct == 0 {
		cfg.Rebalance.Risk.HighVolatilityPct = 30
	}
	if cfg.Rebalance.Risk.LowVolumeUSD == 0 {
		cfg.Rebalance.Risk.LowVolumeUSD = 10_000_000
	}
	if cfg.Rebalance.Risk.SmallCapUSD == 0 {
		cfg.Rebalance.Risk.SmallCapUSD = 50_000_000
	}
	if cfg.Rebalance.Risk.StableChangePct == 0 {
		cfg.Rebalance.Risk.StableChangePct = 5
	}
	if cfg.Rebalance.Risk.StableVolumeUSD == 0 {
		cfg.Rebalance.Risk.StableVolumeUSD = 50_000_000
	}
	if cfg.Rebalance.Risk.StableCapUSD == 0 {
		cfg.Rebalance.Risk.StableCapUSD = 1_000_000_000
	}
	if cfg.StopLoss.ParamsPath == "" {
		cfg.StopLoss.ParamsPath = "stop_loss_config.json"
	}
	if cfg.StopLoss.CheckIntervalSecs == 0 {
		cfg.StopLoss.CheckIntervalSecs = 300
	}
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set. Credentials are
// normally supplied this way rather than committed in YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("RECALL_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	// Either key works for CoinGecko; production wins when both are set.
	if v := os.Getenv("SANDBOX_API_KEY"); v != "" {
		cfg.PriceFeed.APIKey = v
	}
	if v := os.Getenv("PRODUCTION_API_KEY"); v != "" {
		cfg.PriceFeed.APIKey = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.PriceFeed.APIKey = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *Config) validate() error {
	switch c.PriceFeed.Provider {
	case "coingecko", "alpaca":
	default:
		return fmt.Errorf("pricefeed.provider %q is not supported (want coingecko or alpaca)", c.PriceFeed.Provider)
	}
	if c.Rebalance.DriftThreshold < 0 || c.Rebalance.DriftThreshold >= 1 {
		return fmt.Errorf("rebalance.drift_threshold %v out of range [0,1)", c.Rebalance.DriftThreshold)
	}
	if c.Rebalance.MaxSlippage < 0 || c.Rebalance.MaxSlippage >= 1 {
		return fmt.Errorf("rebalance.max_slippage %v out of range [0,1)", c.Rebalance.MaxSlippage)
	}
	if _, err := time.Parse("15:04", c.Rebalance.DailyAt); err != nil {
		return fmt.Errorf("rebalance.daily_at %q is not a valid HH:MM time: %w", c.Rebalance.DailyAt, err)
	}
	if c.StopLoss.CheckIntervalSecs < 1 {
		return fmt.Errorf("stoploss.check_interval_secs %d is too short", c.StopLoss.CheckIntervalSecs)
	}
	return nil
}
