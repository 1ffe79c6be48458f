// Package config loads run configuration from YAML with environment
// overrides for credentials and connection strings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"signal-backtest-lab/internal/domain"
)

// Config is the full run configuration. Values are immutable after Load.
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Strategy StrategyConfig `yaml:"strategy"`
	Resolver ResolverConfig `yaml:"resolver"`
	Symbols  SymbolsConfig  `yaml:"symbols"`
	Storage  StorageConfig  `yaml:"storage"`
}

// BinanceConfig holds API credentials and client pacing.
type BinanceConfig struct {
	APIKey            string  `yaml:"api_key"`
	APISecret         string  `yaml:"api_secret"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
	RetryDelayMs      int     `yaml:"retry_delay_ms"`
}

// StrategyConfig holds the portfolio strategy parameters.
type StrategyConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	RiskPct        float64 `yaml:"risk_pct"`
	StopLossPct    float64 `yaml:"stop_loss_pct"`
	RiskReward     float64 `yaml:"risk_reward"`
	TrailMovePct   float64 `yaml:"trail_move_pct"`
	FixedSizing    bool    `yaml:"fixed_sizing"` // risk off initial capital instead of compounding
}

// ResolverConfig holds outcome resolution parameters.
type ResolverConfig struct {
	TimeBudgetDays int             `yaml:"time_budget_days"`
	Timeframes     []TimeframeStep `yaml:"timeframes"`
}

// TimeframeStep is the YAML form of a progressive scan step.
type TimeframeStep struct {
	Interval   string `yaml:"interval"`
	MaxCandles int    `yaml:"max_candles"`
}

// SymbolsConfig holds coin-to-symbol mapping rules.
type SymbolsConfig struct {
	QuoteSuffix string            `yaml:"quote_suffix"`
	Overrides   map[string]string `yaml:"overrides"`
}

// StorageConfig holds persistence connection strings. Empty DSNs keep
// the run on in-memory stores.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Binance: BinanceConfig{
			RequestsPerSecond: 5,
			MaxRetries:        3,
			RetryDelayMs:      1500,
		},
		Strategy: StrategyConfig{
			InitialCapital: 10000,
			RiskPct:        2,
			StopLossPct:    5,
			RiskReward:     2,
			TrailMovePct:   3,
		},
		Resolver: ResolverConfig{
			TimeBudgetDays: 365,
		},
		Symbols: SymbolsConfig{
			QuoteSuffix: "USDT",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path loads defaults and environment
// only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides credentials and DSNs from the environment so they
// never have to live in the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Binance.APISecret = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	if c.Binance.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: requests_per_second must be positive")
	}
	if c.Binance.MaxRetries < 1 {
		return fmt.Errorf("config: max_retries must be at least 1")
	}
	if c.Resolver.TimeBudgetDays <= 0 {
		return fmt.Errorf("config: time_budget_days must be positive")
	}
	for _, step := range c.Resolver.Timeframes {
		if !domain.Interval(step.Interval).IsValid() {
			return fmt.Errorf("config: unknown interval %q", step.Interval)
		}
		if step.MaxCandles <= 0 {
			return fmt.Errorf("config: max_candles must be positive for interval %s", step.Interval)
		}
	}
	return nil
}

// TimeBudget returns the resolution lookahead as a duration.
func (c Config) TimeBudget() time.Duration {
	return time.Duration(c.Resolver.TimeBudgetDays) * 24 * time.Hour
}

// TimeframeSteps converts the configured scan steps to domain form,
// falling back to the built-in ladder when none are configured.
func (c Config) TimeframeSteps() []domain.TimeframeStep {
	if len(c.Resolver.Timeframes) == 0 {
		return domain.DefaultTimeframeSteps
	}
	steps := make([]domain.TimeframeStep, len(c.Resolver.Timeframes))
	for i, s := range c.Resolver.Timeframes {
		steps[i] = domain.TimeframeStep{
			Interval:   domain.Interval(s.Interval),
			MaxCandles: s.MaxCandles,
		}
	}
	return steps
}

// RetryDelay returns the provider retry delay as a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Binance.RetryDelayMs) * time.Millisecond
}
