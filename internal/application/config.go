// Package application wires the domain packages into runnable cycles and
// owns the operator-facing configuration.
package application

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marketmill/rotor/internal/domain/portfolio"
	"github.com/marketmill/rotor/internal/domain/sizing"
	"github.com/marketmill/rotor/internal/engine"
	"github.com/marketmill/rotor/internal/provider"
)

// Config is the full operator configuration, loaded from one YAML file.
type Config struct {
	// Capital seeds a fresh portfolio on first run. Must be positive.
	Capital float64 `yaml:"capital"`

	DryRun bool `yaml:"dry_run"`

	// HistoryDays is the candle lookback requested per ticker.
	HistoryDays int `yaml:"history_days"`

	WatchlistPath string `yaml:"watchlist_path"`

	// Schedule is a cron expression for the run loop.
	Schedule string `yaml:"schedule"`

	Engine struct {
		RotationThreshold  float64 `yaml:"rotation_threshold"`
		EntryBar           float64 `yaml:"entry_bar"`
		StopLossPercent    float64 `yaml:"stop_loss_percent"`
		CircuitBreakerPct  float64 `yaml:"circuit_breaker_percent"`
		MinCash            float64 `yaml:"min_cash"`
		MaxRotationsPerRun int     `yaml:"max_rotations_per_run"`
		ProtectSoleHolding *bool   `yaml:"protect_sole_holding"`
	} `yaml:"engine"`

	Sizing struct {
		MinAllocation float64 `yaml:"min_allocation"`
		MaxAllocation float64 `yaml:"max_allocation"`
	} `yaml:"sizing"`

	Provider struct {
		BaseURL           string  `yaml:"base_url"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		DailyQuota        int     `yaml:"daily_quota"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
	} `yaml:"provider"`

	Cache struct {
		Enabled    bool   `yaml:"enabled"`
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLMinutes int    `yaml:"ttl_minutes"`
	} `yaml:"cache"`

	Database struct {
		Enabled bool   `yaml:"enabled"`
		DSN     string `yaml:"dsn"`
	} `yaml:"database"`

	Server struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"server"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var c Config
	c.Capital = 10000
	c.HistoryDays = 90
	c.WatchlistPath = "watchlist.yaml"
	c.Schedule = "30 * * * *"
	c.Engine.RotationThreshold = 0.02
	c.Engine.EntryBar = 0.60
	c.Engine.StopLossPercent = portfolio.DefaultStopLossPercent
	c.Engine.CircuitBreakerPct = portfolio.DefaultCircuitBreakerPercent
	c.Engine.MinCash = 10
	c.Engine.MaxRotationsPerRun = 1
	c.Sizing.MinAllocation = sizing.DefaultMinAllocation
	c.Sizing.MaxAllocation = sizing.DefaultMaxAllocation
	c.Provider.RequestsPerSecond = 2
	c.Provider.DailyQuota = 2000
	c.Provider.TimeoutSeconds = 10
	c.Cache.TTLMinutes = 15
	c.Server.Listen = ":8090"
	return c
}

// LoadConfig reads path over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Capital <= 0 {
		return fmt.Errorf("config: capital must be positive, got %v", c.Capital)
	}
	if c.Engine.RotationThreshold < 0 {
		return fmt.Errorf("config: rotation_threshold must not be negative")
	}
	if c.Engine.EntryBar < 0 || c.Engine.EntryBar > 1 {
		return fmt.Errorf("config: entry_bar must be in [0,1], got %v", c.Engine.EntryBar)
	}
	if c.Engine.StopLossPercent >= 0 {
		return fmt.Errorf("config: stop_loss_percent must be negative, got %v", c.Engine.StopLossPercent)
	}
	if c.Engine.CircuitBreakerPct >= 0 {
		return fmt.Errorf("config: circuit_breaker_percent must be negative, got %v", c.Engine.CircuitBreakerPct)
	}
	if c.Sizing.MinAllocation < 0 || c.Sizing.MaxAllocation > 1 || c.Sizing.MinAllocation > c.Sizing.MaxAllocation {
		return fmt.Errorf("config: allocations must satisfy 0 <= min <= max <= 1")
	}
	if c.HistoryDays <= 0 {
		return fmt.Errorf("config: history_days must be positive, got %d", c.HistoryDays)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("config: database enabled without dsn")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("config: cache enabled without addr")
	}
	return nil
}

// EngineConfig maps the file settings onto the rotation policy.
func (c Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.RotationThreshold = c.Engine.RotationThreshold
	cfg.EntryBar = c.Engine.EntryBar
	cfg.StopLossPercent = c.Engine.StopLossPercent
	cfg.CircuitBreakerPercent = c.Engine.CircuitBreakerPct
	cfg.MinCash = c.Engine.MinCash
	cfg.MaxRotationsPerRun = c.Engine.MaxRotationsPerRun
	if c.Engine.ProtectSoleHolding != nil {
		cfg.ProtectSoleHolding = *c.Engine.ProtectSoleHolding
	}
	cfg.MaxAllocationOfCash = c.Sizing.MaxAllocation
	return cfg
}

// ProviderConfig maps the file settings onto the market-data client.
func (c Config) ProviderConfig() provider.YahooConfig {
	cfg := provider.DefaultYahooConfig()
	if c.Provider.BaseURL != "" {
		cfg.BaseURL = c.Provider.BaseURL
	}
	if c.Provider.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = c.Provider.RequestsPerSecond
	}
	if c.Provider.DailyQuota > 0 {
		cfg.DailyQuota = c.Provider.DailyQuota
	}
	if c.Provider.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.Provider.TimeoutSeconds) * time.Second
	}
	return cfg
}

// CacheTTL returns the configured candle TTL.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}
