// Package config loads and validates the session configuration shared by the
// backtest and live commands: which detectors run, their weights, the
// aggregation mode and the exchange settings. Credentials never live in the
// config file; they come from the environment, optionally via a .env file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/quantbay/confluence-bot/internal/backtest"
	"github.com/quantbay/confluence-bot/internal/detectors"
	"github.com/quantbay/confluence-bot/internal/engine"
	"github.com/quantbay/confluence-bot/internal/volumefilter"
)

// ConfigError reports one invalid configuration field.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// ExchangeConfig selects the market data source.
type ExchangeConfig struct {
	Name     string `json:"name"`     // "bybit" or "csv"
	Category string `json:"category"` // bybit product category
	Testnet  bool   `json:"testnet"`
	DataDir  string `json:"data_dir,omitempty"` // csv provider root
}

// SessionConfig is the complete configuration for one trading session.
type SessionConfig struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`

	// Detectors lists the enabled detector names; empty enables the whole
	// catalogue. Weights override the default 1.0 per name.
	Detectors []string           `json:"detectors,omitempty"`
	Weights   map[string]float64 `json:"weights,omitempty"`

	Engine engine.Config `json:"engine"`

	// VolumeFilter is optional; omitting it disables the volume gate.
	VolumeFilter *volumefilter.Config `json:"volume_filter,omitempty"`

	Backtest backtest.Config `json:"backtest"`
	Exchange ExchangeConfig  `json:"exchange"`

	LogLevel string `json:"log_level,omitempty"`
}

// Default returns a runnable session: BTCUSDT hourly, full catalogue, full
// engine mode, volume gate on.
func Default() SessionConfig {
	filter := volumefilter.DefaultConfig()
	return SessionConfig{
		Symbol:       "BTCUSDT",
		Interval:     "1h",
		Engine:       engine.DefaultConfig(),
		VolumeFilter: &filter,
		Backtest:     backtest.DefaultConfig(),
		Exchange:     ExchangeConfig{Name: "bybit", Category: "spot"},
		LogLevel:     "info",
	}
}

// Load reads a session config from a JSON file. A bare name resolves under
// configs/ and gets a .json suffix, matching how run scripts pass configs.
func Load(path string) (*SessionConfig, error) {
	if !strings.ContainsAny(path, "/\\") {
		path = filepath.Join("configs", path)
	}
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults backfills zero values left by sparse config files.
func (c *SessionConfig) setDefaults() {
	def := Default()
	if c.Symbol == "" {
		c.Symbol = def.Symbol
	}
	if c.Interval == "" {
		c.Interval = def.Interval
	}
	if c.Engine.Mode == "" {
		c.Engine.Mode = def.Engine.Mode
	}
	if c.Engine.BuyThreshold == 0 && c.Engine.SellThreshold == 0 {
		c.Engine.BuyThreshold = def.Engine.BuyThreshold
		c.Engine.SellThreshold = def.Engine.SellThreshold
	}
	if c.Engine.ConflictPenalty == 0 {
		c.Engine.ConflictPenalty = def.Engine.ConflictPenalty
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest = def.Backtest
	}
	if c.Backtest.Symbol == "" {
		c.Backtest.Symbol = c.Symbol
	}
	if c.Backtest.Interval == "" {
		c.Backtest.Interval = c.Interval
	}
	if c.Exchange.Name == "" {
		c.Exchange = def.Exchange
	}
	if c.Exchange.Category == "" {
		c.Exchange.Category = def.Exchange.Category
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate checks the session for internal consistency.
func (c *SessionConfig) Validate() error {
	if c.Symbol == "" {
		return &ConfigError{Field: "symbol", Msg: "must not be empty"}
	}
	if c.Interval == "" {
		return &ConfigError{Field: "interval", Msg: "must not be empty"}
	}

	known := make(map[string]bool)
	for _, name := range detectors.KnownNames() {
		known[name] = true
	}
	for _, name := range c.Detectors {
		if !known[name] {
			return &ConfigError{Field: "detectors", Msg: fmt.Sprintf("unknown detector %q", name)}
		}
	}
	for name, weight := range c.Weights {
		if !known[name] {
			return &ConfigError{Field: "weights", Msg: fmt.Sprintf("unknown detector %q", name)}
		}
		if weight < 0 {
			return &ConfigError{Field: "weights", Msg: fmt.Sprintf("detector %q has negative weight %.4f", name, weight)}
		}
	}

	if _, err := engine.ParseMode(string(c.Engine.Mode)); err != nil {
		return &ConfigError{Field: "engine.mode", Msg: err.Error()}
	}
	if c.Engine.BuyThreshold <= 0 {
		return &ConfigError{Field: "engine.buy_threshold", Msg: "must be positive"}
	}
	if c.Engine.SellThreshold >= 0 {
		return &ConfigError{Field: "engine.sell_threshold", Msg: "must be negative"}
	}
	if c.Engine.ConflictPenalty < 0 {
		return &ConfigError{Field: "engine.conflict_penalty", Msg: "must not be negative"}
	}

	if c.VolumeFilter != nil {
		if c.VolumeFilter.LookbackPeriod <= 1 {
			return &ConfigError{Field: "volume_filter.lookback_period", Msg: "must be at least 2"}
		}
		if c.VolumeFilter.RejectThreshold > c.VolumeFilter.BoostThreshold {
			return &ConfigError{Field: "volume_filter", Msg: "reject threshold above boost threshold"}
		}
	}

	if c.Backtest.InitialCapital <= 0 {
		return &ConfigError{Field: "backtest.initial_capital", Msg: "must be positive"}
	}
	if c.Backtest.PositionPct <= 0 || c.Backtest.PositionPct > 1 {
		return &ConfigError{Field: "backtest.position_pct", Msg: "must be in (0, 1]"}
	}
	if c.Backtest.MaxDrawdownPct < 0 {
		return &ConfigError{Field: "backtest.max_drawdown_pct", Msg: "must not be negative"}
	}

	switch strings.ToLower(c.Exchange.Name) {
	case "bybit", "csv":
	default:
		return &ConfigError{Field: "exchange.name", Msg: fmt.Sprintf("unsupported exchange %q", c.Exchange.Name)}
	}
	if strings.EqualFold(c.Exchange.Name, "csv") && c.Exchange.DataDir == "" {
		return &ConfigError{Field: "exchange.data_dir", Msg: "required for the csv provider"}
	}
	return nil
}

// BuildRegistry materializes the configured detector set with weights
// applied.
func (c *SessionConfig) BuildRegistry() (*detectors.Registry, error) {
	registry := detectors.DefaultRegistry()
	if len(c.Detectors) > 0 {
		subset, err := registry.Subset(c.Detectors)
		if err != nil {
			return nil, err
		}
		registry = subset
	}
	for name, weight := range c.Weights {
		if err := registry.SetWeight(name, weight); err != nil {
			// Weights may cover detectors outside the enabled subset.
			continue
		}
	}
	return registry, nil
}

// Credentials holds the exchange API keys, sourced from the environment.
type Credentials struct {
	APIKey    string
	APISecret string
}

// LoadCredentials reads exchange credentials from the environment, loading a
// .env file first when one exists. Market data endpoints work without keys.
func LoadCredentials() Credentials {
	_ = godotenv.Load()
	return Credentials{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
	}
}
