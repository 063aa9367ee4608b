package detectors

import (
	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// WilliamsRConfig holds the Williams %R parameters. The zone levels are
// negative, matching the indicator's [-100, 0] range.
type WilliamsRConfig struct {
	Period     int
	Oversold   float64
	Overbought float64
}

// DefaultWilliamsRConfig returns the 14 period setup with -80/-20 zones.
func DefaultWilliamsRConfig() WilliamsRConfig {
	return WilliamsRConfig{Period: 14, Oversold: -80, Overbought: -20}
}

// WilliamsR signals on %R exiting an extreme zone, mirroring the RSI
// mean-reversion trigger: BUY when %R recovers above the oversold level,
// SELL when it drops back below the overbought level.
type WilliamsR struct {
	cfg WilliamsRConfig
}

func NewWilliamsR(cfg WilliamsRConfig) *WilliamsR {
	return &WilliamsR{cfg: cfg}
}

func (d *WilliamsR) GetName() string { return "williams_r" }

func (d *WilliamsR) GetRequiredPeriods() int { return d.cfg.Period + 1 }

func (d *WilliamsR) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	cur, err := indicators.WilliamsR(data, d.cfg.Period)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}
	prev, err := indicators.WilliamsR(data[:len(data)-1], d.cfg.Period)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	ts := lastTimestamp(data)

	switch {
	case prev < d.cfg.Oversold && cur >= d.cfg.Oversold:
		depth := (d.cfg.Oversold - prev) / 20
		s := signal.New(signal.ActionBuy, clampConfidence(0.45+0.3*depth), ts)
		s.AddReason("williams %%R exited oversold (%.1f -> %.1f)", prev, cur)
		s.AddTag("CLASSIC:WILLR_OVERSOLD_EXIT")
		s.SetMeta("williams_r", cur)
		return s

	case prev > d.cfg.Overbought && cur <= d.cfg.Overbought:
		depth := (prev - d.cfg.Overbought) / 20
		s := signal.New(signal.ActionSell, clampConfidence(0.45+0.3*depth), ts)
		s.AddReason("williams %%R exited overbought (%.1f -> %.1f)", prev, cur)
		s.AddTag("CLASSIC:WILLR_OVERBOUGHT_EXIT")
		s.SetMeta("williams_r", cur)
		return s
	}

	s := signal.NewHold(ts, "williams %R in neutral zone")
	s.SetMeta("williams_r", cur)
	return s
}
