package detectors

import (
	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// RSIMeanReversionConfig holds the parameters of the RSI mean-reversion
// detector.
type RSIMeanReversionConfig struct {
	Period     int
	Oversold   float64
	Overbought float64
}

// DefaultRSIMeanReversionConfig returns the textbook 14/30/70 setup.
func DefaultRSIMeanReversionConfig() RSIMeanReversionConfig {
	return RSIMeanReversionConfig{Period: 14, Oversold: 30, Overbought: 70}
}

// RSIMeanReversion signals on RSI exiting an extreme zone: BUY when RSI
// crosses back above the oversold level, SELL when it crosses back below the
// overbought level. The exit (not the extreme itself) is the trigger, so the
// detector fires once per excursion.
type RSIMeanReversion struct {
	cfg RSIMeanReversionConfig
}

func NewRSIMeanReversion(cfg RSIMeanReversionConfig) *RSIMeanReversion {
	return &RSIMeanReversion{cfg: cfg}
}

func (d *RSIMeanReversion) GetName() string { return "rsi_mean_reversion" }

func (d *RSIMeanReversion) GetRequiredPeriods() int { return d.cfg.Period + 2 }

func (d *RSIMeanReversion) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	series, err := indicators.RSISeries(indicators.Closes(data), d.cfg.Period)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	cur := series[len(series)-1]
	prev := series[len(series)-2]
	ts := lastTimestamp(data)

	switch {
	case prev < d.cfg.Oversold && cur >= d.cfg.Oversold:
		// Deeper excursions recover with more force.
		depth := (d.cfg.Oversold - prev) / d.cfg.Oversold
		s := signal.New(signal.ActionBuy, clampConfidence(0.45+0.4*depth), ts)
		s.AddReason("rsi exited oversold (%.1f -> %.1f)", prev, cur)
		s.AddTag("CLASSIC:RSI_OVERSOLD_EXIT")
		s.SetMeta("rsi", cur)
		s.SetMeta("rsi_prev", prev)
		return s

	case prev > d.cfg.Overbought && cur <= d.cfg.Overbought:
		depth := (prev - d.cfg.Overbought) / (100 - d.cfg.Overbought)
		s := signal.New(signal.ActionSell, clampConfidence(0.45+0.4*depth), ts)
		s.AddReason("rsi exited overbought (%.1f -> %.1f)", prev, cur)
		s.AddTag("CLASSIC:RSI_OVERBOUGHT_EXIT")
		s.SetMeta("rsi", cur)
		s.SetMeta("rsi_prev", prev)
		return s
	}

	s := signal.NewHold(ts, "rsi in neutral zone")
	s.SetMeta("rsi", cur)
	return s
}
