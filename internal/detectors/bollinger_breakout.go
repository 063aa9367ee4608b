package detectors

import (
	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// BollingerBreakoutConfig holds the band parameters.
type BollingerBreakoutConfig struct {
	Period int
	StdDev float64
}

// DefaultBollingerBreakoutConfig returns the 20/2.0 setup.
func DefaultBollingerBreakoutConfig() BollingerBreakoutConfig {
	return BollingerBreakoutConfig{Period: 20, StdDev: 2.0}
}

// BollingerBreakout signals BUY when the close breaks above the upper band
// and SELL below the lower band. Confidence grows with the overshoot
// relative to the band width.
type BollingerBreakout struct {
	cfg BollingerBreakoutConfig
}

func NewBollingerBreakout(cfg BollingerBreakoutConfig) *BollingerBreakout {
	return &BollingerBreakout{cfg: cfg}
}

func (d *BollingerBreakout) GetName() string { return "bollinger_breakout" }

func (d *BollingerBreakout) GetRequiredPeriods() int { return d.cfg.Period }

func (d *BollingerBreakout) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	closes := indicators.Closes(data)
	upper, middle, lower, err := indicators.Bollinger(closes, d.cfg.Period, d.cfg.StdDev)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	close := closes[len(closes)-1]
	ts := lastTimestamp(data)
	width := upper - lower

	switch {
	case close > upper && width > 0:
		overshoot := (close - upper) / width
		s := signal.New(signal.ActionBuy, clampConfidence(0.5+overshoot), ts)
		s.AddReason("close %.4f above upper band %.4f", close, upper)
		s.AddTag("CLASSIC:BB_BREAKOUT_UP")
		s.SetMeta("bb_upper", upper)
		s.SetMeta("bb_middle", middle)
		s.SetMeta("bb_lower", lower)
		return s

	case close < lower && width > 0:
		overshoot := (lower - close) / width
		s := signal.New(signal.ActionSell, clampConfidence(0.5+overshoot), ts)
		s.AddReason("close %.4f below lower band %.4f", close, lower)
		s.AddTag("CLASSIC:BB_BREAKOUT_DOWN")
		s.SetMeta("bb_upper", upper)
		s.SetMeta("bb_middle", middle)
		s.SetMeta("bb_lower", lower)
		return s
	}

	return signal.NewHold(ts, "close inside bands")
}
