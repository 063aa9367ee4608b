package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// ADXConfig holds the trend-strength detector parameters.
type ADXConfig struct {
	Period    int
	Threshold float64
}

// DefaultADXConfig returns the 14 period setup with the 25 trend threshold.
func DefaultADXConfig() ADXConfig {
	return ADXConfig{Period: 14, Threshold: 25}
}

// ADX votes in the direction of the dominant directional index (+DI vs -DI)
// whenever ADX confirms a trend is in force. Confidence grows with both the
// trend strength and the DI separation.
type ADX struct {
	cfg ADXConfig
}

func NewADX(cfg ADXConfig) *ADX {
	return &ADX{cfg: cfg}
}

func (d *ADX) GetName() string { return "adx" }

func (d *ADX) GetRequiredPeriods() int { return d.cfg.Period*2 + 1 }

func (d *ADX) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	adx, plusDI, minusDI, err := indicators.ADX(data, d.cfg.Period)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	ts := lastTimestamp(data)
	if adx <= d.cfg.Threshold {
		s := signal.NewHold(ts, "trend too weak")
		s.SetMeta("adx", adx)
		return s
	}

	diSpread := math.Abs(plusDI-minusDI) / 100
	conf := clampConfidence(0.4 + math.Min(0.3, (adx-d.cfg.Threshold)/100) + math.Min(0.3, diSpread))

	if plusDI > minusDI {
		s := signal.New(signal.ActionBuy, conf, ts)
		s.AddReason("adx %.1f trending, +DI %.1f > -DI %.1f", adx, plusDI, minusDI)
		s.AddTag("CLASSIC:ADX_TREND_BULL")
		s.SetMeta("adx", adx)
		s.SetMeta("plus_di", plusDI)
		s.SetMeta("minus_di", minusDI)
		return s
	}
	if minusDI > plusDI {
		s := signal.New(signal.ActionSell, conf, ts)
		s.AddReason("adx %.1f trending, -DI %.1f > +DI %.1f", adx, minusDI, plusDI)
		s.AddTag("CLASSIC:ADX_TREND_BEAR")
		s.SetMeta("adx", adx)
		s.SetMeta("plus_di", plusDI)
		s.SetMeta("minus_di", minusDI)
		return s
	}

	s := signal.NewHold(ts, "directional indexes balanced")
	s.SetMeta("adx", adx)
	return s
}
