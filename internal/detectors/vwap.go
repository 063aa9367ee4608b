package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// VWAPConfig holds the VWAP deviation detector parameters.
type VWAPConfig struct {
	Lookback  int
	Deviation float64 // minimum deviation from VWAP, as a fraction of price
}

// DefaultVWAPConfig returns a 50-bar VWAP with a 0.5% deviation threshold.
func DefaultVWAPConfig() VWAPConfig {
	return VWAPConfig{Lookback: 50, Deviation: 0.005}
}

// VWAP is a mean-reversion detector around the volume-weighted average
// price: BUY when price trades significantly below VWAP, SELL when above.
type VWAP struct {
	cfg VWAPConfig
}

func NewVWAP(cfg VWAPConfig) *VWAP {
	return &VWAP{cfg: cfg}
}

func (d *VWAP) GetName() string { return "vwap" }

func (d *VWAP) GetRequiredPeriods() int { return d.cfg.Lookback }

func (d *VWAP) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	vwap, err := indicators.VWAP(data[len(data)-d.cfg.Lookback:])
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	ts := lastTimestamp(data)
	close := data[len(data)-1].Close
	if vwap == 0 {
		return signal.NewHold(ts, "vwap undefined")
	}
	deviation := (close - vwap) / vwap

	switch {
	case deviation < -d.cfg.Deviation:
		s := signal.New(signal.ActionBuy, clampConfidence(0.45+math.Min(0.3, math.Abs(deviation)*20)), ts)
		s.AddReason("price %.2f%% below vwap %.4f", math.Abs(deviation)*100, vwap)
		s.AddTag("CLASSIC:VWAP_DISCOUNT")
		s.SetMeta("vwap", vwap)
		s.SetMeta("vwap_deviation", deviation)
		return s

	case deviation > d.cfg.Deviation:
		s := signal.New(signal.ActionSell, clampConfidence(0.45+math.Min(0.3, deviation*20)), ts)
		s.AddReason("price %.2f%% above vwap %.4f", deviation*100, vwap)
		s.AddTag("CLASSIC:VWAP_PREMIUM")
		s.SetMeta("vwap", vwap)
		s.SetMeta("vwap_deviation", deviation)
		return s
	}

	s := signal.NewHold(ts, "price near vwap")
	s.SetMeta("vwap", vwap)
	return s
}
