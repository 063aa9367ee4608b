package detectors

import (
	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// CPRConfig holds the central-pivot-range detector parameters.
type CPRConfig struct {
	Lookback    int     // bars forming the reference period for the pivots
	Sensitivity float64 // breakout margin beyond the range, as a fraction of price
}

// DefaultCPRConfig returns a 24-bar reference period with 0.2% sensitivity.
func DefaultCPRConfig() CPRConfig {
	return CPRConfig{Lookback: 24, Sensitivity: 0.002}
}

// CPR signals a breakout of the central pivot range: BUY when the close
// clears the top of the range by the sensitivity margin, SELL below the
// bottom. The pivots derive from the prior reference period, excluding the
// current bar.
type CPR struct {
	cfg CPRConfig
}

func NewCPR(cfg CPRConfig) *CPR {
	return &CPR{cfg: cfg}
}

func (d *CPR) GetName() string { return "cpr" }

func (d *CPR) GetRequiredPeriods() int { return d.cfg.Lookback + 1 }

func (d *CPR) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	ref := data[len(data)-1-d.cfg.Lookback : len(data)-1]
	high, low := ref[0].High, ref[0].Low
	for _, bar := range ref {
		if bar.High > high {
			high = bar.High
		}
		if bar.Low < low {
			low = bar.Low
		}
	}
	pivots := indicators.PivotLevels(high, low, ref[len(ref)-1].Close)

	ts := lastTimestamp(data)
	close := data[len(data)-1].Close
	margin := close * d.cfg.Sensitivity

	switch {
	case close > pivots.TC+margin:
		s := signal.New(signal.ActionBuy, 0.5, ts)
		s.AddReason("close %.4f broke above cpr top %.4f", close, pivots.TC)
		s.AddTag("CLASSIC:CPR_BREAKOUT_UP")
		s.SetMeta("cpr_tc", pivots.TC)
		s.SetMeta("cpr_bc", pivots.BC)
		return s

	case close < pivots.BC-margin:
		s := signal.New(signal.ActionSell, 0.5, ts)
		s.AddReason("close %.4f broke below cpr bottom %.4f", close, pivots.BC)
		s.AddTag("CLASSIC:CPR_BREAKOUT_DOWN")
		s.SetMeta("cpr_tc", pivots.TC)
		s.SetMeta("cpr_bc", pivots.BC)
		return s
	}

	return signal.NewHold(ts, "close inside central pivot range")
}
