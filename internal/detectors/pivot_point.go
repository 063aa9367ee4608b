package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// PivotPointConfig holds the classic pivot bounce detector parameters.
type PivotPointConfig struct {
	Lookback  int     // bars forming the reference period for the pivots
	Tolerance float64 // proximity to a level, as a fraction of price
}

// DefaultPivotPointConfig returns a 24-bar reference period with 0.3%
// tolerance.
func DefaultPivotPointConfig() PivotPointConfig {
	return PivotPointConfig{Lookback: 24, Tolerance: 0.003}
}

// PivotPoint signals a bounce at the classic support levels (S1/S2) when the
// bar closes back up, and a rejection at the resistance levels (R1/R2) when
// the bar closes back down.
type PivotPoint struct {
	cfg PivotPointConfig
}

func NewPivotPoint(cfg PivotPointConfig) *PivotPoint {
	return &PivotPoint{cfg: cfg}
}

func (d *PivotPoint) GetName() string { return "pivot_point" }

func (d *PivotPoint) GetRequiredPeriods() int { return d.cfg.Lookback + 1 }

func (d *PivotPoint) Evaluate(data []types.OHLCV) signal.Signal {
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

	bar := data[len(data)-1]
	ts := lastTimestamp(data)
	bullishBar := bar.Close > bar.Open
	bearishBar := bar.Close < bar.Open

	near := func(level float64) bool {
		return level > 0 && math.Abs(bar.Low-level)/level <= d.cfg.Tolerance ||
			level > 0 && math.Abs(bar.High-level)/level <= d.cfg.Tolerance
	}

	for _, lv := range []struct {
		level float64
		name  string
		bonus float64
	}{{pivots.S1, "S1", 0.0}, {pivots.S2, "S2", 0.1}} {
		if near(lv.level) && bullishBar {
			s := signal.New(signal.ActionBuy, clampConfidence(0.45+lv.bonus), ts)
			s.AddReason("bullish bounce at pivot %s %.4f", lv.name, lv.level)
			s.AddTag("CLASSIC:PIVOT_BOUNCE_" + lv.name)
			s.SetMeta("pivot", pivots.Pivot)
			s.SetMeta("level", lv.level)
			return s
		}
	}
	for _, lv := range []struct {
		level float64
		name  string
		bonus float64
	}{{pivots.R1, "R1", 0.0}, {pivots.R2, "R2", 0.1}} {
		if near(lv.level) && bearishBar {
			s := signal.New(signal.ActionSell, clampConfidence(0.45+lv.bonus), ts)
			s.AddReason("bearish rejection at pivot %s %.4f", lv.name, lv.level)
			s.AddTag("CLASSIC:PIVOT_REJECT_" + lv.name)
			s.SetMeta("pivot", pivots.Pivot)
			s.SetMeta("level", lv.level)
			return s
		}
	}

	return signal.NewHold(ts, "no pivot interaction")
}
