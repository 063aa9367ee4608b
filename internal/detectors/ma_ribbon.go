package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// MARibbonConfig holds the moving-average ribbon parameters.
type MARibbonConfig struct {
	Periods            []int
	AlignmentThreshold float64 // minimum first/last spread, as a fraction of price
}

// DefaultMARibbonConfig returns the 5/8/13 ribbon with a 0.2% spread floor.
func DefaultMARibbonConfig() MARibbonConfig {
	return MARibbonConfig{Periods: []int{5, 8, 13}, AlignmentThreshold: 0.002}
}

// MARibbon votes when the ribbon's SMAs are fully ordered with a minimum
// spread between the fastest and the slowest: ascending order is BUY,
// descending is SELL.
type MARibbon struct {
	cfg MARibbonConfig
}

func NewMARibbon(cfg MARibbonConfig) *MARibbon {
	return &MARibbon{cfg: cfg}
}

func (d *MARibbon) GetName() string { return "ma_ribbon" }

func (d *MARibbon) GetRequiredPeriods() int {
	max := 0
	for _, p := range d.cfg.Periods {
		if p > max {
			max = p
		}
	}
	return max
}

func (d *MARibbon) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() || len(d.cfg.Periods) < 2 {
		return holdShortWindow(d.GetName(), data)
	}

	closes := indicators.Closes(data)
	smas := make([]float64, len(d.cfg.Periods))
	for i, period := range d.cfg.Periods {
		value, err := indicators.SMA(closes, period)
		if err != nil {
			return holdShortWindow(d.GetName(), data)
		}
		smas[i] = value
	}

	ascending, descending := true, true
	for i := 1; i < len(smas); i++ {
		if smas[i-1] <= smas[i] {
			ascending = false
		}
		if smas[i-1] >= smas[i] {
			descending = false
		}
	}

	ts := lastTimestamp(data)
	price := closes[len(closes)-1]
	if price == 0 {
		return signal.NewHold(ts, "undefined price")
	}
	spread := math.Abs(smas[0]-smas[len(smas)-1]) / price

	if spread < d.cfg.AlignmentThreshold {
		return signal.NewHold(ts, "ribbon too flat")
	}

	if ascending {
		s := signal.New(signal.ActionBuy, clampConfidence(0.45+math.Min(0.25, spread*10)), ts)
		s.AddReason("ma ribbon fully ascending (spread %.2f%%)", spread*100)
		s.AddTag("CLASSIC:RIBBON_BULL")
		s.SetMeta("ribbon", smas)
		return s
	}
	if descending {
		s := signal.New(signal.ActionSell, clampConfidence(0.45+math.Min(0.25, spread*10)), ts)
		s.AddReason("ma ribbon fully descending (spread %.2f%%)", spread*100)
		s.AddTag("CLASSIC:RIBBON_BEAR")
		s.SetMeta("ribbon", smas)
		return s
	}

	return signal.NewHold(ts, "ribbon not aligned")
}
