package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// CHoCHConfig holds the change-of-character detector parameters.
type CHoCHConfig struct {
	SwingStrength   int
	MinDisplacement float64 // minimum break distance, as a fraction of the level
}

// DefaultCHoCHConfig returns 3-bar swings with a 0.1% displacement floor.
func DefaultCHoCHConfig() CHoCHConfig {
	return CHoCHConfig{SwingStrength: 3, MinDisplacement: 0.001}
}

// CHoCH detects a change of character: an established directional structure
// (two consecutive lower highs, or two consecutive higher lows) broken in the
// opposite direction. Unlike a plain break of structure it is a reversal
// signal, so the prior trend is a precondition.
type CHoCH struct {
	cfg CHoCHConfig
}

func NewCHoCH(cfg CHoCHConfig) *CHoCH {
	return &CHoCH{cfg: cfg}
}

func (d *CHoCH) GetName() string { return "smc_choch" }

func (d *CHoCH) GetRequiredPeriods() int { return 40 }

func (d *CHoCH) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	prior := data[:len(data)-1]
	highs, lows := indicators.SwingPoints(prior, d.cfg.SwingStrength)

	bar := data[len(data)-1]
	ts := lastTimestamp(data)

	// Bearish structure (lower highs) broken upward.
	if len(highs) >= 2 {
		last := prior[highs[len(highs)-1]].High
		previous := prior[highs[len(highs)-2]].High
		if last < previous {
			displacement := (bar.Close - last) / last
			if displacement >= d.cfg.MinDisplacement {
				conf := 0.55 + math.Min(0.25, displacement*50)
				s := signal.New(signal.ActionBuy, clampConfidence(conf), ts)
				s.AddReason("lower-high structure broken: close %.4f above %.4f", bar.Close, last)
				s.AddTag("SMC:CHOCH_BULL")
				s.SetMeta("choch_level", last)
				s.SetMeta("displacement", displacement)
				return s
			}
		}
	}

	// Bullish structure (higher lows) broken downward.
	if len(lows) >= 2 {
		last := prior[lows[len(lows)-1]].Low
		previous := prior[lows[len(lows)-2]].Low
		if last > previous {
			displacement := (last - bar.Close) / last
			if displacement >= d.cfg.MinDisplacement {
				conf := 0.55 + math.Min(0.25, displacement*50)
				s := signal.New(signal.ActionSell, clampConfidence(conf), ts)
				s.AddReason("higher-low structure broken: close %.4f below %.4f", bar.Close, last)
				s.AddTag("SMC:CHOCH_BEAR")
				s.SetMeta("choch_level", last)
				s.SetMeta("displacement", displacement)
				return s
			}
		}
	}

	return signal.NewHold(ts, "character unchanged")
}
