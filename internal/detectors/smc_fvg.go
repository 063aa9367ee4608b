package detectors

import (
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// FVG detects fair value gaps: a three-candle imbalance where the first
// candle's high sits below the third candle's low (bullish) or the first
// candle's low sits above the third candle's high (bearish). A signal fires
// when the latest close trades back inside the most recent unfilled gap.
type FVG struct {
	lookback int
}

func NewFVG() *FVG {
	return &FVG{lookback: 40}
}

func (d *FVG) GetName() string { return "smc_fvg" }

func (d *FVG) GetRequiredPeriods() int { return 10 }

type fairValueGap struct {
	low, high float64
	index     int // index of the third candle
	bullish   bool
}

func (d *FVG) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	window := data
	if len(window) > d.lookback {
		window = window[len(window)-d.lookback:]
	}

	ts := lastTimestamp(data)
	bar := data[len(data)-1]

	gap, ok := latestUnfilledGap(window)
	if !ok {
		return signal.NewHold(ts, "no open fair value gap")
	}

	if bar.Close < gap.low || bar.Close > gap.high {
		return signal.NewHold(ts, "price outside fair value gap")
	}

	depth := 0.0
	if gap.high > gap.low {
		if gap.bullish {
			depth = (gap.high - bar.Close) / (gap.high - gap.low)
		} else {
			depth = (bar.Close - gap.low) / (gap.high - gap.low)
		}
	}
	conf := clampConfidence(0.5 + 0.2*depth)

	if gap.bullish {
		s := signal.New(signal.ActionBuy, conf, ts)
		s.AddReason("price filled into bullish fvg %.4f-%.4f", gap.low, gap.high)
		s.AddTag("SMC:FVG_BULL")
		s.SetMeta("fvg_low", gap.low)
		s.SetMeta("fvg_high", gap.high)
		return s
	}
	s := signal.New(signal.ActionSell, conf, ts)
	s.AddReason("price filled into bearish fvg %.4f-%.4f", gap.low, gap.high)
	s.AddTag("SMC:FVG_BEAR")
	s.SetMeta("fvg_low", gap.low)
	s.SetMeta("fvg_high", gap.high)
	return s
}

// latestUnfilledGap walks backwards looking for the most recent three-candle
// gap that no later candle has fully traded through.
func latestUnfilledGap(window []types.OHLCV) (fairValueGap, bool) {
	for i := len(window) - 2; i >= 2; i-- {
		first, third := window[i-2], window[i]

		if first.High < third.Low {
			gap := fairValueGap{low: first.High, high: third.Low, index: i, bullish: true}
			if !gapFilled(window[i+1:], gap) {
				return gap, true
			}
		}
		if first.Low > third.High {
			gap := fairValueGap{low: third.High, high: first.Low, index: i, bullish: false}
			if !gapFilled(window[i+1:], gap) {
				return gap, true
			}
		}
	}
	return fairValueGap{}, false
}

func gapFilled(later []types.OHLCV, gap fairValueGap) bool {
	for _, bar := range later {
		if gap.bullish && bar.Low <= gap.low {
			return true
		}
		if !gap.bullish && bar.High >= gap.high {
			return true
		}
	}
	return false
}
