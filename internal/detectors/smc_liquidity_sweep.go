package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// LiquiditySweepConfig holds the liquidity-sweep detector parameters.
type LiquiditySweepConfig struct {
	Lookback  int
	Tolerance float64 // equal-level clustering tolerance, as a fraction of price
	BodyRatio float64 // maximum body vs total range for the sweep candle
}

// DefaultLiquiditySweepConfig returns a 30-bar scan with 0.1% level tolerance
// and a 0.5 body ratio cap.
func DefaultLiquiditySweepConfig() LiquiditySweepConfig {
	return LiquiditySweepConfig{Lookback: 30, Tolerance: 0.001, BodyRatio: 0.5}
}

// LiquiditySweep looks for a stop hunt: the current bar's wick trades beyond
// a cluster of equal highs or equal lows but the bar closes back inside, with
// a small body relative to its range. A swept low is a BUY, a swept high a
// SELL.
type LiquiditySweep struct {
	cfg LiquiditySweepConfig
}

func NewLiquiditySweep(cfg LiquiditySweepConfig) *LiquiditySweep {
	return &LiquiditySweep{cfg: cfg}
}

func (d *LiquiditySweep) GetName() string { return "smc_liquidity_sweep" }

func (d *LiquiditySweep) GetRequiredPeriods() int { return d.cfg.Lookback + 1 }

func (d *LiquiditySweep) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	window := data[len(data)-1-d.cfg.Lookback : len(data)-1]
	bar := data[len(data)-1]
	ts := lastTimestamp(data)

	barRange := bar.High - bar.Low
	if barRange <= 0 {
		return signal.NewHold(ts, "degenerate bar")
	}
	body := math.Abs(bar.Close - bar.Open)
	if body/barRange > d.cfg.BodyRatio {
		return signal.NewHold(ts, "sweep candle body too large")
	}

	if level, count := equalLows(window, d.cfg.Tolerance); count >= 2 {
		if bar.Low < level && bar.Close > level {
			conf := clampConfidence(0.55 + 0.05*float64(count-2) + 0.1*(1-body/barRange))
			s := signal.New(signal.ActionBuy, conf, ts)
			s.AddReason("wick swept %d equal lows at %.4f and closed back above", count, level)
			s.AddTag("SMC:LIQUIDITY_SWEEP_BULL")
			s.SetMeta("sweep_level", level)
			s.SetMeta("sweep_count", count)
			return s
		}
	}
	if level, count := equalHighs(window, d.cfg.Tolerance); count >= 2 {
		if bar.High > level && bar.Close < level {
			conf := clampConfidence(0.55 + 0.05*float64(count-2) + 0.1*(1-body/barRange))
			s := signal.New(signal.ActionSell, conf, ts)
			s.AddReason("wick swept %d equal highs at %.4f and closed back below", count, level)
			s.AddTag("SMC:LIQUIDITY_SWEEP_BEAR")
			s.SetMeta("sweep_level", level)
			s.SetMeta("sweep_count", count)
			return s
		}
	}

	return signal.NewHold(ts, "no liquidity sweep")
}

// equalLows clusters lows around the window minimum and returns the level
// with how many bars printed it.
func equalLows(window []types.OHLCV, tolerance float64) (float64, int) {
	if len(window) == 0 {
		return 0, 0
	}
	level := window[0].Low
	for _, bar := range window {
		if bar.Low < level {
			level = bar.Low
		}
	}
	if level == 0 {
		return 0, 0
	}
	count := 0
	for _, bar := range window {
		if math.Abs(bar.Low-level)/level <= tolerance {
			count++
		}
	}
	return level, count
}

func equalHighs(window []types.OHLCV, tolerance float64) (float64, int) {
	if len(window) == 0 {
		return 0, 0
	}
	level := window[0].High
	for _, bar := range window {
		if bar.High > level {
			level = bar.High
		}
	}
	if level == 0 {
		return 0, 0
	}
	count := 0
	for _, bar := range window {
		if math.Abs(bar.High-level)/level <= tolerance {
			count++
		}
	}
	return level, count
}
