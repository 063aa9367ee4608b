package engine

import (
	"fmt"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// Regime labels attached to snapshots.
const (
	RegimeTrending  = "TRENDING"
	RegimeRanging   = "RANGING"
	RegimeFlat      = "FLAT"
	RegimeQuiet     = "QUIET"
	RegimeUndefined = "UNDEFINED"
)

// RegimeConfig holds the market-regime gate thresholds. A directional
// decision is only allowed when the market shows enough trend strength and
// volatility to act on.
type RegimeConfig struct {
	ADXPeriod  int     `json:"adx_period"`
	ADXMin     float64 `json:"adx_min"`     // below: trend too weak
	ADXMax     float64 `json:"adx_max"`     // above: warning only
	ATRPeriod  int     `json:"atr_period"`
	ATRMin     float64 `json:"atr_min"`     // below: volatility insufficient
	BBPeriod   int     `json:"bb_period"`
	BBWidthMin float64 `json:"bb_width_min"` // below: market flat
}

// DefaultRegimeConfig returns the reference gate thresholds.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		ADXPeriod:  14,
		ADXMin:     15,
		ADXMax:     100,
		ATRPeriod:  14,
		ATRMin:     0.0001,
		BBPeriod:   20,
		BBWidthMin: 0.01,
	}
}

// RegimeSnapshot captures the gate indicators for one evaluation, computed
// from the same window the detectors see. Defined is false when the window
// is too short (or degenerate) for any of the three indicators.
type RegimeSnapshot struct {
	ADX     float64 `json:"adx"`
	ATR     float64 `json:"atr"`
	BBWidth float64 `json:"bb_width"`
	Label   string  `json:"label"`
	Defined bool    `json:"defined"`
}

// Snapshot computes the regime indicators over the window. Indicator errors
// (short window, division by zero inside the math) yield an undefined
// snapshot rather than a failure.
func (c RegimeConfig) Snapshot(data []types.OHLCV) RegimeSnapshot {
	adx, _, _, errADX := indicators.ADX(data, c.ADXPeriod)
	atr, errATR := indicators.ATR(data, c.ATRPeriod)
	bbWidth, errBB := indicators.BollingerWidth(indicators.Closes(data), c.BBPeriod, 2.0)

	if errADX != nil || errATR != nil || errBB != nil {
		return RegimeSnapshot{Label: RegimeUndefined}
	}

	snap := RegimeSnapshot{ADX: adx, ATR: atr, BBWidth: bbWidth, Defined: true}
	switch {
	case bbWidth < c.BBWidthMin:
		snap.Label = RegimeFlat
	case atr < c.ATRMin:
		snap.Label = RegimeQuiet
	case adx < c.ADXMin:
		snap.Label = RegimeRanging
	default:
		snap.Label = RegimeTrending
	}
	return snap
}

// gate returns the blocking reasons and the non-blocking warnings for the
// snapshot. An empty blocked slice means the gate is open.
func (s RegimeSnapshot) gate(c RegimeConfig) (blocked, warnings []string) {
	if !s.Defined {
		return nil, nil
	}
	if s.ADX < c.ADXMin {
		blocked = append(blocked, fmt.Sprintf("regime gate: adx %.2f below %.2f, trend too weak", s.ADX, c.ADXMin))
	}
	if s.ATR < c.ATRMin {
		blocked = append(blocked, fmt.Sprintf("regime gate: atr %.6f below %.6f, volatility insufficient", s.ATR, c.ATRMin))
	}
	if s.BBWidth < c.BBWidthMin {
		blocked = append(blocked, fmt.Sprintf("regime gate: bb width %.4f below %.4f, market flat", s.BBWidth, c.BBWidthMin))
	}
	if s.ADX > c.ADXMax {
		warnings = append(warnings, fmt.Sprintf("regime warning: adx %.2f above %.2f, trend likely overextended", s.ADX, c.ADXMax))
	}
	return blocked, warnings
}
