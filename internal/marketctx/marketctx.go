// Package marketctx classifies the broad market once per session and derives
// per-detector weight adjustments from the classification. Unlike the
// per-bar regime gate, this analysis looks at a long window (weeks of bars)
// and biases the detector mix toward the strategies that historically work
// in that environment.
package marketctx

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// Regime is the coarse market classification.
type Regime string

const (
	Bullish    Regime = "BULLISH"
	Bearish    Regime = "BEARISH"
	Correction Regime = "CORRECTION" // sideways / consolidating
)

// MarketContext is the session-level analysis result.
type MarketContext struct {
	Regime         Regime             `json:"regime"`
	Confidence     float64            `json:"confidence"`
	ADX            float64            `json:"adx"`
	ATRNormalized  float64            `json:"atr_normalized"`
	PriceChangePct float64            `json:"price_change_pct"`
	Multipliers    map[string]float64 `json:"multipliers"`
}

// Config holds the analyzer thresholds.
type Config struct {
	ADXPeriod           int     `json:"adx_period"`
	ATRPeriod           int     `json:"atr_period"`
	BullishThresholdPct float64 `json:"bullish_threshold_pct"`
	BearishThresholdPct float64 `json:"bearish_threshold_pct"`
}

// DefaultConfig classifies at +-5% price change over the analysis window.
func DefaultConfig() Config {
	return Config{
		ADXPeriod:           14,
		ATRPeriod:           14,
		BullishThresholdPct: 5,
		BearishThresholdPct: -5,
	}
}

// Analyzer produces MarketContext records from long candle windows.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// NewAnalyzer creates an analyzer with the given thresholds.
func NewAnalyzer(cfg Config, log zerolog.Logger) *Analyzer {
	return &Analyzer{cfg: cfg, log: log}
}

// Analyze classifies the window and returns the context with raw (unblended)
// multipliers attached. The window must cover at least two ADX periods.
func (a *Analyzer) Analyze(data []types.OHLCV) (MarketContext, error) {
	if len(data) < a.cfg.ADXPeriod*2+1 {
		return MarketContext{}, fmt.Errorf("market context: window of %d bars too short", len(data))
	}

	first, last := data[0].Close, data[len(data)-1].Close
	if first == 0 {
		return MarketContext{}, fmt.Errorf("market context: zero opening price")
	}
	changePct := (last - first) / first * 100

	adx, _, _, err := indicators.ADX(data, a.cfg.ADXPeriod)
	if err != nil {
		return MarketContext{}, fmt.Errorf("market context: %w", err)
	}
	atr, err := indicators.ATR(data, a.cfg.ATRPeriod)
	if err != nil {
		return MarketContext{}, fmt.Errorf("market context: %w", err)
	}
	atrNorm := 0.0
	if last != 0 {
		atrNorm = atr / last
	}

	ctx := MarketContext{
		ADX:            adx,
		ATRNormalized:  atrNorm,
		PriceChangePct: changePct,
	}

	switch {
	case changePct >= a.cfg.BullishThresholdPct:
		ctx.Regime = Bullish
		ctx.Confidence = clamp01(0.5 + (changePct-a.cfg.BullishThresholdPct)/20)
	case changePct <= a.cfg.BearishThresholdPct:
		ctx.Regime = Bearish
		ctx.Confidence = clamp01(0.5 + (a.cfg.BearishThresholdPct-changePct)/20)
	default:
		ctx.Regime = Correction
		ctx.Confidence = clamp01(0.5 + (a.cfg.BullishThresholdPct-math.Abs(changePct))/10)
	}
	ctx.Multipliers = regimeMultipliers(ctx.Regime)

	a.log.Info().
		Str("regime", string(ctx.Regime)).
		Float64("confidence", ctx.Confidence).
		Float64("price_change_pct", changePct).
		Float64("adx", adx).
		Msg("market context classified")
	return ctx, nil
}

// regimeMultipliers is the enumerated bias table: which detector families to
// trust more, per regime. Values are raw; EffectiveMultipliers blends them
// with the classification confidence.
func regimeMultipliers(regime Regime) map[string]float64 {
	switch regime {
	case Bullish:
		return map[string]float64{
			"ema_crossover":      1.3,
			"macd":               1.2,
			"adx":                1.3,
			"ma_ribbon":          1.2,
			"parabolic_sar":      1.2,
			"smc_bos":            1.2,
			"rsi_mean_reversion": 0.7,
			"smc_choch":          0.7,
			"stochastic":         0.8,
			"williams_r":         0.8,
		}
	case Bearish:
		return map[string]float64{
			"smc_choch":           1.3,
			"rsi_mean_reversion":  1.2,
			"smc_liquidity_sweep": 1.2,
			"williams_r":          1.1,
			"ema_crossover":       0.7,
			"macd":                0.8,
			"adx":                 0.8,
			"smc_bos":             0.8,
		}
	default: // Correction
		return map[string]float64{
			"rsi_mean_reversion": 1.3,
			"bollinger_breakout": 1.2,
			"stochastic":         1.2,
			"smc_order_blocks":   1.2,
			"smc_fvg":            1.2,
			"vwap":               1.1,
			"pivot_point":        1.1,
			"ema_crossover":      0.7,
			"adx":                0.7,
			"macd":               0.8,
			"ma_ribbon":          0.8,
			"smc_bos":            0.8,
		}
	}
}

// EffectiveMultipliers blends the raw multipliers with the classification
// confidence: a low-confidence context barely moves the weights, a
// high-confidence one applies them in full.
func (c MarketContext) EffectiveMultipliers() map[string]float64 {
	out := make(map[string]float64, len(c.Multipliers))
	for name, m := range c.Multipliers {
		switch {
		case m > 1:
			out[name] = 1 + (m-1)*c.Confidence
		case m < 1:
			out[name] = 1 - (1-m)*c.Confidence
		default:
			out[name] = 1
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
