package detectors

import (
	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// MomentumComboConfig composes the MACD and RSI parameters of the combo
// detector.
type MomentumComboConfig struct {
	MACD MACDConfig
	RSI  RSIMeanReversionConfig
}

// DefaultMomentumComboConfig returns 12/26/9 MACD with 14-period RSI.
func DefaultMomentumComboConfig() MomentumComboConfig {
	return MomentumComboConfig{
		MACD: DefaultMACDConfig(),
		RSI:  DefaultRSIMeanReversionConfig(),
	}
}

// MomentumCombo requires confluence of a MACD signal-line crossover and the
// RSI half-plane: a bullish cross only counts with RSI above 50, a bearish
// cross with RSI below 50. Two corroborating features push the confidence
// above the single-indicator band.
type MomentumCombo struct {
	cfg MomentumComboConfig
}

func NewMomentumCombo(cfg MomentumComboConfig) *MomentumCombo {
	return &MomentumCombo{cfg: cfg}
}

func (d *MomentumCombo) GetName() string { return "momentum_combo" }

func (d *MomentumCombo) GetRequiredPeriods() int {
	macd := d.cfg.MACD.Slow + d.cfg.MACD.Signal + 1
	rsi := d.cfg.RSI.Period + 2
	if rsi > macd {
		return rsi
	}
	return macd
}

func (d *MomentumCombo) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	closes := indicators.Closes(data)
	macdLine, signalLine, err := indicators.MACDSeries(closes, d.cfg.MACD.Fast, d.cfg.MACD.Slow, d.cfg.MACD.Signal)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}
	rsi, err := indicators.RSI(closes, d.cfg.RSI.Period)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	last := len(closes) - 1
	hist := macdLine[last] - signalLine[last]
	prevHist := macdLine[last-1] - signalLine[last-1]
	ts := lastTimestamp(data)

	crossedUp := prevHist <= 0 && hist > 0
	crossedDown := prevHist >= 0 && hist < 0

	switch {
	case crossedUp && rsi > 50:
		momentum := (rsi - 50) / 50
		s := signal.New(signal.ActionBuy, clampConfidence(0.55+0.3*momentum), ts)
		s.AddReason("macd bullish cross with rsi %.1f above 50", rsi)
		s.AddTag("CLASSIC:MOMENTUM_COMBO_BULL")
		s.SetMeta("macd_hist", hist)
		s.SetMeta("rsi", rsi)
		return s

	case crossedDown && rsi < 50:
		momentum := (50 - rsi) / 50
		s := signal.New(signal.ActionSell, clampConfidence(0.55+0.3*momentum), ts)
		s.AddReason("macd bearish cross with rsi %.1f below 50", rsi)
		s.AddTag("CLASSIC:MOMENTUM_COMBO_BEAR")
		s.SetMeta("macd_hist", hist)
		s.SetMeta("rsi", rsi)
		return s

	case crossedUp || crossedDown:
		s := signal.NewHold(ts, "macd cross without rsi confirmation")
		s.SetMeta("macd_hist", hist)
		s.SetMeta("rsi", rsi)
		return s
	}

	return signal.NewHold(ts, "no macd cross")
}
