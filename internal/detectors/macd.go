package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// MACDConfig holds the MACD detector parameters.
type MACDConfig struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultMACDConfig returns the 12/26/9 setup.
func DefaultMACDConfig() MACDConfig {
	return MACDConfig{Fast: 12, Slow: 26, Signal: 9}
}

// MACD signals on the MACD line crossing its signal line: BUY on an upward
// cross, SELL on a downward cross. Histogram size relative to price feeds
// the confidence.
type MACD struct {
	cfg MACDConfig
}

func NewMACD(cfg MACDConfig) *MACD {
	return &MACD{cfg: cfg}
}

func (d *MACD) GetName() string { return "macd" }

func (d *MACD) GetRequiredPeriods() int { return d.cfg.Slow + d.cfg.Signal + 1 }

func (d *MACD) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	closes := indicators.Closes(data)
	macdLine, signalLine, err := indicators.MACDSeries(closes, d.cfg.Fast, d.cfg.Slow, d.cfg.Signal)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	last := len(closes) - 1
	hist := macdLine[last] - signalLine[last]
	prevHist := macdLine[last-1] - signalLine[last-1]
	ts := lastTimestamp(data)

	price := closes[last]
	strength := 0.0
	if price > 0 {
		strength = math.Abs(hist) / price * 1000
	}

	switch {
	case prevHist <= 0 && hist > 0:
		s := signal.New(signal.ActionBuy, clampConfidence(0.5+math.Min(0.3, strength)), ts)
		s.AddReason("macd crossed above signal (hist %.5f)", hist)
		s.AddTag("CLASSIC:MACD_CROSS_BULL")
		s.SetMeta("macd", macdLine[last])
		s.SetMeta("macd_signal", signalLine[last])
		s.SetMeta("macd_hist", hist)
		return s

	case prevHist >= 0 && hist < 0:
		s := signal.New(signal.ActionSell, clampConfidence(0.5+math.Min(0.3, strength)), ts)
		s.AddReason("macd crossed below signal (hist %.5f)", hist)
		s.AddTag("CLASSIC:MACD_CROSS_BEAR")
		s.SetMeta("macd", macdLine[last])
		s.SetMeta("macd_signal", signalLine[last])
		s.SetMeta("macd_hist", hist)
		return s
	}

	s := signal.NewHold(ts, "no macd cross")
	s.SetMeta("macd_hist", hist)
	return s
}
