package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// EMACrossoverConfig holds the fast and slow periods of the EMA crossover
// detector.
type EMACrossoverConfig struct {
	Fast int
	Slow int
	// AlignmentThreshold is the minimum fast/slow separation (as a fraction
	// of price) for a continuation signal while no fresh cross occurred.
	AlignmentThreshold float64
}

// DefaultEMACrossoverConfig returns the 12/26 setup.
func DefaultEMACrossoverConfig() EMACrossoverConfig {
	return EMACrossoverConfig{Fast: 12, Slow: 26, AlignmentThreshold: 0.001}
}

// EMACrossover signals BUY when the fast EMA crosses above the slow EMA and
// SELL on the opposite cross. While the EMAs stay aligned with a meaningful
// separation it emits a lower-confidence continuation signal, so an
// established trend keeps voting after the crossing bar has passed.
type EMACrossover struct {
	cfg EMACrossoverConfig
}

func NewEMACrossover(cfg EMACrossoverConfig) *EMACrossover {
	return &EMACrossover{cfg: cfg}
}

func (d *EMACrossover) GetName() string { return "ema_crossover" }

func (d *EMACrossover) GetRequiredPeriods() int { return d.cfg.Slow + 2 }

func (d *EMACrossover) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	closes := indicators.Closes(data)
	fastSeries, err := indicators.EMASeries(closes, d.cfg.Fast)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}
	slowSeries, err := indicators.EMASeries(closes, d.cfg.Slow)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	last := len(closes) - 1
	fast, slow := fastSeries[last], slowSeries[last]
	prevFast, prevSlow := fastSeries[last-1], slowSeries[last-1]
	ts := lastTimestamp(data)

	price := closes[last]
	separation := 0.0
	if price > 0 {
		separation = math.Abs(fast-slow) / price
	}

	switch {
	case prevFast <= prevSlow && fast > slow:
		s := signal.New(signal.ActionBuy, clampConfidence(0.6+separation*50), ts)
		s.AddReason("ema %d crossed above ema %d", d.cfg.Fast, d.cfg.Slow)
		s.AddTag("CLASSIC:EMA_CROSS_BULL")
		s.SetMeta("ema_fast", fast)
		s.SetMeta("ema_slow", slow)
		return s

	case prevFast >= prevSlow && fast < slow:
		s := signal.New(signal.ActionSell, clampConfidence(0.6+separation*50), ts)
		s.AddReason("ema %d crossed below ema %d", d.cfg.Fast, d.cfg.Slow)
		s.AddTag("CLASSIC:EMA_CROSS_BEAR")
		s.SetMeta("ema_fast", fast)
		s.SetMeta("ema_slow", slow)
		return s

	case fast > slow && separation >= d.cfg.AlignmentThreshold:
		s := signal.New(signal.ActionBuy, clampConfidence(0.45+separation*10), ts)
		s.AddReason("ema %d above ema %d (sep %.3f%%)", d.cfg.Fast, d.cfg.Slow, separation*100)
		s.AddTag("CLASSIC:EMA_ALIGNED_BULL")
		s.SetMeta("ema_fast", fast)
		s.SetMeta("ema_slow", slow)
		return s

	case fast < slow && separation >= d.cfg.AlignmentThreshold:
		s := signal.New(signal.ActionSell, clampConfidence(0.45+separation*10), ts)
		s.AddReason("ema %d below ema %d (sep %.3f%%)", d.cfg.Fast, d.cfg.Slow, separation*100)
		s.AddTag("CLASSIC:EMA_ALIGNED_BEAR")
		s.SetMeta("ema_fast", fast)
		s.SetMeta("ema_slow", slow)
		return s
	}

	return signal.NewHold(ts, "emas entangled")
}
