package detectors

import (
	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// StochasticConfig holds the stochastic oscillator parameters.
type StochasticConfig struct {
	KPeriod    int
	DPeriod    int
	Oversold   float64
	Overbought float64
}

// DefaultStochasticConfig returns the 14/3 setup with 20/80 zones.
func DefaultStochasticConfig() StochasticConfig {
	return StochasticConfig{KPeriod: 14, DPeriod: 3, Oversold: 20, Overbought: 80}
}

// Stochastic signals on a %K/%D cross inside an extreme zone: BUY when %K
// crosses above %D while both sit below the oversold level, SELL on the
// mirrored cross above the overbought level.
type Stochastic struct {
	cfg StochasticConfig
}

func NewStochastic(cfg StochasticConfig) *Stochastic {
	return &Stochastic{cfg: cfg}
}

func (d *Stochastic) GetName() string { return "stochastic" }

func (d *Stochastic) GetRequiredPeriods() int { return d.cfg.KPeriod + d.cfg.DPeriod + 1 }

func (d *Stochastic) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	kSeries, dSeries, err := indicators.Stochastic(data, d.cfg.KPeriod, d.cfg.DPeriod)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	last := len(data) - 1
	k, dLine := kSeries[last], dSeries[last]
	prevK, prevD := kSeries[last-1], dSeries[last-1]
	ts := lastTimestamp(data)

	switch {
	case prevK <= prevD && k > dLine && k < d.cfg.Oversold:
		depth := (d.cfg.Oversold - k) / d.cfg.Oversold
		s := signal.New(signal.ActionBuy, clampConfidence(0.45+0.3*depth), ts)
		s.AddReason("stochastic %%K crossed above %%D in oversold zone (%.1f)", k)
		s.AddTag("CLASSIC:STOCH_CROSS_BULL")
		s.SetMeta("stoch_k", k)
		s.SetMeta("stoch_d", dLine)
		return s

	case prevK >= prevD && k < dLine && k > d.cfg.Overbought:
		depth := (k - d.cfg.Overbought) / (100 - d.cfg.Overbought)
		s := signal.New(signal.ActionSell, clampConfidence(0.45+0.3*depth), ts)
		s.AddReason("stochastic %%K crossed below %%D in overbought zone (%.1f)", k)
		s.AddTag("CLASSIC:STOCH_CROSS_BEAR")
		s.SetMeta("stoch_k", k)
		s.SetMeta("stoch_d", dLine)
		return s
	}

	s := signal.NewHold(ts, "no stochastic cross in extreme zone")
	s.SetMeta("stoch_k", k)
	s.SetMeta("stoch_d", dLine)
	return s
}
