package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// FibonacciConfig holds the retracement detector parameters.
type FibonacciConfig struct {
	Lookback  int
	Tolerance float64 // proximity to a level, as a fraction of price
}

// DefaultFibonacciConfig returns a 50-bar swing with 0.5% tolerance.
func DefaultFibonacciConfig() FibonacciConfig {
	return FibonacciConfig{Lookback: 50, Tolerance: 0.005}
}

// Fibonacci signals a reversion entry when price retraces to the 0.382 or
// 0.618 level of the most recent swing inside the lookback range, in the
// direction of that swing. The 0.618 ("golden") level carries more weight.
type Fibonacci struct {
	cfg FibonacciConfig
}

func NewFibonacci(cfg FibonacciConfig) *Fibonacci {
	return &Fibonacci{cfg: cfg}
}

func (d *Fibonacci) GetName() string { return "fibonacci" }

func (d *Fibonacci) GetRequiredPeriods() int { return d.cfg.Lookback }

func (d *Fibonacci) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	high, low, highIdx, lowIdx, err := indicators.RangeHighLow(data, d.cfg.Lookback)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	ts := lastTimestamp(data)
	swing := high - low
	if swing <= 0 {
		return signal.NewHold(ts, "no swing in lookback range")
	}

	close := data[len(data)-1].Close
	upswing := lowIdx < highIdx // low formed first: price swung upward

	for _, level := range []struct {
		ratio float64
		bonus float64
	}{{0.382, 0.0}, {0.618, 0.1}} {
		var target float64
		if upswing {
			target = high - swing*level.ratio
		} else {
			target = low + swing*level.ratio
		}
		if math.Abs(close-target)/close > d.cfg.Tolerance {
			continue
		}

		action := signal.ActionBuy
		tag := "CLASSIC:FIB_RETRACE_BULL"
		if !upswing {
			action = signal.ActionSell
			tag = "CLASSIC:FIB_RETRACE_BEAR"
		}
		s := signal.New(action, clampConfidence(0.45+level.bonus), ts)
		s.AddReason("price %.4f at %.1f%% retracement of swing %.4f-%.4f", close, level.ratio*100, low, high)
		s.AddTag(tag)
		s.SetMeta("fib_level", level.ratio)
		s.SetMeta("swing_high", high)
		s.SetMeta("swing_low", low)
		return s
	}

	return signal.NewHold(ts, "price away from fib levels")
}
