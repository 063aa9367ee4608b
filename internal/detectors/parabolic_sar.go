package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// ParabolicSARConfig holds the acceleration-factor schedule.
type ParabolicSARConfig struct {
	AFStart float64
	AFStep  float64
	AFMax   float64
}

// DefaultParabolicSARConfig returns the classic 0.02/0.02/0.2 schedule.
func DefaultParabolicSARConfig() ParabolicSARConfig {
	return ParabolicSARConfig{AFStart: 0.02, AFStep: 0.02, AFMax: 0.2}
}

// ParabolicSAR votes with the side of price relative to the SAR: BUY while
// price rides above it, SELL below. Distance to the SAR (normalized by
// price) feeds the confidence.
type ParabolicSAR struct {
	cfg ParabolicSARConfig
}

func NewParabolicSAR(cfg ParabolicSARConfig) *ParabolicSAR {
	return &ParabolicSAR{cfg: cfg}
}

func (d *ParabolicSAR) GetName() string { return "parabolic_sar" }

func (d *ParabolicSAR) GetRequiredPeriods() int { return 5 }

func (d *ParabolicSAR) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	sar, uptrend, err := indicators.PSAR(data, d.cfg.AFStart, d.cfg.AFStep, d.cfg.AFMax)
	if err != nil {
		return holdShortWindow(d.GetName(), data)
	}

	ts := lastTimestamp(data)
	close := data[len(data)-1].Close
	if close == 0 {
		return signal.NewHold(ts, "undefined price")
	}
	distance := math.Abs(close-sar) / close

	if uptrend {
		s := signal.New(signal.ActionBuy, clampConfidence(0.4+math.Min(0.3, distance*20)), ts)
		s.AddReason("price %.4f above sar %.4f", close, sar)
		s.AddTag("CLASSIC:PSAR_BULL")
		s.SetMeta("psar", sar)
		return s
	}
	s := signal.New(signal.ActionSell, clampConfidence(0.4+math.Min(0.3, distance*20)), ts)
	s.AddReason("price %.4f below sar %.4f", close, sar)
	s.AddTag("CLASSIC:PSAR_BEAR")
	s.SetMeta("psar", sar)
	return s
}
