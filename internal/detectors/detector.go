// Package detectors contains the pattern detector catalogue and the registry
// the confluence engine evaluates. A detector is a pure function of the
// candle window plus its own configured parameters: no I/O, no clock reads,
// no hidden state between calls. Detectors that cannot compute a meaningful
// value return a HOLD signal with an explanatory reason instead of failing.
package detectors

import (
	"time"

	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// Detector is the uniform capability every pattern detector implements.
type Detector interface {
	// Evaluate inspects the window and produces a Signal for the last bar.
	Evaluate(data []types.OHLCV) signal.Signal

	// GetName returns the registry identifier (lowercase snake case).
	GetName() string

	// GetRequiredPeriods returns the minimum window length the detector
	// needs before it can produce a non-HOLD signal.
	GetRequiredPeriods() int
}

// lastTimestamp returns the timestamp the signal refers to: the last bar of
// the window, or the zero time for an empty window.
func lastTimestamp(data []types.OHLCV) time.Time {
	if len(data) == 0 {
		return time.Time{}
	}
	return data[len(data)-1].Timestamp
}

// holdShortWindow is the canonical "not enough data" HOLD every detector
// returns for a window shorter than its look-back.
func holdShortWindow(name string, data []types.OHLCV) signal.Signal {
	return signal.NewHold(lastTimestamp(data), name+": not enough data", "INSUFFICIENT_DATA")
}

// clampConfidence bounds a composed confidence to the detector convention:
// at least the textbook base, at most 1.0.
func clampConfidence(conf float64) float64 {
	if conf > 1 {
		return 1
	}
	if conf < 0 {
		return 0
	}
	return conf
}
