// Package volumefilter gates detector signals on volume confirmation. A
// signal fired into thin volume is statistically noise; one fired into a
// volume surge deserves extra conviction. The filter expresses both as a
// z-score of the signal bar's volume against the trailing window.
package volumefilter

import (
	"math"
	"sync"

	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// Tags attached by the filter to every non-HOLD signal that passes through.
const (
	TagRejected = "VOLUME_REJECTED"
	TagBoosted  = "VOLUME_BOOSTED"
	TagNormal   = "VOLUME_NORMAL"
)

// Config holds the volume gate thresholds.
type Config struct {
	RejectThreshold float64 `json:"reject_threshold"` // z-score below which signals are vetoed
	BoostThreshold  float64 `json:"boost_threshold"`  // z-score above which confidence is amplified
	BoostFactor     float64 `json:"boost_factor"`     // confidence multiplier for boosted signals
	LookbackPeriod  int     `json:"lookback_period"`  // bars in the volume baseline
}

// DefaultConfig returns the reference thresholds: veto below 0.5 sigma,
// boost 1.3x above 1.5 sigma, 50-bar baseline.
func DefaultConfig() Config {
	return Config{
		RejectThreshold: 0.5,
		BoostThreshold:  1.5,
		BoostFactor:     1.3,
		LookbackPeriod:  50,
	}
}

// Stats aggregates the gate's session counters for reporting. Received
// counts directional signals fed to the gate; Rejected, Boosted and Passed
// partition them.
type Stats struct {
	Received int64 `json:"received"`
	Rejected int64 `json:"rejected"`
	Boosted  int64 `json:"boosted"`
	Passed   int64 `json:"passed"`
}

// Filter applies the volume gate to detector signals.
type Filter struct {
	cfg Config

	mu    sync.Mutex
	stats Stats
}

// New creates a filter with the given thresholds.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Stats returns a copy of the session counters.
func (f *Filter) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *Filter) count(apply func(*Stats)) {
	f.mu.Lock()
	apply(&f.stats)
	f.mu.Unlock()
}

// ZScore computes the current bar's volume z-score against the trailing
// lookback window (current bar included). The second return reports whether
// the score is defined: a window shorter than the lookback, or one with zero
// volume variance, has no meaningful score.
func (f *Filter) ZScore(data []types.OHLCV) (float64, bool) {
	if len(data) < f.cfg.LookbackPeriod || f.cfg.LookbackPeriod < 2 {
		return 0, false
	}

	window := data[len(data)-f.cfg.LookbackPeriod:]
	mean := 0.0
	for _, bar := range window {
		mean += bar.Volume
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, bar := range window {
		d := bar.Volume - mean
		variance += d * d
	}
	variance /= float64(len(window))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0, false
	}

	return (data[len(data)-1].Volume - mean) / std, true
}

// Apply gates a detector signal on the volume of its bar.
//
// HOLD signals pass through untouched: there is nothing to veto. When the
// z-score is undefined (warm-up or constant volume) the signal also passes,
// tagged normal, because an undefined baseline is not evidence of thin
// volume. Otherwise:
//
//   - z below the reject threshold: the signal is demoted to HOLD with the
//     rejection tag; the vetoed action is kept in the meta for audit.
//   - z above the boost threshold: confidence is multiplied by the boost
//     factor, capped at 1.0.
//   - anything between: passed through with the normal tag.
func (f *Filter) Apply(s signal.Signal, data []types.OHLCV) signal.Signal {
	if s.IsHold() {
		return s
	}
	f.count(func(st *Stats) { st.Received++ })

	z, ok := f.ZScore(data)
	if !ok {
		f.count(func(st *Stats) { st.Passed++ })
		s.AddTag(TagNormal)
		s.SetMeta("volume_zscore_defined", false)
		return s
	}
	s.SetMeta("volume_zscore", z)

	switch {
	case z < f.cfg.RejectThreshold:
		rejected := signal.New(signal.ActionHold, 0, s.Timestamp)
		rejected.Reasons = append(rejected.Reasons, s.Reasons...)
		rejected.AddReason("volume veto: z-score %.2f below threshold %.2f", z, f.cfg.RejectThreshold)
		rejected.AddTag(TagRejected)
		for _, tag := range s.Tags {
			rejected.AddTag(tag)
		}
		for k, v := range s.Meta {
			rejected.SetMeta(k, v)
		}
		rejected.SetMeta("rejected_action", string(s.Action))
		rejected.SetMeta("rejected_confidence", s.Confidence)
		f.count(func(st *Stats) { st.Rejected++ })
		return rejected

	case z > f.cfg.BoostThreshold:
		s.Confidence = math.Min(1.0, s.Confidence*f.cfg.BoostFactor)
		s.AddTag(TagBoosted)
		s.AddReason("volume boost: z-score %.2f above threshold %.2f", z, f.cfg.BoostThreshold)
		f.count(func(st *Stats) { st.Boosted++ })
		return s

	default:
		s.AddTag(TagNormal)
		f.count(func(st *Stats) { st.Passed++ })
		return s
	}
}
