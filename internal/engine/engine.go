// Package engine aggregates detector signals into a single trading decision.
// The confluence engine runs a regime gate, collects weighted directional
// contributions, penalizes detector conflicts and decides against the score
// thresholds. A simpler legacy vote aggregator is kept behind the same
// Evaluate call for shadow-mode validation.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/internal/detectors"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/internal/volumefilter"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// Mode selects the aggregation strategy.
type Mode string

const (
	ModeEngine   Mode = "ENGINE"   // full confluence pipeline
	ModeAll      Mode = "ALL"      // unanimous vote
	ModeAny      Mode = "ANY"      // strongest single vote
	ModeMajority Mode = "MAJORITY" // strict majority of enabled detectors
	ModeWeighted Mode = "WEIGHTED" // weighted vote count by sign
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeEngine, ModeAll, ModeAny, ModeMajority, ModeWeighted:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown confluence mode %q", s)
}

// Config holds the aggregation parameters.
type Config struct {
	Mode            Mode         `json:"mode"`
	BuyThreshold    float64      `json:"buy_threshold"`
	SellThreshold   float64      `json:"sell_threshold"`
	ConflictPenalty float64      `json:"conflict_penalty"`
	Regime          RegimeConfig `json:"regime"`
}

// DefaultConfig returns the full engine mode with the reference thresholds.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeEngine,
		BuyThreshold:    0.5,
		SellThreshold:   -0.5,
		ConflictPenalty: 0.3,
		Regime:          DefaultRegimeConfig(),
	}
}

// InvariantViolationError reports a detector emitting a signal outside the
// contract. This is a programming error, not a market condition, so the
// evaluation fails instead of degrading.
type InvariantViolationError struct {
	Detector string
	Cause    error
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("detector %q violated the signal contract: %v", e.Detector, e.Cause)
}

func (e *InvariantViolationError) Unwrap() error { return e.Cause }

// vote is one detector's directional output within a single evaluation.
type vote struct {
	name         string
	weight       float64
	sig          signal.Signal
	contribution float64
}

// Engine is the confluence aggregator. It is single-threaded and
// synchronous: Evaluate is a pure CPU computation over the window, the
// registry and the configuration, so two calls with identical inputs return
// identical signals.
type Engine struct {
	cfg      Config
	registry *detectors.Registry
	filter   *volumefilter.Filter
	log      zerolog.Logger

	multipliers map[string]float64
	ctxMeta     interface{}
}

// New builds an engine over a detector registry. The volume filter is
// optional; a nil filter disables the volume gate.
func New(cfg Config, registry *detectors.Registry, filter *volumefilter.Filter, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		filter:   filter,
		log:      log,
	}
}

// SetMarketContext installs the per-detector weight multipliers produced by
// the market context analysis, plus an opaque context record surfaced in the
// output meta. Multipliers are already confidence-blended; a missing entry
// means 1.0.
func (e *Engine) SetMarketContext(ctx interface{}, multipliers map[string]float64) {
	e.ctxMeta = ctx
	e.multipliers = multipliers
}

func (e *Engine) effectiveWeight(name string, base float64) float64 {
	if e.multipliers == nil {
		return base
	}
	if m, ok := e.multipliers[name]; ok {
		return base * m
	}
	return base
}

// Evaluate runs the configured aggregation over the window and returns the
// final decision. The only error condition is a detector breaking the signal
// contract.
func (e *Engine) Evaluate(data []types.OHLCV) (signal.Signal, error) {
	ts := lastTimestamp(data)

	if e.registry.Len() == 0 {
		return signal.NewHold(ts, "no detectors enabled", "CONFLUENCE:HOLD"), nil
	}

	snapshot := e.cfg.Regime.Snapshot(data)

	// Detectors run before the gate is consulted: an all-HOLD window is a
	// quiet session, not a filtered one.
	votes, rejectedTags, err := e.collect(data)
	if err != nil {
		return signal.Signal{}, err
	}

	if len(votes) == 0 {
		out := signal.NewHold(ts, "no signals detected", "CONFLUENCE:HOLD")
		for _, tag := range rejectedTags {
			out.AddTag(tag)
		}
		e.attachMeta(&out, 0, 0, 0, 0, snapshot)
		return out, nil
	}

	if blocked, warnings := snapshot.gate(e.cfg.Regime); len(blocked) > 0 {
		out := signal.NewHold(ts, blocked[0], "CONFLUENCE:REGIME_FILTER")
		for _, reason := range blocked[1:] {
			out.AddReason("%s", reason)
		}
		for _, warning := range warnings {
			out.AddReason("%s", warning)
		}
		e.attachMeta(&out, 0, 0, 0, 0, snapshot)
		e.log.Debug().Str("regime", snapshot.Label).Msg("evaluation blocked by regime gate")
		return out, nil
	}

	if e.cfg.Mode != ModeEngine {
		out := e.evaluateLegacy(votes, data)
		e.attachMeta(&out, 0, countDirections(votes, 1), countDirections(votes, -1), len(votes), snapshot)
		return out, nil
	}

	out := e.decide(votes, snapshot, ts)
	return out, nil
}

// collect invokes every enabled detector, validates its output, pushes it
// through the volume gate and keeps the directional survivors. Tags of
// volume-rejected signals are returned separately so the final decision can
// still account for the veto.
func (e *Engine) collect(data []types.OHLCV) ([]vote, []string, error) {
	var votes []vote
	var rejectedTags []string

	for _, name := range e.registry.Names() {
		entry, _ := e.registry.Get(name)
		s := entry.Detector.Evaluate(data)
		if err := s.Validate(); err != nil {
			return nil, nil, &InvariantViolationError{Detector: name, Cause: err}
		}

		if e.filter != nil {
			s = e.filter.Apply(s, data)
		}
		if s.IsHold() {
			if s.HasTag(volumefilter.TagRejected) {
				rejectedTags = append(rejectedTags, s.Tags...)
			}
			continue
		}

		weight := e.effectiveWeight(name, entry.Weight)
		votes = append(votes, vote{
			name:         name,
			weight:       weight,
			sig:          s,
			contribution: weight * s.Confidence * float64(s.Action.Direction()),
		})
	}
	return votes, rejectedTags, nil
}

// decide runs steps 3-6 of the confluence pipeline: aggregate, penalize
// conflicts, threshold, and assemble the auditable output signal.
func (e *Engine) decide(votes []vote, snapshot RegimeSnapshot, ts time.Time) signal.Signal {
	score := 0.0
	buyCount, sellCount := 0, 0
	for _, v := range votes {
		score += v.contribution
		switch v.sig.Action.Direction() {
		case 1:
			buyCount++
		case -1:
			sellCount++
		}
	}

	conflicts := 0
	penalty := 0.0
	if buyCount > 0 && sellCount > 0 {
		conflicts = buyCount
		if sellCount < conflicts {
			conflicts = sellCount
		}
		penalty = float64(conflicts) * e.cfg.ConflictPenalty
		factor := 1 - penalty
		if factor < 0 {
			factor = 0
		}
		score *= factor
	}

	var out signal.Signal
	switch {
	case score >= e.cfg.BuyThreshold:
		out = signal.New(signal.ActionBuy, math.Min(math.Abs(score), 1.0), ts)
	case score <= e.cfg.SellThreshold:
		out = signal.New(signal.ActionSell, math.Min(math.Abs(score), 1.0), ts)
	default:
		out = signal.New(signal.ActionHold, 0, ts)
	}

	for _, v := range votes {
		out.AddReason("%s: %s (conf=%.2f, contrib=%+.3f)", v.name, v.sig.Action, v.sig.Confidence, v.contribution)
	}
	if conflicts > 0 {
		out.AddReason("conflict penalty: %d opposing votes, score scaled by %.2f", conflicts, 1-penalty)
	}
	if _, warnings := snapshot.gate(e.cfg.Regime); len(warnings) > 0 {
		for _, warning := range warnings {
			out.AddReason("%s", warning)
		}
	}

	for _, v := range votes {
		for _, tag := range v.sig.Tags {
			out.AddTag(tag)
		}
	}
	out.AddTag("CONFLUENCE:" + string(out.Action))

	e.attachMeta(&out, score, buyCount, sellCount, len(votes), snapshot)

	e.log.Debug().
		Float64("score", score).
		Int("buy_count", buyCount).
		Int("sell_count", sellCount).
		Str("action", string(out.Action)).
		Msg("confluence decision")
	return out
}

func (e *Engine) attachMeta(s *signal.Signal, score float64, buyCount, sellCount, signalCount int, snapshot RegimeSnapshot) {
	s.SetMeta("score", score)
	s.SetMeta("buy_count", buyCount)
	s.SetMeta("sell_count", sellCount)
	s.SetMeta("signal_count", signalCount)
	s.SetMeta("regime_snapshot", snapshot)
	if e.ctxMeta != nil {
		s.SetMeta("ctx", e.ctxMeta)
	}
}

func countDirections(votes []vote, direction int) int {
	n := 0
	for _, v := range votes {
		if v.sig.Action.Direction() == direction {
			n++
		}
	}
	return n
}

func lastTimestamp(data []types.OHLCV) time.Time {
	if len(data) == 0 {
		return time.Time{}
	}
	return data[len(data)-1].Timestamp
}
