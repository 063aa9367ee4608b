package signal

import (
	"fmt"
	"time"
)

// Action is the trading decision carried by a Signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Direction maps BUY to +1, SELL to -1 and HOLD to 0.
func (a Action) Direction() int {
	switch a {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	default:
		return 0
	}
}

// Valid reports whether the action is one of the three known constants.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell || a == ActionHold
}

// Signal is the uniform value object produced by every detector and by the
// confluence engine itself. Signals are ephemeral per-bar values; the engine
// aggregates and discards them.
type Signal struct {
	Action     Action                 `json:"action"`
	Confidence float64                `json:"confidence"`
	Reasons    []string               `json:"reasons,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// New builds a signal with the confidence clamped to [0, 1].
func New(action Action, confidence float64, ts time.Time) Signal {
	return Signal{
		Action:     action,
		Confidence: clamp01(confidence),
		Timestamp:  ts,
	}
}

// NewHold builds a HOLD signal with zero confidence and an explanatory reason.
// HOLD signals still carry reasons and tags for audit.
func NewHold(ts time.Time, reason string, tags ...string) Signal {
	s := Signal{
		Action:    ActionHold,
		Timestamp: ts,
	}
	if reason != "" {
		s.Reasons = append(s.Reasons, reason)
	}
	for _, tag := range tags {
		s.AddTag(tag)
	}
	return s
}

// AddReason appends a human-readable justification line.
func (s *Signal) AddReason(format string, args ...interface{}) {
	s.Reasons = append(s.Reasons, fmt.Sprintf(format, args...))
}

// AddTag appends a machine-readable label, skipping duplicates.
func (s *Signal) AddTag(tag string) {
	for _, t := range s.Tags {
		if t == tag {
			return
		}
	}
	s.Tags = append(s.Tags, tag)
}

// HasTag reports whether the signal carries the given label.
func (s *Signal) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SetMeta records a detector-specific diagnostic value.
func (s *Signal) SetMeta(key string, value interface{}) {
	if s.Meta == nil {
		s.Meta = make(map[string]interface{})
	}
	s.Meta[key] = value
}

// IsHold reports whether the signal carries no directional decision.
func (s Signal) IsHold() bool {
	return s.Action == ActionHold
}

// Validate checks the signal invariants: a known action and a confidence in
// [0, 1]. Detectors that violate these are programmer errors; the engine
// refuses to aggregate them.
func (s Signal) Validate() error {
	if !s.Action.Valid() {
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %f outside [0, 1]", s.Confidence)
	}
	return nil
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
