package engine

import (
	"time"

	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// VoteData is the legacy aggregation record: one detector's direction at a
// bar index. The streaming driver runs this simpler aggregator in shadow
// mode while the full engine is being validated.
type VoteData struct {
	Name       string  `json:"name"`
	BarIndex   int     `json:"bar_index"`
	Direction  int     `json:"direction"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}

// Votes maps the current evaluation's directional signals to legacy vote
// records.
func legacyVotes(votes []vote, data []types.OHLCV) []VoteData {
	out := make([]VoteData, len(votes))
	for i, v := range votes {
		out[i] = VoteData{
			Name:       v.name,
			BarIndex:   len(data) - 1,
			Direction:  v.sig.Action.Direction(),
			Confidence: v.sig.Confidence,
			Weight:     v.weight,
		}
	}
	return out
}

// evaluateLegacy aggregates directional votes with one of the four plain
// modes. Regime gating and contribution collection already happened; only
// the decision rule differs from the full engine.
func (e *Engine) evaluateLegacy(votes []vote, data []types.OHLCV) signal.Signal {
	ts := lastTimestamp(data)
	records := legacyVotes(votes, data)
	enabled := e.registry.Len()

	var out signal.Signal
	switch e.cfg.Mode {
	case ModeAll:
		out = decideAll(records, enabled, ts)
	case ModeAny:
		out = decideAny(records, ts)
	case ModeMajority:
		out = decideMajority(records, enabled, ts)
	case ModeWeighted:
		out = decideWeighted(records, ts)
	default:
		out = signal.NewHold(ts, "unknown legacy mode")
	}

	for _, r := range records {
		out.AddReason("%s: %s (conf=%.2f)", r.Name, directionAction(r.Direction), r.Confidence)
	}
	out.AddTag("CONFLUENCE:" + string(out.Action))
	out.SetMeta("mode", string(e.cfg.Mode))
	out.SetMeta("votes", records)
	return out
}

// decideAll emits a direction only on a unanimous vote across every enabled
// detector; a single HOLD breaks unanimity.
func decideAll(records []VoteData, enabled int, ts time.Time) signal.Signal {
	if enabled == 0 || len(records) != enabled {
		return signal.New(signal.ActionHold, 0, ts)
	}
	direction := records[0].Direction
	minConf := records[0].Confidence
	for _, r := range records[1:] {
		if r.Direction != direction {
			return signal.New(signal.ActionHold, 0, ts)
		}
		if r.Confidence < minConf {
			minConf = r.Confidence
		}
	}
	return signal.New(directionAction(direction), minConf, ts)
}

// decideAny emits the direction of the strongest-confidence vote.
func decideAny(records []VoteData, ts time.Time) signal.Signal {
	if len(records) == 0 {
		return signal.New(signal.ActionHold, 0, ts)
	}
	best := records[0]
	for _, r := range records[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return signal.New(directionAction(best.Direction), best.Confidence, ts)
}

// decideMajority emits the direction held by strictly more than half of the
// enabled detectors.
func decideMajority(records []VoteData, enabled int, ts time.Time) signal.Signal {
	buy, sell := 0, 0
	for _, r := range records {
		switch r.Direction {
		case 1:
			buy++
		case -1:
			sell++
		}
	}
	switch {
	case enabled > 0 && buy*2 > enabled:
		return signal.New(signal.ActionBuy, float64(buy)/float64(enabled), ts)
	case enabled > 0 && sell*2 > enabled:
		return signal.New(signal.ActionSell, float64(sell)/float64(enabled), ts)
	}
	return signal.New(signal.ActionHold, 0, ts)
}

// decideWeighted sums weight x direction and decides by sign.
func decideWeighted(records []VoteData, ts time.Time) signal.Signal {
	sum, total := 0.0, 0.0
	for _, r := range records {
		sum += r.Weight * float64(r.Direction)
		total += r.Weight
	}
	if total == 0 {
		return signal.New(signal.ActionHold, 0, ts)
	}
	conf := sum / total
	switch {
	case sum > 0:
		return signal.New(signal.ActionBuy, conf, ts)
	case sum < 0:
		return signal.New(signal.ActionSell, -conf, ts)
	}
	return signal.New(signal.ActionHold, 0, ts)
}

func directionAction(direction int) signal.Action {
	switch direction {
	case 1:
		return signal.ActionBuy
	case -1:
		return signal.ActionSell
	}
	return signal.ActionHold
}
