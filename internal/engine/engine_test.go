package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbay/confluence-bot/internal/detectors"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/internal/volumefilter"
	"github.com/quantbay/confluence-bot/pkg/types"
)

var testBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// stubDetector emits a fixed signal regardless of the window, used to drive
// the aggregation logic without real indicator math.
type stubDetector struct {
	name string
	emit func(ts time.Time) signal.Signal
}

func (d stubDetector) Evaluate(data []types.OHLCV) signal.Signal {
	ts := time.Time{}
	if len(data) > 0 {
		ts = data[len(data)-1].Timestamp
	}
	return d.emit(ts)
}

func (d stubDetector) GetName() string         { return d.name }
func (d stubDetector) GetRequiredPeriods() int { return 1 }

func stubVote(name string, action signal.Action, conf float64, tags ...string) stubDetector {
	return stubDetector{name: name, emit: func(ts time.Time) signal.Signal {
		s := signal.New(action, conf, ts)
		for _, tag := range tags {
			s.AddTag(tag)
		}
		return s
	}}
}

func stubHold(name string) stubDetector {
	return stubDetector{name: name, emit: func(ts time.Time) signal.Signal {
		return signal.NewHold(ts, name+" idle")
	}}
}

func flatBars(n int, volume float64) []types.OHLCV {
	bars := make([]types.OHLCV, n)
	for i := range bars {
		bars[i] = types.OHLCV{
			Timestamp: testBase.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 100.1, Low: 99.9, Close: 100,
			Volume: volume,
		}
	}
	return bars
}

// shortWindow is below the regime indicators' look-back, so the gate is
// undefined and stays out of the way.
func shortWindow() []types.OHLCV { return flatBars(10, 1000) }

func newRegistry(t *testing.T, stubs ...detectors.Detector) *detectors.Registry {
	t.Helper()
	r := detectors.NewRegistry()
	for _, d := range stubs {
		require.NoError(t, r.Register(d, 1.0))
	}
	return r
}

func newEngine(r *detectors.Registry) *Engine {
	return New(DefaultConfig(), r, nil, zerolog.Nop())
}

func TestEvaluateBuyConsensus(t *testing.T) {
	r := newRegistry(t,
		stubVote("alpha", signal.ActionBuy, 0.6, "CLASSIC:A"),
		stubVote("beta", signal.ActionBuy, 0.7, "CLASSIC:B"),
	)
	e := newEngine(r)

	out, err := e.Evaluate(shortWindow())
	require.NoError(t, err)

	assert.Equal(t, signal.ActionBuy, out.Action)
	assert.Equal(t, 1.0, out.Confidence) // score 1.3 capped
	assert.True(t, out.HasTag("CONFLUENCE:BUY"))
	assert.True(t, out.HasTag("CLASSIC:A"))
	assert.True(t, out.HasTag("CLASSIC:B"))
	assert.InDelta(t, 1.3, out.Meta["score"].(float64), 1e-9)
	assert.Equal(t, 2, out.Meta["buy_count"])
	assert.Equal(t, 0, out.Meta["sell_count"])
	assert.Equal(t, 2, out.Meta["signal_count"])
	assert.Len(t, out.Reasons, 2)
	assert.Contains(t, out.Reasons[0], "alpha: BUY (conf=0.60, contrib=+0.600)")
}

func TestEvaluateSellConsensus(t *testing.T) {
	r := newRegistry(t,
		stubVote("alpha", signal.ActionSell, 0.4),
		stubVote("beta", signal.ActionSell, 0.3),
	)
	out, err := newEngine(r).Evaluate(shortWindow())
	require.NoError(t, err)

	assert.Equal(t, signal.ActionSell, out.Action)
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)
	assert.True(t, out.HasTag("CONFLUENCE:SELL"))
}

func TestEvaluateConflictPenaltyForcesHold(t *testing.T) {
	// Three buyers at 0.8 against two sellers at 0.7: raw score 1.0, two
	// conflicts scale it to 0.4, below the buy threshold.
	r := newRegistry(t,
		stubVote("b1", signal.ActionBuy, 0.8),
		stubVote("b2", signal.ActionBuy, 0.8),
		stubVote("b3", signal.ActionBuy, 0.8),
		stubVote("s1", signal.ActionSell, 0.7),
		stubVote("s2", signal.ActionSell, 0.7),
	)
	out, err := newEngine(r).Evaluate(shortWindow())
	require.NoError(t, err)

	assert.Equal(t, signal.ActionHold, out.Action)
	assert.Equal(t, 0.0, out.Confidence)
	assert.InDelta(t, 0.4, out.Meta["score"].(float64), 1e-9)
	assert.Equal(t, 3, out.Meta["buy_count"])
	assert.Equal(t, 2, out.Meta["sell_count"])

	assert.Contains(t, out.Reasons, "conflict penalty: 2 opposing votes, score scaled by 0.40")
}

func TestEvaluatePenaltySaturatesAtZero(t *testing.T) {
	// Four conflicts would scale by -0.2; the factor floors at zero instead
	// of flipping the score's sign.
	stubs := []detectors.Detector{}
	for _, name := range []string{"b1", "b2", "b3", "b4", "b5"} {
		stubs = append(stubs, stubVote(name, signal.ActionBuy, 0.9))
	}
	for _, name := range []string{"s1", "s2", "s3", "s4"} {
		stubs = append(stubs, stubVote(name, signal.ActionSell, 0.2))
	}
	r := newRegistry(t, stubs...)
	out, err := newEngine(r).Evaluate(shortWindow())
	require.NoError(t, err)

	assert.Equal(t, signal.ActionHold, out.Action)
	assert.Equal(t, 0.0, out.Meta["score"].(float64))
}

func TestEvaluateAllHold(t *testing.T) {
	r := newRegistry(t, stubHold("alpha"), stubHold("beta"))
	out, err := newEngine(r).Evaluate(shortWindow())
	require.NoError(t, err)

	assert.True(t, out.IsHold())
	assert.Contains(t, out.Reasons, "no signals detected")
	assert.True(t, out.HasTag("CONFLUENCE:HOLD"))
}

func TestEvaluateNoDetectors(t *testing.T) {
	out, err := newEngine(detectors.NewRegistry()).Evaluate(shortWindow())
	require.NoError(t, err)
	assert.True(t, out.IsHold())
	assert.Contains(t, out.Reasons, "no detectors enabled")
}

func TestEvaluateRegimeGateBlocks(t *testing.T) {
	// A long flat window defines the snapshot with ADX 0 and zero band
	// width; any directional vote is then filtered.
	r := newRegistry(t, stubVote("alpha", signal.ActionBuy, 0.9))
	out, err := newEngine(r).Evaluate(flatBars(120, 1000))
	require.NoError(t, err)

	assert.True(t, out.IsHold())
	assert.True(t, out.HasTag("CONFLUENCE:REGIME_FILTER"))

	snap, ok := out.Meta["regime_snapshot"].(RegimeSnapshot)
	require.True(t, ok)
	assert.True(t, snap.Defined)
	assert.Equal(t, RegimeFlat, snap.Label)
}

func TestEvaluateAllHoldSkipsRegimeGate(t *testing.T) {
	// Same flat window, but no directional votes: the engine reports a
	// quiet session, not a regime rejection.
	r := newRegistry(t, stubHold("alpha"))
	out, err := newEngine(r).Evaluate(flatBars(120, 1000))
	require.NoError(t, err)

	assert.True(t, out.IsHold())
	assert.False(t, out.HasTag("CONFLUENCE:REGIME_FILTER"))
	assert.Contains(t, out.Reasons, "no signals detected")
}

func TestEvaluateInvariantViolation(t *testing.T) {
	rogue := stubDetector{name: "rogue", emit: func(ts time.Time) signal.Signal {
		return signal.Signal{Action: "LONG", Confidence: 0.5, Timestamp: ts}
	}}
	r := newRegistry(t, rogue)

	_, err := newEngine(r).Evaluate(shortWindow())
	require.Error(t, err)

	var iv *InvariantViolationError
	require.True(t, errors.As(err, &iv))
	assert.Equal(t, "rogue", iv.Detector)
}

func TestEvaluateDeterministic(t *testing.T) {
	r := newRegistry(t,
		stubVote("alpha", signal.ActionBuy, 0.6, "CLASSIC:A"),
		stubVote("beta", signal.ActionSell, 0.2, "CLASSIC:B"),
	)
	e := newEngine(r)
	window := shortWindow()

	first, err := e.Evaluate(window)
	require.NoError(t, err)
	second, err := e.Evaluate(window)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluateVolumeRejectionCarriesTags(t *testing.T) {
	r := newRegistry(t, stubVote("alpha", signal.ActionBuy, 0.9, "CLASSIC:A"))

	// Constant baseline with a volume collapse on the signal bar.
	window := flatBars(50, 1000)
	window[len(window)-1].Volume = 100

	filter := volumefilter.New(volumefilter.DefaultConfig())
	e := New(DefaultConfig(), r, filter, zerolog.Nop())

	out, err := e.Evaluate(window)
	require.NoError(t, err)

	assert.True(t, out.IsHold())
	assert.Contains(t, out.Reasons, "no signals detected")
	assert.True(t, out.HasTag(volumefilter.TagRejected))
	assert.True(t, out.HasTag("CLASSIC:A"), "vetoed detector tags survive for audit")
}

func TestEvaluateWeightMultipliers(t *testing.T) {
	r := newRegistry(t, stubVote("alpha", signal.ActionBuy, 0.3))
	e := newEngine(r)

	out, err := e.Evaluate(shortWindow())
	require.NoError(t, err)
	assert.True(t, out.IsHold(), "0.3 alone is below the buy threshold")

	e.SetMarketContext(map[string]string{"regime": "BULLISH"}, map[string]float64{"alpha": 2.0})
	out, err = e.Evaluate(shortWindow())
	require.NoError(t, err)
	assert.Equal(t, signal.ActionBuy, out.Action)
	assert.InDelta(t, 0.6, out.Meta["score"].(float64), 1e-9)
	assert.NotNil(t, out.Meta["ctx"])
}

func TestLegacyModes(t *testing.T) {
	window := shortWindow()

	t.Run("all unanimous", func(t *testing.T) {
		r := newRegistry(t,
			stubVote("a", signal.ActionBuy, 0.9),
			stubVote("b", signal.ActionBuy, 0.6),
		)
		cfg := DefaultConfig()
		cfg.Mode = ModeAll
		out, err := New(cfg, r, nil, zerolog.Nop()).Evaluate(window)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionBuy, out.Action)
		assert.Equal(t, 0.6, out.Confidence, "unanimous vote carries the weakest confidence")
	})

	t.Run("all broken by hold", func(t *testing.T) {
		r := newRegistry(t,
			stubVote("a", signal.ActionBuy, 0.9),
			stubHold("b"),
		)
		cfg := DefaultConfig()
		cfg.Mode = ModeAll
		out, err := New(cfg, r, nil, zerolog.Nop()).Evaluate(window)
		require.NoError(t, err)
		assert.True(t, out.IsHold())
	})

	t.Run("any strongest", func(t *testing.T) {
		r := newRegistry(t,
			stubVote("a", signal.ActionBuy, 0.4),
			stubVote("b", signal.ActionSell, 0.9),
		)
		cfg := DefaultConfig()
		cfg.Mode = ModeAny
		out, err := New(cfg, r, nil, zerolog.Nop()).Evaluate(window)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionSell, out.Action)
		assert.Equal(t, 0.9, out.Confidence)
	})

	t.Run("majority strict", func(t *testing.T) {
		r := newRegistry(t,
			stubVote("a", signal.ActionBuy, 0.5),
			stubVote("b", signal.ActionBuy, 0.5),
			stubVote("c", signal.ActionSell, 0.5),
		)
		cfg := DefaultConfig()
		cfg.Mode = ModeMajority
		out, err := New(cfg, r, nil, zerolog.Nop()).Evaluate(window)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionBuy, out.Action)
	})

	t.Run("majority not reached", func(t *testing.T) {
		r := newRegistry(t,
			stubVote("a", signal.ActionBuy, 0.5),
			stubVote("b", signal.ActionSell, 0.5),
		)
		cfg := DefaultConfig()
		cfg.Mode = ModeMajority
		out, err := New(cfg, r, nil, zerolog.Nop()).Evaluate(window)
		require.NoError(t, err)
		assert.True(t, out.IsHold())
	})

	t.Run("weighted by sign", func(t *testing.T) {
		r := detectors.NewRegistry()
		require.NoError(t, r.Register(stubVote("a", signal.ActionBuy, 0.5), 1.0))
		require.NoError(t, r.Register(stubVote("b", signal.ActionSell, 0.5), 3.0))
		cfg := DefaultConfig()
		cfg.Mode = ModeWeighted
		out, err := New(cfg, r, nil, zerolog.Nop()).Evaluate(window)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionSell, out.Action)
		assert.InDelta(t, 0.5, out.Confidence, 1e-9) // |1-3| / 4
	})
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"ENGINE", "ALL", "ANY", "MAJORITY", "WEIGHTED"} {
		m, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), m)
	}
	_, err := ParseMode("majority")
	assert.Error(t, err)
}
