package driver

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbay/confluence-bot/internal/detectors"
	"github.com/quantbay/confluence-bot/internal/engine"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

var testBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// closeDetector votes by the last close: above 100 BUY, below 100 SELL,
// exactly 100 HOLD. Lets the tests steer the engine through bar data alone.
type closeDetector struct{}

func (closeDetector) GetName() string         { return "close_follow" }
func (closeDetector) GetRequiredPeriods() int { return 1 }

func (closeDetector) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) == 0 {
		return signal.NewHold(time.Time{}, "empty window")
	}
	last := data[len(data)-1]
	switch {
	case last.Close > 100:
		return signal.New(signal.ActionBuy, 0.9, last.Timestamp)
	case last.Close < 100:
		return signal.New(signal.ActionSell, 0.9, last.Timestamp)
	}
	return signal.NewHold(last.Timestamp, "at the pivot")
}

func barAt(ts time.Time, close float64) types.OHLCV {
	return types.OHLCV{
		Timestamp: ts,
		Open:      close, High: close + 0.1, Low: close - 0.1, Close: close,
		Volume: 1000,
	}
}

func newTestDriver(t *testing.T) (*RealTimeDriver, *[]signal.Signal) {
	t.Helper()
	r := detectors.NewRegistry()
	require.NoError(t, r.Register(closeDetector{}, 1.0))
	eng := engine.New(engine.DefaultConfig(), r, nil, zerolog.Nop())

	var emitted []signal.Signal
	d := New(eng, 100, func(s signal.Signal) {
		emitted = append(emitted, s)
	}, zerolog.Nop())
	return d, &emitted
}

func TestHandleBarEmitsOnStateChangeOnly(t *testing.T) {
	d, emitted := newTestDriver(t)

	require.NoError(t, d.HandleBar(barAt(testBase, 101)))               // BUY: first emission
	require.NoError(t, d.HandleBar(barAt(testBase.Add(time.Hour), 102))) // BUY again: silent
	require.NoError(t, d.HandleBar(barAt(testBase.Add(2*time.Hour), 99))) // SELL: second emission
	require.NoError(t, d.HandleBar(barAt(testBase.Add(3*time.Hour), 98))) // SELL again: silent

	require.Len(t, *emitted, 2)
	assert.Equal(t, signal.ActionBuy, (*emitted)[0].Action)
	assert.Equal(t, signal.ActionSell, (*emitted)[1].Action)

	snap := d.Snapshot()
	assert.Equal(t, int64(4), snap.Counters.BarsProcessed)
	assert.Equal(t, int64(2), snap.Counters.StateChanges)
	assert.Equal(t, int64(2), snap.Counters.BuySignals)
	assert.Equal(t, int64(2), snap.Counters.SellSignals)
}

func TestHandleBarHoldBeforeFirstEmissionIsSilent(t *testing.T) {
	d, emitted := newTestDriver(t)

	require.NoError(t, d.HandleBar(barAt(testBase, 100)))
	require.NoError(t, d.HandleBar(barAt(testBase.Add(time.Hour), 100)))
	assert.Empty(t, *emitted)

	snap := d.Snapshot()
	assert.Equal(t, int64(2), snap.Counters.HoldSignals)
	assert.Nil(t, snap.LastEmitted)
}

func TestHandleBarDropsDuplicateTimestamps(t *testing.T) {
	d, emitted := newTestDriver(t)

	ts := testBase
	require.NoError(t, d.HandleBar(barAt(ts, 101)))

	// Mid-bar updates share the timestamp and are dropped unevaluated.
	next := ts.Add(time.Hour)
	require.NoError(t, d.HandleBar(barAt(next, 101.5)))
	require.NoError(t, d.HandleBar(barAt(next, 101.7)))
	require.NoError(t, d.HandleBar(barAt(next, 101.9)))

	require.NoError(t, d.HandleBar(barAt(ts.Add(2*time.Hour), 99)))

	snap := d.Snapshot()
	assert.Equal(t, int64(3), snap.Counters.BarsProcessed)
	assert.Equal(t, int64(2), snap.Counters.Duplicates)
	require.Len(t, *emitted, 2) // one BUY, one SELL
}

func TestSeedSetsDuplicateGate(t *testing.T) {
	d, emitted := newTestDriver(t)

	history := []types.OHLCV{
		barAt(testBase, 101),
		barAt(testBase.Add(time.Hour), 102),
	}
	d.Seed(history)

	// Replay of the last seeded bar is a duplicate, not a decision.
	require.NoError(t, d.HandleBar(history[1]))
	assert.Empty(t, *emitted)
	assert.Equal(t, int64(1), d.Snapshot().Counters.Duplicates)
}

func TestRunDrainsChannelUntilClose(t *testing.T) {
	d, emitted := newTestDriver(t)

	events := make(chan types.BarEvent, DefaultQueueSize)
	events <- types.BarEvent{Bar: barAt(testBase, 101), IsClosed: true}
	events <- types.BarEvent{Bar: barAt(testBase.Add(time.Hour), 99), IsClosed: true}
	close(events)

	require.NoError(t, d.Run(context.Background(), events))
	assert.Len(t, *emitted, 2)
	assert.Equal(t, int64(2), d.Snapshot().Counters.BarsProcessed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d, _ := newTestDriver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan types.BarEvent)
	err := d.Run(ctx, events)
	assert.ErrorIs(t, err, context.Canceled)
}
