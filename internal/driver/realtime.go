// Package driver runs the decision pipeline over live bar events. One
// goroutine reads the stream, the driver evaluates synchronously per bar,
// and downstream consumers read the state through a read-write-locked
// snapshot. Emission is state-change-only: a steady stream of identical
// decisions produces exactly one callback.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/internal/engine"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// DefaultQueueSize is the recommended buffer for the bar event channel
// feeding Run. A full queue applies backpressure to the stream reader
// instead of dropping bars.
const DefaultQueueSize = 256

// Decision is the downstream callback invoked on every emitted state change.
type Decision func(signal.Signal)

// Counters aggregates the driver's session statistics.
type Counters struct {
	BarsProcessed int64 `json:"bars_processed"`
	Duplicates    int64 `json:"duplicates"`
	BuySignals    int64 `json:"buy_signals"`
	SellSignals   int64 `json:"sell_signals"`
	HoldSignals   int64 `json:"hold_signals"`
	StateChanges  int64 `json:"state_changes"`
}

// Snapshot is a consistent read of the driver state, safe to take while the
// driver is running.
type Snapshot struct {
	LastProcessed time.Time
	LastEmitted   *signal.Signal
	Counters      Counters
}

// RealTimeDriver owns the candle window and the emission state for a live
// session.
type RealTimeDriver struct {
	engine     *engine.Engine
	onDecision Decision
	log        zerolog.Logger

	mu            sync.RWMutex
	window        *types.CandleWindow
	lastProcessed time.Time
	lastEmitted   *signal.Signal
	counters      Counters
}

// New creates a driver around an engine. The window size bounds memory for
// unbounded streams; onDecision may be nil for a dry run.
func New(eng *engine.Engine, windowSize int, onDecision Decision, log zerolog.Logger) *RealTimeDriver {
	if windowSize <= 0 {
		windowSize = types.DefaultWindowSize
	}
	return &RealTimeDriver{
		engine:     eng,
		onDecision: onDecision,
		log:        log,
		window:     types.NewCandleWindow(windowSize),
	}
}

// Seed preloads the window with historical bars so detectors have their
// look-back before the first live bar arrives. The last seeded bar counts as
// processed for the duplicate gate.
func (d *RealTimeDriver) Seed(bars []types.OHLCV) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window.Seed(bars)
	if len(bars) > 0 {
		d.lastProcessed = bars[len(bars)-1].Timestamp
	}
}

// Run consumes bar events until the channel closes or the context is
// cancelled. The current bar's evaluation always completes before Run
// returns; counters are left consistent for a final Snapshot.
func (d *RealTimeDriver) Run(ctx context.Context, events <-chan types.BarEvent) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Info().
				Int64("bars", d.Snapshot().Counters.BarsProcessed).
				Msg("driver stopped")
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				d.log.Info().
					Int64("bars", d.Snapshot().Counters.BarsProcessed).
					Msg("bar stream closed")
				return nil
			}
			if err := d.HandleBar(event.Bar); err != nil {
				return err
			}
		}
	}
}

// HandleBar processes one bar event through the gate, the engine and the
// state-change test. Rate limiting is data-driven: a bar whose timestamp
// equals the last processed one is dropped, wall-clock time is never
// consulted.
func (d *RealTimeDriver) HandleBar(bar types.OHLCV) error {
	d.mu.Lock()
	if bar.Timestamp.Equal(d.lastProcessed) {
		d.counters.Duplicates++
		d.mu.Unlock()
		return nil
	}
	d.lastProcessed = bar.Timestamp
	d.window.Push(bar)
	window := d.window.Bars()
	d.mu.Unlock()

	out, err := d.engine.Evaluate(window)
	if err != nil {
		d.log.Error().Err(err).Time("bar", bar.Timestamp).Msg("evaluation failed")
		return err
	}

	d.mu.Lock()
	d.counters.BarsProcessed++
	switch out.Action {
	case signal.ActionBuy:
		d.counters.BuySignals++
	case signal.ActionSell:
		d.counters.SellSignals++
	default:
		d.counters.HoldSignals++
	}

	changed := d.isStateChange(out)
	if changed {
		d.counters.StateChanges++
		emitted := out
		d.lastEmitted = &emitted
	}
	callback := d.onDecision
	d.mu.Unlock()

	if changed {
		d.log.Info().
			Str("action", string(out.Action)).
			Float64("confidence", out.Confidence).
			Time("bar", bar.Timestamp).
			Msg("decision state change")
		if callback != nil {
			callback(out)
		}
	}
	return nil
}

// isStateChange implements the emission rule: with no prior emission, any
// directional signal is a change; afterwards, only an action flip is.
// Callers hold d.mu.
func (d *RealTimeDriver) isStateChange(s signal.Signal) bool {
	if d.lastEmitted == nil {
		return s.Action != signal.ActionHold
	}
	return s.Action != d.lastEmitted.Action
}

// Snapshot returns a consistent copy of the driver state.
func (d *RealTimeDriver) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := Snapshot{
		LastProcessed: d.lastProcessed,
		Counters:      d.counters,
	}
	if d.lastEmitted != nil {
		emitted := *d.lastEmitted
		snap.LastEmitted = &emitted
	}
	return snap
}
