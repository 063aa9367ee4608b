// Package backtest replays a finite bar sequence through the decision
// pipeline with position-level PnL accounting. The driver owns the position
// state, the trade ledger and the per-bar audit log; the engine stays a pure
// function of the window.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/internal/engine"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/internal/volumefilter"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Exit reasons recorded on closed trades, in the order they are checked.
const (
	ExitStopLoss   = "STOP_LOSS"
	ExitTakeProfit = "TAKE_PROFIT"
	ExitReversal   = "SIGNAL_REVERSAL"
	ExitEndOfTest  = "END_OF_TEST"
)

// Config holds the backtest session parameters.
type Config struct {
	Symbol         string  `json:"symbol"`
	Interval       string  `json:"interval"`
	InitialCapital float64 `json:"initial_capital"`
	PositionPct    float64 `json:"position_pct"`     // fraction of capital per trade
	StopATRMult    float64 `json:"stop_atr_mult"`    // stop distance in ATRs
	TargetATRMult  float64 `json:"target_atr_mult"`  // take-profit distance in ATRs
	ATRPeriod      int     `json:"atr_period"`       // bars in the range estimate
	WarmupBars     int     `json:"warmup_bars"`      // bars skipped before the first evaluation
	WindowSize     int     `json:"window_size"`      // trailing window fed to the engine
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // guard threshold vs initial capital

	// Compound sizes new positions from current capital; when false every
	// trade risks the same fixed fraction of the initial capital.
	Compound bool `json:"compound"`
}

// DefaultConfig returns the reference backtest parameters: 10% notional per
// trade, 1.5 ATR stop, 2.5 ATR target, 50-bar warm-up.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		PositionPct:    0.10,
		StopATRMult:    1.5,
		TargetATRMult:  2.5,
		ATRPeriod:      14,
		WarmupBars:     50,
		WindowSize:     1000,
		MaxDrawdownPct: 0.5,
		Compound:       true,
	}
}

// Position is the driver's open exposure.
type Position struct {
	Side        Side          `json:"side"`
	EntryPrice  float64       `json:"entry_price"`
	EntryTime   time.Time     `json:"entry_time"`
	EntryIndex  int           `json:"entry_index"`
	StopLoss    float64       `json:"stop_loss"`
	TakeProfit  float64       `json:"take_profit"`
	Notional    float64       `json:"notional"`
	EntrySignal signal.Signal `json:"entry_signal"`
}

// Trade is one closed round trip in the ledger. EntrySignal is the engine
// output that opened it; CapitalAfter is the capital once the trade settled.
type Trade struct {
	Side         Side          `json:"side"`
	EntryPrice   float64       `json:"entry_price"`
	ExitPrice    float64       `json:"exit_price"`
	EntryTime    time.Time     `json:"entry_time"`
	ExitTime     time.Time     `json:"exit_time"`
	EntryIndex   int           `json:"entry_index"`
	ExitIndex    int           `json:"exit_index"`
	Notional     float64       `json:"notional"`
	PnL          float64       `json:"pnl"`
	PnLPct       float64       `json:"pnl_pct"`
	ExitReason   string        `json:"exit_reason"`
	CapitalAfter float64       `json:"capital_after"`
	EntrySignal  signal.Signal `json:"entry_signal"`
}

// BarLogEntry is one line of the per-bar audit log.
type BarLogEntry struct {
	Index       int       `json:"index"`
	Timestamp   time.Time `json:"timestamp"`
	Close       float64   `json:"close"`
	Action      string    `json:"action"`
	Confidence  float64   `json:"confidence"`
	Score       float64   `json:"score"`
	Reasons     []string  `json:"reasons,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Regime      string    `json:"regime,omitempty"`
	BuyCount    int       `json:"buy_count"`
	SellCount   int       `json:"sell_count"`
	SignalCount int       `json:"signal_count"`

	TradeAction string  `json:"trade_action,omitempty"`
	EntryPrice  float64 `json:"entry_price,omitempty"`
	ExitPrice   float64 `json:"exit_price,omitempty"`
	ExitReason  string  `json:"exit_reason,omitempty"`
	PnL         float64 `json:"pnl,omitempty"`
	PnLPct      float64 `json:"pnl_pct,omitempty"`
}

// Report is the backtest result: capital trajectory summary, trade ledger
// and audit log.
type Report struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Bars     int       `json:"bars"`

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	PeakCapital    float64 `json:"peak_capital"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRatePct    float64 `json:"win_rate_pct"`
	TotalPnL      float64 `json:"total_pnl"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"` // mean PnL of losing trades, non-positive
	ProfitFactor  float64 `json:"profit_factor"`
	SharpeRatio   float64 `json:"sharpe_ratio"`

	GuardTripped   bool `json:"guard_tripped"`
	GuardTrippedAt int  `json:"guard_tripped_at,omitempty"`

	Trades      []Trade            `json:"trades"`
	BarLog      []BarLogEntry      `json:"bar_log"`
	FilterStats volumefilter.Stats `json:"filter_stats"`
}

// Driver replays bars through the engine and keeps the books.
type Driver struct {
	cfg    Config
	engine *engine.Engine
	filter *volumefilter.Filter
	log    zerolog.Logger

	capital      float64
	peakCapital  float64
	maxDrawdown  float64
	position     *Position
	guardTripped bool
	guardIndex   int
	trades       []Trade
	barLog       []BarLogEntry
}

// New creates a backtest driver. The filter is the same instance wired into
// the engine; it is only consulted here for its session stats.
func New(cfg Config, eng *engine.Engine, filter *volumefilter.Filter, log zerolog.Logger) *Driver {
	return &Driver{
		cfg:    cfg,
		engine: eng,
		filter: filter,
		log:    log,
	}
}

// Run replays the bar sequence and returns the report. The sequence must
// reach past the warm-up period.
func (d *Driver) Run(bars []types.OHLCV) (*Report, error) {
	if len(bars) <= d.cfg.WarmupBars {
		return nil, fmt.Errorf("backtest: %d bars does not cover the %d-bar warm-up", len(bars), d.cfg.WarmupBars)
	}

	d.capital = d.cfg.InitialCapital
	d.peakCapital = d.cfg.InitialCapital
	d.maxDrawdown = 0
	d.position = nil
	d.guardTripped = false
	d.trades = nil
	d.barLog = nil

	for i := d.cfg.WarmupBars; i < len(bars); i++ {
		window := bars[:i+1]
		if d.cfg.WindowSize > 0 && len(window) > d.cfg.WindowSize {
			window = window[len(window)-d.cfg.WindowSize:]
		}

		out, err := d.engine.Evaluate(window)
		if err != nil {
			return nil, err
		}

		entry := newLogEntry(i, bars[i], out)
		d.step(i, bars, out, &entry)
		d.updateDrawdown(i)
		d.barLog = append(d.barLog, entry)
	}

	if d.position != nil {
		last := len(bars) - 1
		d.closePosition(last, bars[last], bars[last].Close, ExitEndOfTest, &d.barLog[len(d.barLog)-1])
	}

	return d.buildReport(bars), nil
}

// atrEstimate is the coarse range measure used for stop and target sizing:
// the mean high-low range over the trailing period, or the current bar's
// range during the earliest bars.
func (d *Driver) atrEstimate(bars []types.OHLCV, i int) float64 {
	period := d.cfg.ATRPeriod
	if i < period {
		return bars[i].High - bars[i].Low
	}
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += bars[j].High - bars[j].Low
	}
	return sum / float64(period)
}

// step applies one bar's position management: exits for an open position,
// entries otherwise.
func (d *Driver) step(i int, bars []types.OHLCV, out signal.Signal, entry *BarLogEntry) {
	bar := bars[i]

	if d.position != nil {
		d.manageExit(i, bar, out, entry)
		return
	}

	if d.guardTripped {
		return
	}

	switch out.Action {
	case signal.ActionBuy:
		d.openPosition(i, bar, SideLong, bars, out, entry)
	case signal.ActionSell:
		d.openPosition(i, bar, SideShort, bars, out, entry)
	}
}

func (d *Driver) openPosition(i int, bar types.OHLCV, side Side, bars []types.OHLCV, out signal.Signal, entry *BarLogEntry) {
	atr := d.atrEstimate(bars, i)
	base := d.capital
	if !d.cfg.Compound {
		base = d.cfg.InitialCapital
	}
	pos := &Position{
		Side:        side,
		EntryPrice:  bar.Close,
		EntryTime:   bar.Timestamp,
		EntryIndex:  i,
		Notional:    base * d.cfg.PositionPct,
		EntrySignal: out,
	}
	if side == SideLong {
		pos.StopLoss = bar.Close - d.cfg.StopATRMult*atr
		pos.TakeProfit = bar.Close + d.cfg.TargetATRMult*atr
	} else {
		pos.StopLoss = bar.Close + d.cfg.StopATRMult*atr
		pos.TakeProfit = bar.Close - d.cfg.TargetATRMult*atr
	}
	d.position = pos

	entry.TradeAction = "OPEN_" + string(side)
	entry.EntryPrice = bar.Close

	d.log.Debug().
		Int("bar", i).
		Str("side", string(side)).
		Float64("entry", bar.Close).
		Float64("stop", pos.StopLoss).
		Float64("target", pos.TakeProfit).
		Msg("position opened")
}

// manageExit checks the single-exit priority: stop first, then target, then
// signal reversal at the close.
func (d *Driver) manageExit(i int, bar types.OHLCV, out signal.Signal, entry *BarLogEntry) {
	pos := d.position
	if pos.Side == SideLong {
		switch {
		case bar.Low <= pos.StopLoss:
			d.closePosition(i, bar, pos.StopLoss, ExitStopLoss, entry)
		case bar.High >= pos.TakeProfit:
			d.closePosition(i, bar, pos.TakeProfit, ExitTakeProfit, entry)
		case out.Action == signal.ActionSell:
			d.closePosition(i, bar, bar.Close, ExitReversal, entry)
		}
		return
	}
	switch {
	case bar.High >= pos.StopLoss:
		d.closePosition(i, bar, pos.StopLoss, ExitStopLoss, entry)
	case bar.Low <= pos.TakeProfit:
		d.closePosition(i, bar, pos.TakeProfit, ExitTakeProfit, entry)
	case out.Action == signal.ActionBuy:
		d.closePosition(i, bar, bar.Close, ExitReversal, entry)
	}
}

func (d *Driver) closePosition(i int, bar types.OHLCV, exitPrice float64, reason string, entry *BarLogEntry) {
	pos := d.position
	var pnl float64
	if pos.Side == SideLong {
		pnl = (exitPrice - pos.EntryPrice) * pos.Notional / pos.EntryPrice
	} else {
		pnl = (pos.EntryPrice - exitPrice) * pos.Notional / pos.EntryPrice
	}
	pnlPct := 0.0
	if pos.Notional != 0 {
		pnlPct = pnl / pos.Notional * 100
	}

	d.capital += pnl
	trade := Trade{
		Side:         pos.Side,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    exitPrice,
		EntryTime:    pos.EntryTime,
		ExitTime:     bar.Timestamp,
		EntryIndex:   pos.EntryIndex,
		ExitIndex:    i,
		Notional:     pos.Notional,
		PnL:          pnl,
		PnLPct:       pnlPct,
		ExitReason:   reason,
		CapitalAfter: d.capital,
		EntrySignal:  pos.EntrySignal,
	}
	d.trades = append(d.trades, trade)
	d.position = nil

	entry.TradeAction = "CLOSE_" + string(pos.Side)
	entry.ExitPrice = exitPrice
	entry.ExitReason = reason
	entry.PnL = pnl
	entry.PnLPct = pnlPct

	d.log.Debug().
		Int("bar", i).
		Str("side", string(pos.Side)).
		Str("reason", reason).
		Float64("pnl", pnl).
		Float64("capital", d.capital).
		Msg("position closed")
}

// updateDrawdown maintains the capital peak and trips the drawdown guard.
// The guard blocks new entries only; open positions still run to their exit.
func (d *Driver) updateDrawdown(i int) {
	if d.capital > d.peakCapital {
		d.peakCapital = d.capital
	}
	if d.peakCapital > 0 {
		dd := (d.peakCapital - d.capital) / d.peakCapital
		if dd > d.maxDrawdown {
			d.maxDrawdown = dd
		}
	}

	if d.guardTripped || d.cfg.InitialCapital <= 0 {
		return
	}
	if (d.peakCapital-d.capital)/d.cfg.InitialCapital > d.cfg.MaxDrawdownPct {
		d.guardTripped = true
		d.guardIndex = i
		d.log.Warn().
			Int("bar", i).
			Float64("capital", d.capital).
			Float64("peak", d.peakCapital).
			Msg("drawdown guard tripped, no new entries")
	}
}

func (d *Driver) buildReport(bars []types.OHLCV) *Report {
	r := &Report{
		Symbol:         d.cfg.Symbol,
		Interval:       d.cfg.Interval,
		Start:          bars[0].Timestamp,
		End:            bars[len(bars)-1].Timestamp,
		Bars:           len(bars),
		InitialCapital: d.cfg.InitialCapital,
		FinalCapital:   d.capital,
		PeakCapital:    d.peakCapital,
		MaxDrawdownPct: d.maxDrawdown * 100,
		TotalTrades:    len(d.trades),
		GuardTripped:   d.guardTripped,
		GuardTrippedAt: d.guardIndex,
		Trades:         d.trades,
		BarLog:         d.barLog,
	}
	if d.cfg.InitialCapital != 0 {
		r.TotalReturnPct = (d.capital - d.cfg.InitialCapital) / d.cfg.InitialCapital * 100
	}
	if d.filter != nil {
		r.FilterStats = d.filter.Stats()
	}

	grossProfit, grossLoss := 0.0, 0.0
	for _, trade := range d.trades {
		r.TotalPnL += trade.PnL
		if trade.PnL > 0 {
			r.WinningTrades++
			grossProfit += trade.PnL
		} else if trade.PnL < 0 {
			r.LosingTrades++
			grossLoss += -trade.PnL
		}
	}
	if r.TotalTrades > 0 {
		r.WinRatePct = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}
	if r.WinningTrades > 0 {
		r.AvgWin = grossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = -grossLoss / float64(r.LosingTrades)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		r.ProfitFactor = math.Inf(1)
	}
	r.SharpeRatio = sharpeFromTrades(d.trades)
	return r
}

// sharpeFromTrades is a per-trade Sharpe proxy: mean over standard deviation
// of trade returns, scaled by sqrt(n). Fewer than two trades, or zero
// variance, yields zero.
func sharpeFromTrades(trades []Trade) float64 {
	if len(trades) < 2 {
		return 0
	}
	mean := 0.0
	for _, t := range trades {
		mean += t.PnLPct
	}
	mean /= float64(len(trades))

	variance := 0.0
	for _, t := range trades {
		d := t.PnLPct - mean
		variance += d * d
	}
	variance /= float64(len(trades))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(float64(len(trades)))
}

func newLogEntry(i int, bar types.OHLCV, out signal.Signal) BarLogEntry {
	entry := BarLogEntry{
		Index:      i,
		Timestamp:  bar.Timestamp,
		Close:      bar.Close,
		Action:     string(out.Action),
		Confidence: out.Confidence,
		Reasons:    out.Reasons,
		Tags:       out.Tags,
	}
	if score, ok := out.Meta["score"].(float64); ok {
		entry.Score = score
	}
	if snap, ok := out.Meta["regime_snapshot"].(engine.RegimeSnapshot); ok {
		entry.Regime = snap.Label
	}
	if n, ok := out.Meta["buy_count"].(int); ok {
		entry.BuyCount = n
	}
	if n, ok := out.Meta["sell_count"].(int); ok {
		entry.SellCount = n
	}
	if n, ok := out.Meta["signal_count"].(int); ok {
		entry.SignalCount = n
	}
	return entry
}
