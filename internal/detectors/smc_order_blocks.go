package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// OrderBlocksConfig holds the order-block detector parameters.
type OrderBlocksConfig struct {
	Lookback        int     // bars scanned for displacement legs
	MinDisplacement float64 // leg size qualifying the block, as a fraction of price
	MinRange        float64 // minimum block height, absolute
}

// DefaultOrderBlocksConfig returns a 40-bar scan with a 0.5% displacement
// requirement.
func DefaultOrderBlocksConfig() OrderBlocksConfig {
	return OrderBlocksConfig{Lookback: 40, MinDisplacement: 0.005, MinRange: 0}
}

// OrderBlocks finds the last opposing candle before a displacement leg and
// signals when price revisits that zone. A first touch is FRESH and carries
// higher confidence than a MITIGATED (previously tested) block.
type OrderBlocks struct {
	cfg OrderBlocksConfig
}

func NewOrderBlocks(cfg OrderBlocksConfig) *OrderBlocks {
	return &OrderBlocks{cfg: cfg}
}

func (d *OrderBlocks) GetName() string { return "smc_order_blocks" }

func (d *OrderBlocks) GetRequiredPeriods() int { return d.cfg.Lookback + 5 }

type orderBlock struct {
	low, high float64
	index     int
	bullish   bool
}

func (d *OrderBlocks) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	window := data[len(data)-d.cfg.Lookback-1 : len(data)-1]
	block, ok := d.latestBlock(window)
	ts := lastTimestamp(data)
	if !ok {
		return signal.NewHold(ts, "no qualifying order block")
	}

	bar := data[len(data)-1]
	inside := bar.Low <= block.high && bar.High >= block.low
	if !inside {
		return signal.NewHold(ts, "price away from order block")
	}

	// The displacement candle itself always overlaps the block, so the
	// mitigation scan starts after it.
	status := "FRESH"
	for i := block.index + 2; i < len(window); i++ {
		if window[i].Low <= block.high && window[i].High >= block.low {
			status = "MITIGATED"
			break
		}
	}

	conf := 0.6
	if status == "MITIGATED" {
		conf = 0.4
	}

	if block.bullish {
		s := signal.New(signal.ActionBuy, conf, ts)
		s.AddReason("price revisiting %s bullish order block %.4f-%.4f", status, block.low, block.high)
		s.AddTag("SMC:ORDER_BLOCK_BULL")
		s.SetMeta("ob_status", status)
		s.SetMeta("ob_low", block.low)
		s.SetMeta("ob_high", block.high)
		return s
	}
	s := signal.New(signal.ActionSell, conf, ts)
	s.AddReason("price revisiting %s bearish order block %.4f-%.4f", status, block.low, block.high)
	s.AddTag("SMC:ORDER_BLOCK_BEAR")
	s.SetMeta("ob_status", status)
	s.SetMeta("ob_low", block.low)
	s.SetMeta("ob_high", block.high)
	return s
}

// latestBlock scans for the most recent opposing candle directly preceding a
// displacement leg.
func (d *OrderBlocks) latestBlock(window []types.OHLCV) (orderBlock, bool) {
	for i := len(window) - 2; i > 0; i-- {
		candle := window[i-1]
		next := window[i]
		if candle.Close == 0 {
			continue
		}
		if math.Abs(candle.High-candle.Low) < d.cfg.MinRange {
			continue
		}
		leg := (next.Close - next.Open) / candle.Close

		// Bullish block: last down candle before an up displacement.
		if candle.Close < candle.Open && leg >= d.cfg.MinDisplacement {
			return orderBlock{low: candle.Low, high: candle.High, index: i - 1, bullish: true}, true
		}
		// Bearish block: last up candle before a down displacement.
		if candle.Close > candle.Open && -leg >= d.cfg.MinDisplacement {
			return orderBlock{low: candle.Low, high: candle.High, index: i - 1, bullish: false}, true
		}
	}
	return orderBlock{}, false
}
