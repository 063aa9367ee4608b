package types

import "time"

// OHLCV is a single candle over a fixed interval.
type OHLCV struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// BarEvent is one message from a live kline stream. A forming bar may be
// delivered multiple times with the same timestamp until IsClosed is true.
type BarEvent struct {
	Bar      OHLCV
	IsClosed bool
}

// Ticker holds the latest traded price for a symbol.
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
