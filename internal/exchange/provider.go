// Package exchange adapts external market data sources to the decision
// pipeline: a REST adapter for historical candles and a websocket stream for
// live bars. Transport failures are wrapped so callers can retry without
// string-matching errors.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantbay/confluence-bot/pkg/types"
)

// DataProvider serves historical candle batches. Implementations must return
// bars in ascending timestamp order.
type DataProvider interface {
	// FetchBars returns up to limit bars for the symbol and interval,
	// newest bar last. A zero start or end leaves that bound open.
	FetchBars(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]types.OHLCV, error)
}

// StreamProvider serves a live bar event stream.
type StreamProvider interface {
	// StreamBars emits bar events until the context is cancelled. The
	// returned channel is closed when the stream shuts down for good.
	StreamBars(ctx context.Context, symbol, interval string) (<-chan types.BarEvent, error)
}

// TransportError wraps a network or upstream API failure. These are
// retryable by policy; everything else coming out of a provider is not.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
