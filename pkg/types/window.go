package types

// DefaultWindowSize bounds the trailing candle window held by the drivers.
const DefaultWindowSize = 1000

// CandleWindow is an ordered trailing sequence of bars with a fixed maximum
// length. New closed bars append and evict the oldest entry once the window is
// full; a forming bar with the same timestamp as the last entry replaces it in
// place. The window is owned by a single driver and handed to detectors as a
// read-only slice.
type CandleWindow struct {
	bars    []OHLCV
	maxSize int
}

// NewCandleWindow creates an empty window. A non-positive maxSize falls back
// to DefaultWindowSize.
func NewCandleWindow(maxSize int) *CandleWindow {
	if maxSize <= 0 {
		maxSize = DefaultWindowSize
	}
	return &CandleWindow{
		bars:    make([]OHLCV, 0, maxSize),
		maxSize: maxSize,
	}
}

// Push adds a bar to the window. A bar whose timestamp equals the last entry's
// replaces it (mid-bar update); otherwise the bar is appended and the oldest
// entry is dropped when the window is full.
func (w *CandleWindow) Push(bar OHLCV) {
	n := len(w.bars)
	if n > 0 && w.bars[n-1].Timestamp.Equal(bar.Timestamp) {
		w.bars[n-1] = bar
		return
	}
	if n == w.maxSize {
		copy(w.bars, w.bars[1:])
		w.bars[n-1] = bar
		return
	}
	w.bars = append(w.bars, bar)
}

// Bars returns the window contents, oldest first. Callers must not mutate the
// returned slice.
func (w *CandleWindow) Bars() []OHLCV {
	return w.bars
}

// Len returns the number of bars currently held.
func (w *CandleWindow) Len() int {
	return len(w.bars)
}

// Last returns the most recent bar, or false when the window is empty.
func (w *CandleWindow) Last() (OHLCV, bool) {
	if len(w.bars) == 0 {
		return OHLCV{}, false
	}
	return w.bars[len(w.bars)-1], true
}

// Seed replaces the window contents with a historical batch, keeping at most
// the trailing maxSize bars.
func (w *CandleWindow) Seed(bars []OHLCV) {
	if len(bars) > w.maxSize {
		bars = bars[len(bars)-w.maxSize:]
	}
	w.bars = w.bars[:0]
	w.bars = append(w.bars, bars...)
}
