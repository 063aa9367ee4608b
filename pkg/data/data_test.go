package data

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbay/confluence-bot/pkg/types"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCSVProviderFetchBars(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BTCUSDT_1h.csv",
		"timestamp,open,high,low,close,volume\n"+
			"1704067200000,100,101,99,100.5,1000\n"+
			"1704070800000,100.5,102,100,101.5,1100\n"+
			"1704074400000,101.5,103,101,102.5,1200\n")

	p := NewCSVProvider(dir, zerolog.Nop())
	bars, err := p.FetchBars(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.UnixMilli(1704067200000).UTC(), bars[0].Timestamp)
	assert.Equal(t, 102.5, bars[2].Close)
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
}

func TestCSVProviderSortsOutOfOrderRows(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BTCUSDT_1h.csv",
		"timestamp,open,high,low,close,volume\n"+
			"1704074400000,101.5,103,101,102.5,1200\n"+
			"1704067200000,100,101,99,100.5,1000\n")

	p := NewCSVProvider(dir, zerolog.Nop())
	bars, err := p.FetchBars(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
}

func TestCSVProviderSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BTCUSDT_1h.csv",
		"timestamp,open,high,low,close,volume\n"+
			"1704067200000,100,101,99,100.5,1000\n"+
			"not-a-timestamp,100,101,99,100.5,1000\n"+
			"1704070800000,100,99,101,100.5,1000\n"+ // high below low
			"1704074400000,-5,101,99,100.5,1000\n"+ // negative price
			"1704078000000,101,102,100,101.5,1100\n")

	p := NewCSVProvider(dir, zerolog.Nop())
	bars, err := p.FetchBars(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestCSVProviderBoundsAndLimit(t *testing.T) {
	dir := t.TempDir()
	content := "timestamp,open,high,low,close,volume\n"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		content += strconv.FormatInt(ts.UnixMilli(), 10) + ",100,101,99,100.5,1000\n"
	}
	writeCSV(t, dir, "ETHUSDT_1h.csv", content)

	p := NewCSVProvider(dir, zerolog.Nop())

	bars, err := p.FetchBars(context.Background(), "ETHUSDT", "1h", base.Add(2*time.Hour), base.Add(7*time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, bars, 6)
	assert.Equal(t, base.Add(2*time.Hour), bars[0].Timestamp)

	// Limit keeps the newest bars.
	bars, err = p.FetchBars(context.Background(), "ETHUSDT", "1h", time.Time{}, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, base.Add(9*time.Hour), bars[2].Timestamp)
}

func TestCSVProviderMissingFile(t *testing.T) {
	p := NewCSVProvider(t.TempDir(), zerolog.Nop())
	_, err := p.FetchBars(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{}, 0)
	assert.Error(t, err)
}

// countingProvider records how many times it was asked for data.
type countingProvider struct {
	calls int
	bars  []types.OHLCV
}

func (p *countingProvider) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]types.OHLCV, error) {
	p.calls++
	return p.bars, nil
}

func TestCachedProviderServesFromCache(t *testing.T) {
	inner := &countingProvider{bars: []types.OHLCV{{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
	}}}
	cached := NewCachedProvider(inner)

	first, err := cached.FetchBars(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	second, err := cached.FetchBars(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cached.Size())

	// Mutating a returned slice must not poison later reads.
	second[0].Close = -1
	third, err := cached.FetchBars(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.5, third[0].Close)

	// A different query misses the cache.
	_, err = cached.FetchBars(context.Background(), "ETHUSDT", "1h", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	cached.Clear()
	assert.Equal(t, 0, cached.Size())
}
