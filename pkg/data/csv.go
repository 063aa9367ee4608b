// Package data provides file-backed candle sources for backtesting: a CSV
// provider that satisfies the same contract as the live REST adapter, and an
// in-memory caching wrapper for repeated runs over the same dataset.
package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/pkg/types"
)

// ColumnMapping describes where each OHLCV field lives in a CSV row.
type ColumnMapping struct {
	Timestamp int
	Open      int
	High      int
	Low       int
	Close     int
	Volume    int

	// MinColumns is the shortest row accepted; shorter rows are skipped.
	MinColumns int

	// TimeLayout parses the timestamp column. Empty means unix
	// milliseconds.
	TimeLayout string

	HasHeader bool
}

// DefaultMapping matches exported exchange klines:
// timestamp_ms,open,high,low,close,volume.
var DefaultMapping = ColumnMapping{
	Timestamp: 0, Open: 1, High: 2, Low: 3, Close: 4, Volume: 5,
	MinColumns: 6,
	HasHeader:  true,
}

// CSVProvider loads historical candles from CSV files under a data
// directory, one file per symbol and interval.
type CSVProvider struct {
	dir     string
	mapping ColumnMapping
	log     zerolog.Logger
}

// NewCSVProvider creates a provider rooted at dir with the default column
// layout.
func NewCSVProvider(dir string, log zerolog.Logger) *CSVProvider {
	return &CSVProvider{dir: dir, mapping: DefaultMapping, log: log}
}

// NewCSVProviderWithMapping creates a provider with a custom column layout.
func NewCSVProviderWithMapping(dir string, mapping ColumnMapping, log zerolog.Logger) *CSVProvider {
	return &CSVProvider{dir: dir, mapping: mapping, log: log}
}

// Path returns the file the provider reads for a symbol and interval.
func (p *CSVProvider) Path(symbol, interval string) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s_%s.csv", symbol, interval))
}

// FetchBars loads the file for symbol and interval, keeps bars inside the
// [start, end] bounds and returns the newest limit of them, oldest first.
// Zero bounds are open; limit <= 0 means no cap.
func (p *CSVProvider) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]types.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := p.LoadFile(p.Path(symbol, interval))
	if err != nil {
		return nil, err
	}

	filtered := bars[:0]
	for _, bar := range bars {
		if !start.IsZero() && bar.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, bar)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// LoadFile reads and parses one CSV file. Malformed rows are logged and
// skipped; the result is sorted oldest first.
func (p *CSVProvider) LoadFile(path string) ([]types.OHLCV, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	line := 0
	if p.mapping.HasHeader {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("read csv header: %w", err)
		}
		line++
	}

	var bars []types.OHLCV
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line+1, err)
		}
		line++

		bar, err := p.parseRow(record)
		if err != nil {
			p.log.Warn().Str("file", filepath.Base(path)).Int("line", line).Err(err).Msg("skipping malformed row")
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no usable rows in %s", path)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

func (p *CSVProvider) parseRow(record []string) (types.OHLCV, error) {
	m := p.mapping
	if len(record) < m.MinColumns {
		return types.OHLCV{}, fmt.Errorf("expected %d columns, got %d", m.MinColumns, len(record))
	}

	ts, err := p.parseTimestamp(record[m.Timestamp])
	if err != nil {
		return types.OHLCV{}, err
	}

	fields := [5]float64{}
	for i, col := range [5]int{m.Open, m.High, m.Low, m.Close, m.Volume} {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("column %d: %w", col, err)
		}
		fields[i] = v
	}

	bar := types.OHLCV{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}
	if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
		return types.OHLCV{}, fmt.Errorf("non-positive price")
	}
	if bar.High < bar.Low || bar.High < bar.Open || bar.High < bar.Close ||
		bar.Low > bar.Open || bar.Low > bar.Close {
		return types.OHLCV{}, fmt.Errorf("inconsistent ohlc range")
	}
	return bar, nil
}

func (p *CSVProvider) parseTimestamp(s string) (time.Time, error) {
	if p.mapping.TimeLayout != "" {
		ts, err := time.Parse(p.mapping.TimeLayout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
		}
		return ts.UTC(), nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
