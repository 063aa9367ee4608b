package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quantbay/confluence-bot/internal/backtest"
	"github.com/quantbay/confluence-bot/internal/volumefilter"
)

func sampleReport() *backtest.Report {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &backtest.Report{
		Symbol:         "BTCUSDT",
		Interval:       "1h",
		Start:          start,
		End:            start.Add(200 * time.Hour),
		Bars:           200,
		InitialCapital: 10000,
		FinalCapital:   10500,
		PeakCapital:    10600,
		TotalReturnPct: 5,
		MaxDrawdownPct: 2.1,
		TotalTrades:    2,
		WinningTrades:  1,
		LosingTrades:   1,
		WinRatePct:     50,
		ProfitFactor:   1.8,
		SharpeRatio:    1.2,
		Trades: []backtest.Trade{
			{
				Side: backtest.SideLong, EntryPrice: 100, ExitPrice: 110,
				EntryTime: start, ExitTime: start.Add(10 * time.Hour),
				Notional: 1000, PnL: 100, PnLPct: 10, ExitReason: backtest.ExitTakeProfit,
			},
			{
				Side: backtest.SideShort, EntryPrice: 110, ExitPrice: 112,
				EntryTime: start.Add(20 * time.Hour), ExitTime: start.Add(25 * time.Hour),
				Notional: 1000, PnL: -18, PnLPct: -1.8, ExitReason: backtest.ExitStopLoss,
			},
		},
		BarLog: []backtest.BarLogEntry{
			{Index: 50, Timestamp: start.Add(50 * time.Hour), Close: 100, Action: "BUY", Confidence: 0.8, Score: 0.8},
		},
		FilterStats: volumefilter.Stats{Received: 40, Rejected: 5, Boosted: 3, Passed: 32},
	}
}

func TestWriteConsole(t *testing.T) {
	var buf bytes.Buffer
	WriteConsole(&buf, sampleReport())

	out := buf.String()
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "Total Return")
	assert.Contains(t, out, "5.00%")
	assert.Contains(t, out, "Volume Gate Rejected")
	assert.Contains(t, out, string(backtest.SideLong))
}

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	report := sampleReport()
	require.NoError(t, WriteJSON(path, report))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded backtest.Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, report.Symbol, decoded.Symbol)
	assert.Equal(t, report.FinalCapital, decoded.FinalCapital)
	assert.Len(t, decoded.Trades, 2)
}

func TestWriteExcelSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteExcel(path, sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Summary", "Trades", "Bar Log"}, f.GetSheetList())

	symbol, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)

	side, err := f.GetCellValue("Trades", "B2")
	require.NoError(t, err)
	assert.Equal(t, string(backtest.SideLong), side)
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "BTCUSDT_1h"), DefaultOutputDir("btcusdt", "1H"))
	assert.Equal(t, filepath.Join("results", "UNKNOWN_unknown"), DefaultOutputDir("", ""))
}
