package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/quantbay/confluence-bot/internal/backtest"
)

// WriteExcel writes the report as a workbook with Summary, Trades and
// Bar Log sheets.
func WriteExcel(path string, report *backtest.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, report); err != nil {
		return err
	}
	if err := writeTradesSheet(f, report); err != nil {
		return err
	}
	if err := writeBarLogSheet(f, report); err != nil {
		return err
	}

	if err := ensureDir(path); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, report *backtest.Report) error {
	rows := [][]interface{}{
		{"Symbol", report.Symbol},
		{"Interval", report.Interval},
		{"Start", report.Start.Format("2006-01-02 15:04")},
		{"End", report.End.Format("2006-01-02 15:04")},
		{"Bars", report.Bars},
		{"Initial Capital", report.InitialCapital},
		{"Final Capital", report.FinalCapital},
		{"Peak Capital", report.PeakCapital},
		{"Total Return %", report.TotalReturnPct},
		{"Max Drawdown %", report.MaxDrawdownPct},
		{"Sharpe Ratio", report.SharpeRatio},
		{"Profit Factor", report.ProfitFactor},
		{"Total Trades", report.TotalTrades},
		{"Winning Trades", report.WinningTrades},
		{"Losing Trades", report.LosingTrades},
		{"Win Rate %", report.WinRatePct},
		{"Guard Tripped", report.GuardTripped},
		{"Volume Gate Received", report.FilterStats.Received},
		{"Volume Gate Rejected", report.FilterStats.Rejected},
		{"Volume Gate Boosted", report.FilterStats.Boosted},
		{"Volume Gate Passed", report.FilterStats.Passed},
	}
	for i, row := range rows {
		if err := setRow(f, "Summary", i+1, row); err != nil {
			return fmt.Errorf("write summary sheet: %w", err)
		}
	}
	return nil
}

func writeTradesSheet(f *excelize.File, report *backtest.Report) error {
	const sheet = "Trades"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create trades sheet: %w", err)
	}

	header := []interface{}{
		"#", "Side", "Entry Time", "Exit Time", "Entry Price", "Exit Price",
		"Notional", "PnL", "PnL %", "Exit Reason",
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return fmt.Errorf("write trades header: %w", err)
	}
	for i, trade := range report.Trades {
		row := []interface{}{
			i + 1,
			string(trade.Side),
			trade.EntryTime.Format("2006-01-02 15:04"),
			trade.ExitTime.Format("2006-01-02 15:04"),
			trade.EntryPrice,
			trade.ExitPrice,
			trade.Notional,
			trade.PnL,
			trade.PnLPct,
			trade.ExitReason,
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return fmt.Errorf("write trade row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeBarLogSheet(f *excelize.File, report *backtest.Report) error {
	const sheet = "Bar Log"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create bar log sheet: %w", err)
	}

	header := []interface{}{
		"Index", "Timestamp", "Close", "Action", "Confidence", "Score",
		"Regime", "Buy Votes", "Sell Votes", "Signals", "Trade Action", "PnL",
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return fmt.Errorf("write bar log header: %w", err)
	}
	for i, entry := range report.BarLog {
		row := []interface{}{
			entry.Index,
			entry.Timestamp.Format("2006-01-02 15:04"),
			entry.Close,
			entry.Action,
			entry.Confidence,
			entry.Score,
			entry.Regime,
			entry.BuyCount,
			entry.SellCount,
			entry.SignalCount,
			entry.TradeAction,
			entry.PnL,
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return fmt.Errorf("write bar log row %d: %w", i+1, err)
		}
	}
	return nil
}
