package reporting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantbay/confluence-bot/internal/backtest"
)

// maxConsoleTrades caps the trade ledger shown on the console; the full
// ledger lives in the JSON and Excel outputs.
const maxConsoleTrades = 20

// WriteConsole renders the report summary and recent trades as tables.
func WriteConsole(w io.Writer, report *backtest.Report) {
	writeSummaryTable(w, report)
	if len(report.Trades) > 0 {
		writeTradesTable(w, report)
	}
}

func writeSummaryTable(w io.Writer, report *backtest.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Backtest %s %s", report.Symbol, report.Interval))

	t.AppendRows([]table.Row{
		{"Bars", report.Bars},
		{"Period", fmt.Sprintf("%s - %s", report.Start.Format("2006-01-02"), report.End.Format("2006-01-02"))},
		{"Initial Capital", fmt.Sprintf("$%.2f", report.InitialCapital)},
		{"Final Capital", fmt.Sprintf("$%.2f", report.FinalCapital)},
		{"Total Return", fmt.Sprintf("%.2f%%", report.TotalReturnPct)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", report.MaxDrawdownPct)},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", report.SharpeRatio)},
		{"Profit Factor", fmt.Sprintf("%.2f", report.ProfitFactor)},
		{"Total Trades", report.TotalTrades},
		{"Win Rate", fmt.Sprintf("%.1f%% (%d/%d)", report.WinRatePct, report.WinningTrades, report.TotalTrades)},
	})

	stats := report.FilterStats
	if stats.Received > 0 {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Volume Gate Received", stats.Received},
			{"Volume Gate Rejected", stats.Rejected},
			{"Volume Gate Boosted", stats.Boosted},
			{"Volume Gate Passed", stats.Passed},
		})
	}

	if report.GuardTripped {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Drawdown Guard", fmt.Sprintf("tripped at bar %d", report.GuardTrippedAt)})
	}
	t.Render()
}

func writeTradesTable(w io.Writer, report *backtest.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Trades")
	t.AppendHeader(table.Row{"#", "Side", "Entry", "Exit", "Notional", "PnL", "PnL %", "Exit Reason"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "PnL", Align: text.AlignRight},
		{Name: "PnL %", Align: text.AlignRight},
	})

	trades := report.Trades
	skipped := 0
	if len(trades) > maxConsoleTrades {
		skipped = len(trades) - maxConsoleTrades
		trades = trades[skipped:]
	}
	for i, trade := range trades {
		t.AppendRow(table.Row{
			skipped + i + 1,
			trade.Side,
			fmt.Sprintf("%.4f", trade.EntryPrice),
			fmt.Sprintf("%.4f", trade.ExitPrice),
			fmt.Sprintf("$%.2f", trade.Notional),
			fmt.Sprintf("%+.2f", trade.PnL),
			fmt.Sprintf("%+.2f%%", trade.PnLPct),
			trade.ExitReason,
		})
	}
	if skipped > 0 {
		t.AppendFooter(table.Row{"", "", "", "", "", "", "", fmt.Sprintf("%d earlier trades omitted", skipped)})
	}
	t.Render()
}
