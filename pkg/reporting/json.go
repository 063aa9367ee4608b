package reporting

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/quantbay/confluence-bot/internal/backtest"
)

// WriteJSON dumps the full report, trade ledger and bar log included, as
// indented JSON. Parent directories are created as needed.
func WriteJSON(path string, report *backtest.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
