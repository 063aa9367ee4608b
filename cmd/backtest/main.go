// Command backtest replays historical candles through the confluence engine
// and prints the session report. Data comes from the Bybit REST API or from
// local CSV files, depending on the session config.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/internal/backtest"
	"github.com/quantbay/confluence-bot/internal/config"
	"github.com/quantbay/confluence-bot/internal/engine"
	"github.com/quantbay/confluence-bot/internal/exchange"
	"github.com/quantbay/confluence-bot/internal/logging"
	"github.com/quantbay/confluence-bot/internal/marketctx"
	"github.com/quantbay/confluence-bot/internal/volumefilter"
	"github.com/quantbay/confluence-bot/pkg/data"
	"github.com/quantbay/confluence-bot/pkg/reporting"
	"github.com/quantbay/confluence-bot/pkg/types"
)

func main() {
	var (
		configFile = flag.String("config", "", "session config file (e.g. btc_1h.json)")
		symbol     = flag.String("symbol", "", "override the configured symbol")
		interval   = flag.String("interval", "", "override the configured interval")
		mode       = flag.String("mode", "", "override the aggregation mode (ENGINE, ALL, ANY, MAJORITY, WEIGHTED)")
		barCount   = flag.Int("bars", 2000, "number of bars to replay")
		outputDir  = flag.String("output", "", "output directory (default results/<SYMBOL>_<interval>)")
		jsonOut    = flag.Bool("json", true, "write the full report as JSON")
		excelOut   = flag.Bool("excel", false, "write the report as an Excel workbook")
	)
	flag.Parse()

	cfg, err := loadSession(*configFile, *symbol, *interval, *mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.NewConsole(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bars, err := fetchBars(ctx, cfg, *barCount, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load candles")
	}
	log.Info().
		Str("symbol", cfg.Symbol).
		Str("interval", cfg.Interval).
		Int("bars", len(bars)).
		Msg("candles loaded")

	report, err := runBacktest(cfg, bars, log)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	reporting.WriteConsole(os.Stdout, report)

	dir := *outputDir
	if dir == "" {
		dir = reporting.DefaultOutputDir(cfg.Symbol, cfg.Interval)
	}
	if *jsonOut {
		path := filepath.Join(dir, "report.json")
		if err := reporting.WriteJSON(path, report); err != nil {
			log.Fatal().Err(err).Msg("failed to write json report")
		}
		log.Info().Str("path", path).Msg("json report written")
	}
	if *excelOut {
		path := filepath.Join(dir, "report.xlsx")
		if err := reporting.WriteExcel(path, report); err != nil {
			log.Fatal().Err(err).Msg("failed to write excel report")
		}
		log.Info().Str("path", path).Msg("excel report written")
	}
}

// loadSession reads the config file (or starts from defaults) and applies
// the command line overrides.
func loadSession(path, symbol, interval, mode string) (*config.SessionConfig, error) {
	var cfg *config.SessionConfig
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := config.Default()
		cfg = &def
	}

	if symbol != "" {
		cfg.Symbol = symbol
		cfg.Backtest.Symbol = symbol
	}
	if interval != "" {
		cfg.Interval = interval
		cfg.Backtest.Interval = interval
	}
	if mode != "" {
		cfg.Engine.Mode = engine.Mode(strings.ToUpper(mode))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fetchBars(ctx context.Context, cfg *config.SessionConfig, limit int, log zerolog.Logger) ([]types.OHLCV, error) {
	var provider exchange.DataProvider
	switch strings.ToLower(cfg.Exchange.Name) {
	case "csv":
		provider = data.NewCachedProvider(data.NewCSVProvider(cfg.Exchange.DataDir, log))
	default:
		creds := config.LoadCredentials()
		provider = exchange.NewBybitProvider(exchange.BybitConfig{
			APIKey:    creds.APIKey,
			APISecret: creds.APISecret,
			Category:  cfg.Exchange.Category,
			Testnet:   cfg.Exchange.Testnet,
		}, log)
	}
	return provider.FetchBars(ctx, cfg.Symbol, cfg.Interval, time.Time{}, time.Time{}, limit)
}

func runBacktest(cfg *config.SessionConfig, bars []types.OHLCV, log zerolog.Logger) (*backtest.Report, error) {
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}

	var filter *volumefilter.Filter
	if cfg.VolumeFilter != nil {
		filter = volumefilter.New(*cfg.VolumeFilter)
	}

	eng := engine.New(cfg.Engine, registry, filter, log)

	// Session-level market context biases detector weights before the run.
	analyzer := marketctx.NewAnalyzer(marketctx.DefaultConfig(), log)
	if mctx, err := analyzer.Analyze(bars); err == nil {
		eng.SetMarketContext(mctx, mctx.EffectiveMultipliers())
	} else {
		log.Warn().Err(err).Msg("market context unavailable, using base weights")
	}

	driver := backtest.New(cfg.Backtest, eng, filter, log)
	return driver.Run(bars)
}
