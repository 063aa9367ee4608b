// Command live-bot runs the confluence engine against the live Bybit kline
// stream. It seeds the candle window from the REST API, then emits decision
// state changes to the log while serving Prometheus metrics and a health
// endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/internal/config"
	"github.com/quantbay/confluence-bot/internal/driver"
	"github.com/quantbay/confluence-bot/internal/engine"
	"github.com/quantbay/confluence-bot/internal/exchange"
	"github.com/quantbay/confluence-bot/internal/logging"
	"github.com/quantbay/confluence-bot/internal/marketctx"
	"github.com/quantbay/confluence-bot/internal/monitoring"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/internal/volumefilter"
	"github.com/quantbay/confluence-bot/pkg/types"
)

const seedBars = 300

func main() {
	var (
		configFile  = flag.String("config", "", "session config file (e.g. btc_1h.json)")
		symbol      = flag.String("symbol", "", "override the configured symbol")
		interval    = flag.String("interval", "", "override the configured interval")
		monitorAddr = flag.String("monitor", ":9090", "metrics and health listen address (empty disables)")
	)
	flag.Parse()

	cfg, err := loadSession(*configFile, *symbol, *interval)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, closeLog, err := logging.NewSession(cfg.LogLevel, cfg.Symbol, cfg.Interval)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := osignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *monitorAddr, log); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("live session failed")
	}
	log.Info().Msg("live session stopped")
}

func loadSession(path, symbol, interval string) (*config.SessionConfig, error) {
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
	}
	if interval != "" {
		cfg.Interval = interval
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.SessionConfig, monitorAddr string, log zerolog.Logger) error {
	creds := config.LoadCredentials()
	bybitCfg := exchange.BybitConfig{
		APIKey:    creds.APIKey,
		APISecret: creds.APISecret,
		Category:  cfg.Exchange.Category,
		Testnet:   cfg.Exchange.Testnet,
	}

	rest := exchange.NewBybitProvider(bybitCfg, log)
	seed, err := rest.FetchBars(ctx, cfg.Symbol, cfg.Interval, time.Time{}, time.Time{}, seedBars)
	if err != nil {
		return fmt.Errorf("seed history: %w", err)
	}
	log.Info().Int("bars", len(seed)).Msg("seeded candle window")

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}
	var filter *volumefilter.Filter
	if cfg.VolumeFilter != nil {
		filter = volumefilter.New(*cfg.VolumeFilter)
	}
	eng := engine.New(cfg.Engine, registry, filter, log)

	analyzer := marketctx.NewAnalyzer(marketctx.DefaultConfig(), log)
	if mctx, err := analyzer.Analyze(seed); err == nil {
		eng.SetMarketContext(mctx, mctx.EffectiveMultipliers())
	} else {
		log.Warn().Err(err).Msg("market context unavailable, using base weights")
	}

	health := monitoring.NewHealthChecker()
	onDecision := func(s signal.Signal) {
		score, _ := s.Meta["score"].(float64)
		action := string(s.Action)
		log.Info().
			Str("action", action).
			Float64("confidence", s.Confidence).
			Float64("score", score).
			Strs("reasons", s.Reasons).
			Msg("decision state change")
		monitoring.RecordSignal(cfg.Symbol, action, score)
		health.RecordAction(action)
	}

	rt := driver.New(eng, cfg.Backtest.WindowSize, onDecision, log)
	rt.Seed(seed)

	if monitorAddr != "" {
		go func() {
			if err := monitoring.Serve(ctx, monitorAddr, health, log); err != nil {
				log.Error().Err(err).Msg("monitoring server stopped")
			}
		}()
	}

	stream := exchange.NewBybitStream(exchange.StreamConfig{
		Category:    cfg.Exchange.Category,
		Testnet:     cfg.Exchange.Testnet,
		OnReconnect: func() { monitoring.RecordReconnect(cfg.Symbol) },
	}, log)
	events, err := stream.StreamBars(ctx, cfg.Symbol, cfg.Interval)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	health.SetConnected(true)
	defer health.SetConnected(false)

	// Closed bars only: intrabar updates would re-trigger detectors on a
	// candle that can still change.
	closed := make(chan types.BarEvent, driver.DefaultQueueSize)
	go func() {
		defer close(closed)
		for event := range events {
			if !event.IsClosed {
				continue
			}
			monitoring.RecordBar(cfg.Symbol, event.Bar.Close)
			health.RecordBar(event.Bar.Timestamp)
			if filter != nil {
				stats := filter.Stats()
				monitoring.UpdateFilterStats(stats.Received, stats.Rejected, stats.Boosted, stats.Passed)
			}
			select {
			case closed <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	err = rt.Run(ctx, closed)
	if err != nil && ctx.Err() == nil {
		monitoring.RecordEvaluationError("engine")
		health.RecordError(err)
	}

	snap := rt.Snapshot()
	log.Info().
		Int64("bars_processed", snap.Counters.BarsProcessed).
		Int64("duplicates", snap.Counters.Duplicates).
		Int64("state_changes", snap.Counters.StateChanges).
		Msg("session counters")
	return err
}
