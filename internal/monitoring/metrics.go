// Package monitoring exposes the live session over HTTP: Prometheus metrics
// for the decision pipeline and a JSON health endpoint fed by the stream
// driver.
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	barsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confluence_bars_processed_total",
			Help: "Closed bars fed through the decision pipeline",
		},
		[]string{"symbol"},
	)

	signalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confluence_signals_emitted_total",
			Help: "State-changing signals emitted, by action",
		},
		[]string{"symbol", "action"},
	)

	confluenceScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confluence_score",
			Help: "Weighted confluence score of the latest evaluation",
		},
		[]string{"symbol"},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confluence_current_price",
			Help: "Close of the latest processed bar",
		},
		[]string{"symbol"},
	)

	filterOutcomes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confluence_volume_filter_outcomes",
			Help: "Session counters of the volume gate, by outcome",
		},
		[]string{"outcome"},
	)

	streamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confluence_stream_reconnects_total",
			Help: "Websocket stream reconnect attempts",
		},
		[]string{"symbol"},
	)

	evaluationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confluence_evaluation_errors_total",
			Help: "Failed engine evaluations, by error type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		barsProcessed,
		signalsEmitted,
		confluenceScore,
		currentPrice,
		filterOutcomes,
		streamReconnects,
		evaluationErrors,
	)
}

// RecordBar counts a processed bar and updates the price gauge.
func RecordBar(symbol string, closePrice float64) {
	barsProcessed.WithLabelValues(symbol).Inc()
	currentPrice.WithLabelValues(symbol).Set(closePrice)
}

// RecordSignal counts an emitted state change and stores its score.
func RecordSignal(symbol, action string, score float64) {
	signalsEmitted.WithLabelValues(symbol, action).Inc()
	confluenceScore.WithLabelValues(symbol).Set(score)
}

// UpdateFilterStats publishes the volume gate's session counters.
func UpdateFilterStats(received, rejected, boosted, passed int64) {
	filterOutcomes.WithLabelValues("received").Set(float64(received))
	filterOutcomes.WithLabelValues("rejected").Set(float64(rejected))
	filterOutcomes.WithLabelValues("boosted").Set(float64(boosted))
	filterOutcomes.WithLabelValues("passed").Set(float64(passed))
}

// RecordReconnect counts a stream reconnect attempt.
func RecordReconnect(symbol string) {
	streamReconnects.WithLabelValues(symbol).Inc()
}

// RecordEvaluationError counts a failed evaluation.
func RecordEvaluationError(errType string) {
	evaluationErrors.WithLabelValues(errType).Inc()
}

// Serve runs the metrics and health endpoints until the context ends.
func Serve(ctx context.Context, addr string, health *HealthChecker, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("monitoring endpoints listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
