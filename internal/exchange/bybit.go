package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/pkg/types"
)

// Bybit v5 kline interval codes keyed by the human-readable interval used in
// config and flags.
var bybitIntervals = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W", "1M": "M",
}

// BybitInterval maps a human-readable interval to the Bybit API code.
func BybitInterval(interval string) (string, error) {
	code, ok := bybitIntervals[interval]
	if !ok {
		return "", fmt.Errorf("unsupported interval %q", interval)
	}
	return code, nil
}

// BybitConfig holds the REST adapter settings. Market data endpoints are
// public; keys are only needed when the same client is reused for account
// calls.
type BybitConfig struct {
	APIKey    string
	APISecret string
	Category  string // "spot", "linear", "inverse"
	Testnet   bool
}

// BybitProvider fetches historical klines from the Bybit v5 REST API.
type BybitProvider struct {
	client   *bybit_api.Client
	category string
	log      zerolog.Logger
}

// NewBybitProvider creates a REST data provider.
func NewBybitProvider(cfg BybitConfig, log zerolog.Logger) *BybitProvider {
	baseURL := bybit_api.MAINNET
	if cfg.Testnet {
		baseURL = bybit_api.TESTNET
	}
	category := cfg.Category
	if category == "" {
		category = "spot"
	}
	return &BybitProvider{
		client:   bybit_api.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybit_api.WithBaseURL(baseURL)),
		category: category,
		log:      log,
	}
}

const bybitMaxPageSize = 1000

// FetchBars pages backwards through the kline endpoint until limit bars are
// collected or the start bound is reached, then returns them oldest first.
func (p *BybitProvider) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]types.OHLCV, error) {
	code, err := BybitInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = bybitMaxPageSize
	}

	var bars []types.OHLCV
	cursor := end
	for len(bars) < limit {
		pageSize := limit - len(bars)
		if pageSize > bybitMaxPageSize {
			pageSize = bybitMaxPageSize
		}

		page, err := p.fetchPage(ctx, symbol, code, start, cursor, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		bars = append(bars, page...)

		oldest := page[len(page)-1].Timestamp
		if !start.IsZero() && !oldest.After(start) {
			break
		}
		cursor = oldest.Add(-time.Millisecond)
		if len(page) < pageSize {
			break
		}
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	p.log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("bars", len(bars)).
		Msg("fetched historical klines")
	return bars, nil
}

// fetchPage requests one kline page, newest bar first as the API returns it.
func (p *BybitProvider) fetchPage(ctx context.Context, symbol, intervalCode string, start, end time.Time, limit int) ([]types.OHLCV, error) {
	params := map[string]interface{}{
		"category": p.category,
		"symbol":   symbol,
		"interval": intervalCode,
		"limit":    limit,
	}
	if !start.IsZero() {
		params["start"] = start.UnixMilli()
	}
	if !end.IsZero() {
		params["end"] = end.UnixMilli()
	}

	result, err := p.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, &TransportError{Op: "bybit kline request", Err: err}
	}
	return parseKlineResponse(result)
}

// parseKlineResponse decodes the v5 kline payload:
// [startTime, open, high, low, close, volume, turnover] as strings.
func parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected kline response type %T", response)
	}
	if serverResp.RetCode != 0 {
		return nil, &TransportError{
			Op:  "bybit kline response",
			Err: fmt.Errorf("api error %d: %s", serverResp.RetCode, serverResp.RetMsg),
		}
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("re-encode kline result: %w", err)
	}
	var klineResult struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("decode kline result: %w", err)
	}

	bars := make([]types.OHLCV, 0, len(klineResult.List))
	for _, row := range klineResult.List {
		if len(row) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		bars = append(bars, types.OHLCV{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      parsePrice(row[1]),
			High:      parsePrice(row[2]),
			Low:       parsePrice(row[3]),
			Close:     parsePrice(row[4]),
			Volume:    parsePrice(row[5]),
		})
	}
	return bars, nil
}

func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
