package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/pkg/types"
)

const (
	bybitStreamMainnet = "wss://stream.bybit.com/v5/public"
	bybitStreamTestnet = "wss://stream-testnet.bybit.com/v5/public"

	defaultPingInterval = 20 * time.Second
	defaultBackoffMin   = time.Second
	defaultBackoffMax   = 30 * time.Second
	backoffJitter       = 0.3
	streamQueueSize     = 256
)

// StreamConfig holds the websocket stream settings.
type StreamConfig struct {
	Category     string // "spot", "linear", "inverse"
	Testnet      bool
	PingInterval time.Duration
	BackoffMin   time.Duration
	BackoffMax   time.Duration

	// OnReconnect, when set, is invoked before each reconnect attempt.
	OnReconnect func()
}

// BybitStream subscribes to the Bybit v5 public kline topic and converts the
// pushed updates to bar events. Disconnects are retried with exponential
// backoff plus jitter; the backoff resets once a connection delivers data.
type BybitStream struct {
	cfg StreamConfig
	log zerolog.Logger
}

// NewBybitStream creates a live kline stream provider.
func NewBybitStream(cfg StreamConfig, log zerolog.Logger) *BybitStream {
	if cfg.Category == "" {
		cfg.Category = "spot"
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = defaultBackoffMin
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	return &BybitStream{cfg: cfg, log: log}
}

func (s *BybitStream) url() string {
	base := bybitStreamMainnet
	if s.cfg.Testnet {
		base = bybitStreamTestnet
	}
	return base + "/" + s.cfg.Category
}

// StreamBars opens the stream and returns its event channel. The channel
// closes when the context is cancelled.
func (s *BybitStream) StreamBars(ctx context.Context, symbol, interval string) (<-chan types.BarEvent, error) {
	code, err := BybitInterval(interval)
	if err != nil {
		return nil, err
	}
	topic := fmt.Sprintf("kline.%s.%s", code, symbol)

	events := make(chan types.BarEvent, streamQueueSize)
	go s.run(ctx, topic, events)
	return events, nil
}

// run reconnects forever until the context ends.
func (s *BybitStream) run(ctx context.Context, topic string, events chan<- types.BarEvent) {
	defer close(events)

	backoff := s.cfg.BackoffMin
	for {
		delivered, err := s.consume(ctx, topic, events)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			backoff = s.cfg.BackoffMin
		}
		s.log.Warn().
			Err(err).
			Str("topic", topic).
			Dur("backoff", backoff).
			Msg("stream disconnected, retrying")
		if s.cfg.OnReconnect != nil {
			s.cfg.OnReconnect()
		}

		// Up to 30% jitter keeps reconnect storms from synchronizing.
		sleep := backoff + time.Duration(rand.Float64()*backoffJitter*float64(backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
		backoff *= 2
		if backoff > s.cfg.BackoffMax {
			backoff = s.cfg.BackoffMax
		}
	}
}

// consume runs one websocket session: dial, subscribe, forward bars until
// the connection drops. It reports whether any kline made it through, so
// the caller can reset the backoff.
func (s *BybitStream) consume(ctx context.Context, topic string, events chan<- types.BarEvent) (bool, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.DialContext(ctx, s.url(), nil)
	if err != nil {
		return false, &TransportError{Op: "stream dial", Err: err}
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := write(map[string]interface{}{"op": "subscribe", "args": []string{topic}}); err != nil {
		return false, &TransportError{Op: "stream subscribe", Err: err}
	}
	s.log.Info().Str("topic", topic).Msg("stream subscribed")

	// Close the connection when the context ends so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	// Bybit expects an application-level ping.
	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := write(map[string]string{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	delivered := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return delivered, &TransportError{Op: "stream read", Err: err}
		}
		bars, ok := parseKlinePush(message, topic)
		if !ok {
			continue
		}
		for _, event := range bars {
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case events <- event:
				delivered = true
			}
		}
	}
}

// klinePush is the v5 public kline payload.
type klinePush struct {
	Topic string `json:"topic"`
	Data  []struct {
		Start   int64  `json:"start"`
		Open    string `json:"open"`
		High    string `json:"high"`
		Low     string `json:"low"`
		Close   string `json:"close"`
		Volume  string `json:"volume"`
		Confirm bool   `json:"confirm"`
	} `json:"data"`
}

// parseKlinePush decodes a pushed kline message for the subscribed topic.
// Non-kline frames (subscription acks, pong) are skipped.
func parseKlinePush(message []byte, topic string) ([]types.BarEvent, bool) {
	var push klinePush
	if err := json.Unmarshal(message, &push); err != nil {
		return nil, false
	}
	if push.Topic != topic || len(push.Data) == 0 {
		return nil, false
	}

	events := make([]types.BarEvent, 0, len(push.Data))
	for _, k := range push.Data {
		events = append(events, types.BarEvent{
			Bar: types.OHLCV{
				Timestamp: time.UnixMilli(k.Start).UTC(),
				Open:      parsePrice(k.Open),
				High:      parsePrice(k.High),
				Low:       parsePrice(k.Low),
				Close:     parsePrice(k.Close),
				Volume:    parsePrice(k.Volume),
			},
			IsClosed: k.Confirm,
		})
	}
	return events, true
}
