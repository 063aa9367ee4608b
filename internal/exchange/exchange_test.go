package exchange

import (
	"errors"
	"fmt"
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBybitInterval(t *testing.T) {
	code, err := BybitInterval("1h")
	require.NoError(t, err)
	assert.Equal(t, "60", code)

	code, err = BybitInterval("1d")
	require.NoError(t, err)
	assert.Equal(t, "D", code)

	_, err = BybitInterval("90m")
	assert.Error(t, err)
}

func TestParseKlinePush(t *testing.T) {
	message := []byte(`{
		"topic": "kline.60.BTCUSDT",
		"type": "snapshot",
		"data": [{
			"start": 1704067200000,
			"open": "42000.5",
			"high": "42100",
			"low": "41900",
			"close": "42050",
			"volume": "12.5",
			"confirm": true
		}]
	}`)

	events, ok := parseKlinePush(message, "kline.60.BTCUSDT")
	require.True(t, ok)
	require.Len(t, events, 1)

	event := events[0]
	assert.True(t, event.IsClosed)
	assert.Equal(t, time.UnixMilli(1704067200000).UTC(), event.Bar.Timestamp)
	assert.Equal(t, 42000.5, event.Bar.Open)
	assert.Equal(t, 42050.0, event.Bar.Close)
	assert.Equal(t, 12.5, event.Bar.Volume)
}

func TestParseKlinePushSkipsOtherFrames(t *testing.T) {
	_, ok := parseKlinePush([]byte(`{"op":"pong"}`), "kline.60.BTCUSDT")
	assert.False(t, ok)

	_, ok = parseKlinePush([]byte(`{"topic":"kline.60.ETHUSDT","data":[{"start":1}]}`), "kline.60.BTCUSDT")
	assert.False(t, ok, "foreign topic must be ignored")

	_, ok = parseKlinePush([]byte(`not json`), "kline.60.BTCUSDT")
	assert.False(t, ok)
}

func TestParseKlineResponse(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"symbol": "BTCUSDT",
			"list": [][]string{
				// Newest first, as the API returns them.
				{"1704070800000", "42050", "42200", "42000", "42150", "10", "420000"},
				{"1704067200000", "42000", "42100", "41900", "42050", "12", "500000"},
			},
		},
	}

	bars, err := parseKlineResponse(resp)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 42150.0, bars[0].Close)
	assert.Equal(t, time.UnixMilli(1704070800000).UTC(), bars[0].Timestamp)
}

func TestParseKlineResponseAPIError(t *testing.T) {
	resp := &bybit_api.ServerResponse{RetCode: 10001, RetMsg: "params error"}
	_, err := parseKlineResponse(resp)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestTransportErrorWrapping(t *testing.T) {
	inner := errors.New("connection refused")
	err := fmt.Errorf("fetch failed: %w", &TransportError{Op: "dial", Err: inner})

	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, inner)
	assert.False(t, IsTransport(errors.New("plain")))
}
