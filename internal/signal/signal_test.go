package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Direction(t *testing.T) {
	assert.Equal(t, 1, ActionBuy.Direction())
	assert.Equal(t, -1, ActionSell.Direction())
	assert.Equal(t, 0, ActionHold.Direction())
}

func TestNew_ClampsConfidence(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()

	s := New(ActionBuy, 1.7, ts)
	assert.Equal(t, 1.0, s.Confidence)

	s = New(ActionSell, -0.3, ts)
	assert.Equal(t, 0.0, s.Confidence)
}

func TestNewHold_CarriesReasonAndTags(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()

	s := NewHold(ts, "not enough data", "RSI:INSUFFICIENT_DATA")

	assert.Equal(t, ActionHold, s.Action)
	assert.Equal(t, 0.0, s.Confidence)
	assert.Equal(t, []string{"not enough data"}, s.Reasons)
	assert.True(t, s.HasTag("RSI:INSUFFICIENT_DATA"))
}

func TestSignal_AddTagDeduplicates(t *testing.T) {
	s := New(ActionBuy, 0.5, time.Now())
	s.AddTag("VOLUME_BOOSTED")
	s.AddTag("VOLUME_BOOSTED")

	assert.Equal(t, []string{"VOLUME_BOOSTED"}, s.Tags)
}

func TestSignal_Validate(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()

	valid := New(ActionBuy, 0.8, ts)
	assert.NoError(t, valid.Validate())

	badAction := Signal{Action: Action("SHORT"), Timestamp: ts}
	assert.Error(t, badAction.Validate())

	badConfidence := Signal{Action: ActionSell, Confidence: 1.2, Timestamp: ts}
	assert.Error(t, badConfidence.Validate())
}

func TestSignal_JSONRoundTrip(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()

	s := New(ActionSell, 0.62, ts)
	s.AddReason("rsi exited overbought (rsi=%.1f)", 68.4)
	s.AddTag("CLASSIC:RSI_OVERBOUGHT_EXIT")
	s.SetMeta("rsi", 68.4)

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Signal
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, s.Action, decoded.Action)
	assert.Equal(t, s.Confidence, decoded.Confidence)
	assert.Equal(t, s.Reasons, decoded.Reasons)
	assert.Equal(t, s.Tags, decoded.Tags)
	assert.True(t, s.Timestamp.Equal(decoded.Timestamp))
	assert.InDelta(t, 68.4, decoded.Meta["rsi"].(float64), 1e-9)
}
