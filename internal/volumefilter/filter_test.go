package volumefilter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

var testBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func barsWithVolumes(volumes []float64) []types.OHLCV {
	bars := make([]types.OHLCV, len(volumes))
	for i, v := range volumes {
		bars[i] = types.OHLCV{
			Timestamp: testBase.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 100.1, Low: 99.9, Close: 100,
			Volume: v,
		}
	}
	return bars
}

func constantVolumes(n int, v float64) []float64 {
	volumes := make([]float64, n)
	for i := range volumes {
		volumes[i] = v
	}
	return volumes
}

func alternatingVolumes(n int) []float64 {
	volumes := make([]float64, n)
	for i := range volumes {
		if i%2 == 0 {
			volumes[i] = 900
		} else {
			volumes[i] = 1100
		}
	}
	return volumes
}

func buySignal(conf float64) signal.Signal {
	s := signal.New(signal.ActionBuy, conf, testBase.Add(49*time.Hour))
	s.AddReason("test entry")
	s.AddTag("CLASSIC:TEST")
	return s
}

func TestApplyRejectsThinVolume(t *testing.T) {
	volumes := constantVolumes(49, 1000)
	volumes = append(volumes, 100) // collapse on the signal bar
	data := barsWithVolumes(volumes)

	f := New(DefaultConfig())
	out := f.Apply(buySignal(0.8), data)

	require.True(t, out.IsHold())
	assert.True(t, out.HasTag(TagRejected))
	assert.True(t, out.HasTag("CLASSIC:TEST"), "detector tags survive for audit")
	assert.Equal(t, "BUY", out.Meta["rejected_action"])
	assert.Equal(t, 0.8, out.Meta["rejected_confidence"])
}

func TestApplyBoostsVolumeSurge(t *testing.T) {
	volumes := constantVolumes(49, 1000)
	volumes = append(volumes, 5000)
	data := barsWithVolumes(volumes)

	f := New(DefaultConfig())
	out := f.Apply(buySignal(0.6), data)

	assert.Equal(t, signal.ActionBuy, out.Action)
	assert.True(t, out.HasTag(TagBoosted))
	assert.InDelta(t, 0.78, out.Confidence, 1e-9)
}

func TestApplyBoostCapsConfidence(t *testing.T) {
	volumes := constantVolumes(49, 1000)
	volumes = append(volumes, 5000)
	data := barsWithVolumes(volumes)

	f := New(DefaultConfig())
	out := f.Apply(buySignal(0.9), data)
	assert.Equal(t, 1.0, out.Confidence)
}

func TestApplyNormalVolumePassesThrough(t *testing.T) {
	volumes := alternatingVolumes(49)
	volumes = append(volumes, 1100) // about one sigma above the mean
	data := barsWithVolumes(volumes)

	f := New(DefaultConfig())
	out := f.Apply(buySignal(0.6), data)

	assert.Equal(t, signal.ActionBuy, out.Action)
	assert.Equal(t, 0.6, out.Confidence)
	assert.True(t, out.HasTag(TagNormal))
	assert.False(t, out.HasTag(TagRejected))
}

func TestApplyHoldBypassesGate(t *testing.T) {
	volumes := constantVolumes(49, 1000)
	volumes = append(volumes, 100)
	data := barsWithVolumes(volumes)

	hold := signal.NewHold(testBase, "nothing to do")
	f := New(DefaultConfig())
	out := f.Apply(hold, data)

	assert.True(t, out.IsHold())
	assert.False(t, out.HasTag(TagRejected))
}

func TestApplyUndefinedZScorePasses(t *testing.T) {
	f := New(DefaultConfig())

	// Constant volume: zero variance, no meaningful score.
	constant := barsWithVolumes(constantVolumes(60, 1000))
	out := f.Apply(buySignal(0.7), constant)
	assert.Equal(t, signal.ActionBuy, out.Action)
	assert.True(t, out.HasTag(TagNormal))
	assert.Equal(t, false, out.Meta["volume_zscore_defined"])

	// Warm-up: window shorter than the lookback.
	short := barsWithVolumes(alternatingVolumes(10))
	out = f.Apply(buySignal(0.7), short)
	assert.Equal(t, signal.ActionBuy, out.Action)
	assert.True(t, out.HasTag(TagNormal))
}

func TestStatsPartitionReceived(t *testing.T) {
	f := New(DefaultConfig())

	reject := barsWithVolumes(append(constantVolumes(49, 1000), 100))
	boost := barsWithVolumes(append(constantVolumes(49, 1000), 5000))
	normal := barsWithVolumes(append(alternatingVolumes(49), 1100))

	f.Apply(buySignal(0.6), reject)
	f.Apply(buySignal(0.6), boost)
	f.Apply(buySignal(0.6), normal)
	f.Apply(signal.NewHold(testBase, "idle"), reject) // not counted

	st := f.Stats()
	assert.Equal(t, Stats{Received: 3, Rejected: 1, Boosted: 1, Passed: 1}, st)
}

func TestZScoreDirection(t *testing.T) {
	f := New(DefaultConfig())

	volumes := alternatingVolumes(49)
	volumes = append(volumes, 2000)
	z, ok := f.ZScore(barsWithVolumes(volumes))
	require.True(t, ok)
	assert.Greater(t, z, 1.5)

	volumes[len(volumes)-1] = 100
	z, ok = f.ZScore(barsWithVolumes(volumes))
	require.True(t, ok)
	assert.Less(t, z, 0.0)
}
