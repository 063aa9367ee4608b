package detectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

var testBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func barAt(i int, open, high, low, close, volume float64) types.OHLCV {
	return types.OHLCV{
		Timestamp: testBase.Add(time.Duration(i) * time.Hour),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

// barsFromCloses synthesizes a window from a close series with a thin
// symmetric wick and constant volume.
func barsFromCloses(closes []float64) []types.OHLCV {
	bars := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = barAt(i, c, c*1.001, c*0.999, c, 1000)
	}
	return bars
}

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1.005
	}
	return closes
}

func fallingCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 200.0
	for i := range closes {
		closes[i] = price
		price *= 0.995
	}
	return closes
}

func flatCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100
	}
	return closes
}

func zigzagCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 102
		}
	}
	return closes
}

func TestCatalogueShortWindowHolds(t *testing.T) {
	short := barsFromCloses(flatCloses(2))
	for _, d := range Catalogue() {
		s := d.Evaluate(short)
		assert.True(t, s.IsHold(), "%s should hold on a short window", d.GetName())
		assert.True(t, s.HasTag("INSUFFICIENT_DATA"), "%s missing tag", d.GetName())

		empty := d.Evaluate(nil)
		assert.True(t, empty.IsHold(), "%s should hold on an empty window", d.GetName())
	}
}

func TestCatalogueSignalBounds(t *testing.T) {
	windows := map[string][]types.OHLCV{
		"rising":  barsFromCloses(risingCloses(250)),
		"falling": barsFromCloses(fallingCloses(250)),
		"flat":    barsFromCloses(flatCloses(250)),
		"zigzag":  barsFromCloses(zigzagCloses(250)),
	}
	for label, window := range windows {
		for _, d := range Catalogue() {
			s := d.Evaluate(window)
			require.NoError(t, s.Validate(), "%s on %s window", d.GetName(), label)
			assert.Equal(t, window[len(window)-1].Timestamp, s.Timestamp,
				"%s on %s window should stamp the last bar", d.GetName(), label)
		}
	}
}

func TestCatalogueDeterministic(t *testing.T) {
	window := barsFromCloses(risingCloses(250))
	for _, d := range Catalogue() {
		first := d.Evaluate(window)
		second := d.Evaluate(window)
		assert.Equal(t, first, second, "%s is not deterministic", d.GetName())
	}
}

func TestCatalogueRequiredPeriodsPositive(t *testing.T) {
	for _, d := range Catalogue() {
		assert.Greater(t, d.GetRequiredPeriods(), 0, d.GetName())
		assert.NotEmpty(t, d.GetName())
	}
}

func TestRSIMeanReversionOversoldExit(t *testing.T) {
	closes := fallingCloses(60)
	d := NewRSIMeanReversion(DefaultRSIMeanReversionConfig())

	// A steep decline alone is not an entry.
	s := d.Evaluate(barsFromCloses(closes))
	assert.True(t, s.IsHold())

	// Appending recovery bars must eventually produce the oversold exit.
	price := closes[len(closes)-1]
	fired := false
	for i := 0; i < 40 && !fired; i++ {
		price *= 1.01
		closes = append(closes, price)
		s = d.Evaluate(barsFromCloses(closes))
		if !s.IsHold() {
			fired = true
			assert.Equal(t, signal.ActionBuy, s.Action)
			assert.True(t, s.HasTag("CLASSIC:RSI_OVERSOLD_EXIT"))
		}
	}
	assert.True(t, fired, "oversold exit never fired during recovery")
}

func TestEMACrossoverUptrend(t *testing.T) {
	d := NewEMACrossover(DefaultEMACrossoverConfig())
	s := d.Evaluate(barsFromCloses(risingCloses(100)))
	assert.Equal(t, signal.ActionBuy, s.Action)
	assert.GreaterOrEqual(t, s.Confidence, 0.45)
}

func TestEMACrossoverDowntrend(t *testing.T) {
	d := NewEMACrossover(DefaultEMACrossoverConfig())
	s := d.Evaluate(barsFromCloses(fallingCloses(100)))
	assert.Equal(t, signal.ActionSell, s.Action)
}

func TestBollingerBreakoutUp(t *testing.T) {
	closes := flatCloses(30)
	closes = append(closes, 110)
	d := NewBollingerBreakout(DefaultBollingerBreakoutConfig())
	s := d.Evaluate(barsFromCloses(closes))
	assert.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("CLASSIC:BB_BREAKOUT_UP"))
}

func TestADXTrendDirection(t *testing.T) {
	d := NewADX(DefaultADXConfig())

	up := d.Evaluate(barsFromCloses(risingCloses(80)))
	assert.Equal(t, signal.ActionBuy, up.Action)

	down := d.Evaluate(barsFromCloses(fallingCloses(80)))
	assert.Equal(t, signal.ActionSell, down.Action)

	flat := d.Evaluate(barsFromCloses(zigzagCloses(80)))
	assert.True(t, flat.IsHold(), "choppy window should not read as a trend")
}

func TestParabolicSARUptrend(t *testing.T) {
	d := NewParabolicSAR(DefaultParabolicSARConfig())
	s := d.Evaluate(barsFromCloses(risingCloses(60)))
	assert.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("CLASSIC:PSAR_BULL"))
}

func TestVWAPDiscount(t *testing.T) {
	closes := flatCloses(49)
	closes = append(closes, 90)
	d := NewVWAP(DefaultVWAPConfig())
	s := d.Evaluate(barsFromCloses(closes))
	assert.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("CLASSIC:VWAP_DISCOUNT"))
}

func TestMARibbonAlignment(t *testing.T) {
	d := NewMARibbon(DefaultMARibbonConfig())

	up := d.Evaluate(barsFromCloses(risingCloses(60)))
	assert.Equal(t, signal.ActionBuy, up.Action)
	assert.True(t, up.HasTag("CLASSIC:RIBBON_BULL"))

	flat := d.Evaluate(barsFromCloses(flatCloses(60)))
	assert.True(t, flat.IsHold())
}

func TestCPRBreakoutUp(t *testing.T) {
	closes := flatCloses(25)
	closes = append(closes, 110)
	d := NewCPR(DefaultCPRConfig())
	s := d.Evaluate(barsFromCloses(closes))
	assert.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("CLASSIC:CPR_BREAKOUT_UP"))
}

func TestPivotPointBounceAtS1(t *testing.T) {
	bars := barsFromCloses(flatCloses(25))
	// Flat reference pivots: P=100, S1 at the reference low 99.8. The last
	// bar dips onto S1 and closes back up.
	bars = append(bars, barAt(len(bars), 99.7, 100.05, 99.75, 100.0, 1000))

	d := NewPivotPoint(DefaultPivotPointConfig())
	s := d.Evaluate(bars)
	assert.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("CLASSIC:PIVOT_BOUNCE_S1"))
}

func TestBOSBullishBreak(t *testing.T) {
	bars := make([]types.OHLCV, 0, 30)
	for i := 0; i < 29; i++ {
		high := 100.2
		if i == 15 {
			high = 102 // confirmed swing high
		}
		bars = append(bars, barAt(i, 100, high, 99.8, 100, 1000))
	}
	bars = append(bars, barAt(29, 100.5, 103.1, 100.4, 103, 2000))

	d := NewBOS(DefaultBOSConfig())
	s := d.Evaluate(bars)
	require.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("SMC:BOS_BULL"))
	assert.Equal(t, 102.0, s.Meta["bos_level"])
}

func TestBOSWeakVolumeHolds(t *testing.T) {
	bars := make([]types.OHLCV, 0, 30)
	for i := 0; i < 29; i++ {
		high := 100.2
		if i == 15 {
			high = 102
		}
		bars = append(bars, barAt(i, 100, high, 99.8, 100, 1000))
	}
	// Same break on average volume: rejected.
	bars = append(bars, barAt(29, 100.5, 103.1, 100.4, 103, 1000))

	d := NewBOS(DefaultBOSConfig())
	s := d.Evaluate(bars)
	assert.True(t, s.IsHold())
}

func TestCHoCHBullishReversal(t *testing.T) {
	bars := make([]types.OHLCV, 0, 45)
	for i := 0; i < 44; i++ {
		high := 100.2
		switch i {
		case 20:
			high = 105
		case 30:
			high = 103 // lower high: bearish structure
		}
		bars = append(bars, barAt(i, 100, high, 99.8, 100, 1000))
	}
	bars = append(bars, barAt(44, 100.5, 104.1, 100.4, 104, 1000))

	d := NewCHoCH(DefaultCHoCHConfig())
	s := d.Evaluate(bars)
	require.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("SMC:CHOCH_BULL"))
	assert.Equal(t, 103.0, s.Meta["choch_level"])
}

func TestOrderBlockFreshRevisit(t *testing.T) {
	bars := make([]types.OHLCV, 0, 45)
	for i := 0; i < 40; i++ {
		bars = append(bars, barAt(i, 100, 100.2, 99.8, 100, 1000))
	}
	// Down candle, then an up displacement leg away from it.
	bars = append(bars, barAt(40, 100.5, 100.6, 99.3, 99.5, 1000))
	bars = append(bars, barAt(41, 99.5, 100.7, 99.4, 100.6, 1500))
	bars = append(bars, barAt(42, 100.8, 101.1, 100.7, 101, 1000))
	bars = append(bars, barAt(43, 100.8, 101.1, 100.7, 101, 1000))
	// First revisit of the block.
	bars = append(bars, barAt(44, 100.9, 101, 100.0, 100.4, 1000))

	d := NewOrderBlocks(DefaultOrderBlocksConfig())
	s := d.Evaluate(bars)
	require.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("SMC:ORDER_BLOCK_BULL"))
	assert.Equal(t, "FRESH", s.Meta["ob_status"])
	assert.Equal(t, 0.6, s.Confidence)
}

func TestFVGBullishFill(t *testing.T) {
	bars := make([]types.OHLCV, 0, 12)
	for i := 0; i < 8; i++ {
		bars = append(bars, barAt(i, 100, 100.2, 99.8, 100, 1000))
	}
	bars = append(bars, barAt(8, 100, 101, 99.9, 100.9, 1000))
	bars = append(bars, barAt(9, 101, 104, 100.9, 103.5, 1500))
	bars = append(bars, barAt(10, 103.5, 104.5, 103, 104, 1000))
	// Price trades back into the 101-103 imbalance without filling it.
	bars = append(bars, barAt(11, 103, 103.2, 101.5, 102, 1000))

	d := NewFVG()
	s := d.Evaluate(bars)
	require.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("SMC:FVG_BULL"))
	assert.Equal(t, 101.0, s.Meta["fvg_low"])
	assert.Equal(t, 103.0, s.Meta["fvg_high"])
}

func TestLiquiditySweepBullish(t *testing.T) {
	bars := make([]types.OHLCV, 0, 31)
	for i := 0; i < 30; i++ {
		bars = append(bars, barAt(i, 100, 100.2, 99.8, 100, 1000))
	}
	// Wick sweeps the equal lows at 99.8 and closes back above.
	bars = append(bars, barAt(30, 100, 100.2, 99.0, 100.1, 1000))

	d := NewLiquiditySweep(DefaultLiquiditySweepConfig())
	s := d.Evaluate(bars)
	require.Equal(t, signal.ActionBuy, s.Action)
	assert.True(t, s.HasTag("SMC:LIQUIDITY_SWEEP_BULL"))
	assert.Equal(t, 99.8, s.Meta["sweep_level"])
}

func TestMomentumComboFlatHolds(t *testing.T) {
	d := NewMomentumCombo(DefaultMomentumComboConfig())
	s := d.Evaluate(barsFromCloses(flatCloses(80)))
	assert.True(t, s.IsHold())
}
