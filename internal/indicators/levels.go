package indicators

import (
	"github.com/quantbay/confluence-bot/pkg/types"
)

// VWAP computes the volume-weighted average price over the whole supplied
// window, using the typical price of each bar.
func VWAP(data []types.OHLCV) (float64, error) {
	if len(data) == 0 {
		return 0, ErrInsufficientData
	}

	cumPV := 0.0
	cumVolume := 0.0
	for _, bar := range data {
		typical := (bar.High + bar.Low + bar.Close) / 3
		cumPV += typical * bar.Volume
		cumVolume += bar.Volume
	}
	if cumVolume == 0 {
		return 0, ErrInsufficientData
	}
	return cumPV / cumVolume, nil
}

// PivotSet holds the classic floor-trader pivot levels plus the central pivot
// range bounds used by the CPR detector.
type PivotSet struct {
	Pivot float64
	R1    float64
	R2    float64
	S1    float64
	S2    float64
	TC    float64 // top of the central pivot range
	BC    float64 // bottom of the central pivot range
}

// PivotLevels derives the pivot set from a reference period's high, low and
// close (conventionally the prior session).
func PivotLevels(high, low, close float64) PivotSet {
	pivot := (high + low + close) / 3
	bc := (high + low) / 2
	tc := pivot + (pivot - bc)
	if tc < bc {
		tc, bc = bc, tc
	}
	return PivotSet{
		Pivot: pivot,
		R1:    2*pivot - low,
		R2:    pivot + (high - low),
		S1:    2*pivot - high,
		S2:    pivot - (high - low),
		TC:    tc,
		BC:    bc,
	}
}

// RangeHighLow returns the extreme high and low over the trailing lookback
// bars, together with their indices into the supplied slice.
func RangeHighLow(data []types.OHLCV, lookback int) (high, low float64, highIdx, lowIdx int, err error) {
	if lookback <= 0 || len(data) < lookback {
		return 0, 0, 0, 0, ErrInsufficientData
	}

	start := len(data) - lookback
	high, low = data[start].High, data[start].Low
	highIdx, lowIdx = start, start
	for i := start + 1; i < len(data); i++ {
		if data[i].High > high {
			high = data[i].High
			highIdx = i
		}
		if data[i].Low < low {
			low = data[i].Low
			lowIdx = i
		}
	}
	return high, low, highIdx, lowIdx, nil
}

// SwingPoints finds local swing highs and lows: bars whose high (low) exceeds
// (undercuts) the strength bars on both sides. Returns indices into data.
func SwingPoints(data []types.OHLCV, strength int) (highs, lows []int) {
	for i := strength; i < len(data)-strength; i++ {
		isHigh, isLow := true, true
		for j := i - strength; j <= i+strength; j++ {
			if j == i {
				continue
			}
			if data[j].High >= data[i].High {
				isHigh = false
			}
			if data[j].Low <= data[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, i)
		}
		if isLow {
			lows = append(lows, i)
		}
	}
	return highs, lows
}
