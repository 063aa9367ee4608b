package indicators

import (
	"math"

	"github.com/quantbay/confluence-bot/pkg/types"
)

func trueRange(bar types.OHLCV, prevClose float64) float64 {
	return math.Max(
		bar.High-bar.Low,
		math.Max(
			math.Abs(bar.High-prevClose),
			math.Abs(bar.Low-prevClose),
		),
	)
}

// ATR computes the latest Average True Range via Wilder's smoothing.
func ATR(data []types.OHLCV, period int) (float64, error) {
	if period <= 0 || len(data) < period+1 {
		return 0, ErrInsufficientData
	}

	tr := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		tr[i-1] = trueRange(data[i], data[i-1].Close)
	}

	series, err := wilderSeries(tr, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// Bollinger computes the latest Bollinger Bands around an SMA middle line.
func Bollinger(closes []float64, period int, stdDevMult float64) (upper, middle, lower float64, err error) {
	middle, err = SMA(closes, period)
	if err != nil {
		return 0, 0, 0, err
	}
	sd, err := StdDev(closes, period)
	if err != nil {
		return 0, 0, 0, err
	}
	return middle + stdDevMult*sd, middle, middle - stdDevMult*sd, nil
}

// BollingerWidth computes the normalized band width (upper-lower)/middle,
// used by the regime gate to spot flat markets.
func BollingerWidth(closes []float64, period int, stdDevMult float64) (float64, error) {
	upper, middle, lower, err := Bollinger(closes, period, stdDevMult)
	if err != nil {
		return 0, err
	}
	if middle == 0 {
		return 0, ErrInsufficientData
	}
	return (upper - lower) / middle, nil
}
