// Package indicators holds the shared indicator math used by the detector
// catalogue and the regime gate. Every function is a pure recomputation over
// the supplied window: no state survives between calls, so identical input
// always yields identical output.
package indicators

import (
	"errors"
	"math"

	"github.com/quantbay/confluence-bot/pkg/types"
)

// ErrInsufficientData is returned when a window is shorter than the look-back
// an indicator needs. Callers recover locally by treating the indicator as
// undefined (detectors return HOLD).
var ErrInsufficientData = errors.New("insufficient data")

// Closes extracts the close prices of a window.
func Closes(data []types.OHLCV) []float64 {
	closes := make([]float64, len(data))
	for i, bar := range data {
		closes[i] = bar.Close
	}
	return closes
}

// SMA computes the simple moving average of the trailing period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// StdDev computes the population standard deviation of the trailing period
// values.
func StdDev(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, ErrInsufficientData
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(period)
	return math.Sqrt(variance), nil
}

// EMASeries computes the exponential moving average over the full input,
// seeded with the SMA of the first period values. Entries before index
// period-1 are zero and must not be read.
func EMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period {
		return nil, ErrInsufficientData
	}
	alpha := 2.0 / float64(period+1)
	series := make([]float64, len(values))

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	series[period-1] = seed / float64(period)

	for i := period; i < len(values); i++ {
		series[i] = values[i]*alpha + series[i-1]*(1-alpha)
	}
	return series, nil
}

// EMA computes the exponential moving average of the trailing values.
func EMA(values []float64, period int) (float64, error) {
	series, err := EMASeries(values, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// wilderSeries applies Wilder's smoothing (RMA) to the input, seeded with the
// mean of the first period values. Entries before index period-1 are zero.
func wilderSeries(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period {
		return nil, ErrInsufficientData
	}
	series := make([]float64, len(values))

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	series[period-1] = seed / float64(period)

	for i := period; i < len(values); i++ {
		series[i] = (series[i-1]*float64(period-1) + values[i]) / float64(period)
	}
	return series, nil
}
