package indicators

import (
	"github.com/quantbay/confluence-bot/pkg/types"
)

// RSISeries computes the Relative Strength Index over the full input using
// Wilder's smoothing. Entries before index period are zero.
func RSISeries(closes []float64, period int) ([]float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return nil, ErrInsufficientData
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain, err := wilderSeries(gains[1:], period)
	if err != nil {
		return nil, err
	}
	avgLoss, err := wilderSeries(losses[1:], period)
	if err != nil {
		return nil, err
	}

	series := make([]float64, len(closes))
	for i := period; i < len(closes); i++ {
		gain := avgGain[i-1]
		loss := avgLoss[i-1]
		if loss == 0 {
			series[i] = 100
			continue
		}
		rs := gain / loss
		series[i] = 100 - 100/(1+rs)
	}
	return series, nil
}

// RSI computes the latest Relative Strength Index value.
func RSI(closes []float64, period int) (float64, error) {
	series, err := RSISeries(closes, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// MACDSeries computes the MACD line and its signal line over the full input.
// Entries before index slow+signalPeriod-2 are not valid on the signal line.
func MACDSeries(closes []float64, fast, slow, signalPeriod int) (macdLine, signalLine []float64, err error) {
	if len(closes) < slow+signalPeriod {
		return nil, nil, ErrInsufficientData
	}

	fastEMA, err := EMASeries(closes, fast)
	if err != nil {
		return nil, nil, err
	}
	slowEMA, err := EMASeries(closes, slow)
	if err != nil {
		return nil, nil, err
	}

	macdLine = make([]float64, len(closes))
	for i := slow - 1; i < len(closes); i++ {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalOnMACD, err := EMASeries(macdLine[slow-1:], signalPeriod)
	if err != nil {
		return nil, nil, err
	}
	signalLine = make([]float64, len(closes))
	copy(signalLine[slow-1:], signalOnMACD)

	return macdLine, signalLine, nil
}

// Stochastic computes the %K and %D series of the stochastic oscillator.
// Entries before index kPeriod+dPeriod-2 are not valid on %D.
func Stochastic(data []types.OHLCV, kPeriod, dPeriod int) (kSeries, dSeries []float64, err error) {
	if len(data) < kPeriod+dPeriod {
		return nil, nil, ErrInsufficientData
	}

	kSeries = make([]float64, len(data))
	for i := kPeriod - 1; i < len(data); i++ {
		highest := data[i].High
		lowest := data[i].Low
		for j := i - kPeriod + 1; j <= i; j++ {
			if data[j].High > highest {
				highest = data[j].High
			}
			if data[j].Low < lowest {
				lowest = data[j].Low
			}
		}
		if highest == lowest {
			kSeries[i] = 50 // flat range, oscillator undefined
			continue
		}
		kSeries[i] = (data[i].Close - lowest) / (highest - lowest) * 100
	}

	dSeries = make([]float64, len(data))
	for i := kPeriod + dPeriod - 2; i < len(data); i++ {
		sum := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += kSeries[j]
		}
		dSeries[i] = sum / float64(dPeriod)
	}
	return kSeries, dSeries, nil
}

// WilliamsR computes the latest Williams %R value, in [-100, 0].
func WilliamsR(data []types.OHLCV, period int) (float64, error) {
	if period <= 0 || len(data) < period {
		return 0, ErrInsufficientData
	}

	window := data[len(data)-period:]
	highest := window[0].High
	lowest := window[0].Low
	for _, bar := range window {
		if bar.High > highest {
			highest = bar.High
		}
		if bar.Low < lowest {
			lowest = bar.Low
		}
	}
	if highest == lowest {
		return -50, nil
	}
	close := data[len(data)-1].Close
	return (highest - close) / (highest - lowest) * -100, nil
}
