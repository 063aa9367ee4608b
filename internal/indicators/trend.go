package indicators

import (
	"github.com/quantbay/confluence-bot/pkg/types"
)

// ADX computes the latest Average Directional Index together with the +DI and
// -DI components, all via Wilder's smoothing. The window must cover at least
// two full periods.
func ADX(data []types.OHLCV, period int) (adx, plusDI, minusDI float64, err error) {
	if period <= 0 || len(data) < period*2+1 {
		return 0, 0, 0, ErrInsufficientData
	}

	n := len(data) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < len(data); i++ {
		cur, prev := data[i], data[i-1]
		tr[i-1] = trueRange(cur, prev.Close)

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
	}

	trSmooth, err := wilderSeries(tr, period)
	if err != nil {
		return 0, 0, 0, err
	}
	plusSmooth, err := wilderSeries(plusDM, period)
	if err != nil {
		return 0, 0, 0, err
	}
	minusSmooth, err := wilderSeries(minusDM, period)
	if err != nil {
		return 0, 0, 0, err
	}

	dx := make([]float64, n)
	for i := period - 1; i < n; i++ {
		if trSmooth[i] == 0 {
			continue // indicator undefined on a zero-range stretch
		}
		pdi := plusSmooth[i] / trSmooth[i] * 100
		mdi := minusSmooth[i] / trSmooth[i] * 100
		sum := pdi + mdi
		if sum == 0 {
			continue
		}
		diff := pdi - mdi
		if diff < 0 {
			diff = -diff
		}
		dx[i] = diff / sum * 100
	}

	adxSeries, err := wilderSeries(dx[period-1:], period)
	if err != nil {
		return 0, 0, 0, err
	}
	adx = adxSeries[len(adxSeries)-1]

	last := n - 1
	if trSmooth[last] > 0 {
		plusDI = plusSmooth[last] / trSmooth[last] * 100
		minusDI = minusSmooth[last] / trSmooth[last] * 100
	}
	return adx, plusDI, minusDI, nil
}

// PSAR computes the latest Parabolic SAR value and the direction of the
// current trend (true for an uptrend, price above SAR).
func PSAR(data []types.OHLCV, afStart, afStep, afMax float64) (sar float64, uptrend bool, err error) {
	if len(data) < 2 {
		return 0, false, ErrInsufficientData
	}

	uptrend = data[1].Close >= data[0].Close
	af := afStart
	var ep float64
	if uptrend {
		sar = data[0].Low
		ep = data[0].High
	} else {
		sar = data[0].High
		ep = data[0].Low
	}

	for i := 1; i < len(data); i++ {
		bar := data[i]
		sar = sar + af*(ep-sar)

		if uptrend {
			// SAR may never rise above the prior two lows
			if i >= 2 && sar > data[i-2].Low {
				sar = data[i-2].Low
			}
			if sar > data[i-1].Low {
				sar = data[i-1].Low
			}
			if bar.Low < sar {
				uptrend = false
				sar = ep
				ep = bar.Low
				af = afStart
				continue
			}
			if bar.High > ep {
				ep = bar.High
				af += afStep
				if af > afMax {
					af = afMax
				}
			}
		} else {
			if i >= 2 && sar < data[i-2].High {
				sar = data[i-2].High
			}
			if sar < data[i-1].High {
				sar = data[i-1].High
			}
			if bar.High > sar {
				uptrend = true
				sar = ep
				ep = bar.High
				af = afStart
				continue
			}
			if bar.Low < ep {
				ep = bar.Low
				af += afStep
				if af > afMax {
					af = afMax
				}
			}
		}
	}
	return sar, uptrend, nil
}
