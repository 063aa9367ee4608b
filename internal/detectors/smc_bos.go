package detectors

import (
	"math"

	"github.com/quantbay/confluence-bot/internal/indicators"
	"github.com/quantbay/confluence-bot/internal/signal"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// BOSConfig holds the break-of-structure detector parameters.
type BOSConfig struct {
	SwingStrength    int     // bars on either side qualifying a swing point
	MinDisplacement  float64 // minimum break distance, as a fraction of the level
	VolumeMultiplier float64 // breakout volume vs 20-bar average
}

// DefaultBOSConfig returns 3-bar swings with a 0.1% displacement floor and a
// 1.2x volume requirement.
func DefaultBOSConfig() BOSConfig {
	return BOSConfig{SwingStrength: 3, MinDisplacement: 0.001, VolumeMultiplier: 1.2}
}

// BOS detects a break of structure: the close clearing the most recent
// confirmed swing high (bullish) or swing low (bearish) with meaningful
// displacement and above-average volume.
type BOS struct {
	cfg BOSConfig
}

func NewBOS(cfg BOSConfig) *BOS {
	return &BOS{cfg: cfg}
}

func (d *BOS) GetName() string { return "smc_bos" }

func (d *BOS) GetRequiredPeriods() int { return 30 }

func (d *BOS) Evaluate(data []types.OHLCV) signal.Signal {
	if len(data) < d.GetRequiredPeriods() {
		return holdShortWindow(d.GetName(), data)
	}

	// Swings confirm only once strength bars have printed on the right, so
	// the current bar cannot qualify its own break level.
	prior := data[:len(data)-1]
	highs, lows := indicators.SwingPoints(prior, d.cfg.SwingStrength)

	bar := data[len(data)-1]
	ts := lastTimestamp(data)
	avgVol := averageVolume(data[len(data)-21:len(data)-1], 20)
	volOK := avgVol == 0 || bar.Volume >= avgVol*d.cfg.VolumeMultiplier

	if len(highs) > 0 {
		level := prior[highs[len(highs)-1]].High
		displacement := (bar.Close - level) / level
		if displacement >= d.cfg.MinDisplacement {
			if !volOK {
				s := signal.NewHold(ts, "structure break on weak volume")
				s.SetMeta("bos_level", level)
				return s
			}
			conf := 0.5 + math.Min(0.25, displacement*50) + volumeBonus(bar.Volume, avgVol)
			s := signal.New(signal.ActionBuy, clampConfidence(conf), ts)
			s.AddReason("close %.4f broke swing high %.4f by %.2f%%", bar.Close, level, displacement*100)
			s.AddTag("SMC:BOS_BULL")
			s.SetMeta("bos_level", level)
			s.SetMeta("displacement", displacement)
			return s
		}
	}

	if len(lows) > 0 {
		level := prior[lows[len(lows)-1]].Low
		displacement := (level - bar.Close) / level
		if displacement >= d.cfg.MinDisplacement {
			if !volOK {
				s := signal.NewHold(ts, "structure break on weak volume")
				s.SetMeta("bos_level", level)
				return s
			}
			conf := 0.5 + math.Min(0.25, displacement*50) + volumeBonus(bar.Volume, avgVol)
			s := signal.New(signal.ActionSell, clampConfidence(conf), ts)
			s.AddReason("close %.4f broke swing low %.4f by %.2f%%", bar.Close, level, displacement*100)
			s.AddTag("SMC:BOS_BEAR")
			s.SetMeta("bos_level", level)
			s.SetMeta("displacement", displacement)
			return s
		}
	}

	return signal.NewHold(ts, "structure intact")
}

func averageVolume(data []types.OHLCV, maxBars int) float64 {
	if len(data) == 0 {
		return 0
	}
	if len(data) > maxBars {
		data = data[len(data)-maxBars:]
	}
	sum := 0.0
	for _, bar := range data {
		sum += bar.Volume
	}
	return sum / float64(len(data))
}

func volumeBonus(volume, average float64) float64 {
	if average == 0 {
		return 0
	}
	return math.Min(0.1, (volume/average-1)*0.05)
}
