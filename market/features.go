package market

import (
	"fmt"
	"math"
	"time"
)

// FeatureWindow reduces a fixed-length trailing window of bars to the scalar
// features the regime detector clusters on. It is recomputed from its source
// bars on every new bar and never persisted on its own.
type FeatureWindow struct {
	Symbol string
	End    time.Time

	ATR         float64 // Wilder-smoothed average true range
	ATRPercent  float64 // ATR relative to the last close
	VolumeRatio float64 // last-bar volume vs window average
	ReturnStd   float64 // stddev of close-to-close returns in the window
}

// FeatureConfig controls feature extraction.
type FeatureConfig struct {
	WindowLen int `yaml:"window_len" default:"20" validate:"gt=1"`
	ATRLen    int `yaml:"atr_len" default:"14" validate:"gt=0"`
}

// ExtractFeatures computes the FeatureWindow ending at the last bar of bars.
// bars must contain at least cfg.WindowLen entries and one extra bar for the
// first true range.
func ExtractFeatures(bars []Bar, cfg FeatureConfig) (FeatureWindow, error) {
	need := cfg.WindowLen + 1
	if cfg.ATRLen+1 > need {
		need = cfg.ATRLen + 1
	}
	if len(bars) < need {
		return FeatureWindow{}, fmt.Errorf("need %d bars for features, got %d", need, len(bars))
	}

	last := bars[len(bars)-1]
	win := bars[len(bars)-cfg.WindowLen:]

	atr := wilderATR(bars, cfg.ATRLen)

	atrPct := 0.0
	if last.Close != 0 {
		atrPct = atr / last.Close
	}

	var volSum float64
	for _, b := range win {
		volSum += b.Volume
	}
	volAvg := volSum / float64(len(win))
	volRatio := 1.0
	if volAvg > 0 {
		volRatio = last.Volume / volAvg
	}

	return FeatureWindow{
		Symbol:      last.Symbol,
		End:         last.Time,
		ATR:         atr,
		ATRPercent:  atrPct,
		VolumeRatio: volRatio,
		ReturnStd:   returnStd(win),
	}, nil
}

// RollingFeatures computes one FeatureWindow per bar once enough history has
// accumulated. Used to build regime training sets from a BarSet.
func RollingFeatures(bars []Bar, cfg FeatureConfig) []FeatureWindow {
	var out []FeatureWindow
	for i := range bars {
		fw, err := ExtractFeatures(bars[:i+1], cfg)
		if err != nil {
			continue
		}
		out = append(out, fw)
	}
	return out
}

// Vector returns the feature values in clustering order.
func (f FeatureWindow) Vector() []float64 {
	return []float64{f.ATRPercent, f.VolumeRatio, f.ReturnStd}
}

func wilderATR(bars []Bar, period int) float64 {
	if len(bars) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		trs = append(trs, bars[i].TrueRange(bars[i-1].Close))
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += trs[i]
	}
	atr := sum / float64(period)

	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}
	return atr
}

func returnStd(bars []Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}
		rets = append(rets, (bars[i].Close-prev)/prev)
	}
	if len(rets) == 0 {
		return 0
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var varsum float64
	for _, r := range rets {
		d := r - mean
		varsum += d * d
	}
	return math.Sqrt(varsum / float64(len(rets)))
}
