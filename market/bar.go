package market

import "time"

// Bar is one OHLCV price bar. Bars are immutable once recorded and ordered
// by Time within a symbol.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// TrueRange returns the true range of b against the previous bar's close.
func (b Bar) TrueRange(prevClose float64) float64 {
	hl := b.High - b.Low
	hc := abs(b.High - prevClose)
	lc := abs(b.Low - prevClose)
	return max3(hl, hc, lc)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
