package indicators

import (
	"fmt"

	"github.com/rgould/quantrisk/market"
)

// Trend direction reported by SuperTrend.
type Trend int8

const (
	TrendNone Trend = 0
	TrendUp   Trend = 1
	TrendDown Trend = -1
)

// SuperTrend is a streaming ATR-band trend indicator. The band midpoint is
// (high+low)/2 and the offset is Factor*ATR; the active band ratchets toward
// price and the trend flips when a close crosses it.
type SuperTrend struct {
	Factor float64
	atr    *ATR

	upper float64
	lower float64
	trend Trend

	prevClose float64
	hasPrev   bool
}

func NewSuperTrend(atrLen int, factor float64) *SuperTrend {
	return &SuperTrend{
		Factor: factor,
		atr:    NewATR(atrLen),
	}
}

func (s *SuperTrend) Name() string {
	return fmt.Sprintf("SuperTrend(%d,%.2f)", s.atr.period, s.Factor)
}

func (s *SuperTrend) Warmup() int { return s.atr.Warmup() }

func (s *SuperTrend) Reset() {
	s.atr.Reset()
	s.upper = 0
	s.lower = 0
	s.trend = TrendNone
	s.prevClose = 0
	s.hasPrev = false
}

func (s *SuperTrend) Update(b market.Bar) {
	s.atr.Update(b)
	if !s.atr.Ready() {
		s.prevClose = b.Close
		s.hasPrev = true
		return
	}

	mid := (b.High + b.Low) / 2
	offset := s.Factor * s.atr.Value()
	basicUpper := mid + offset
	basicLower := mid - offset

	// Bands only ratchet toward price; they loosen again after a flip.
	if s.upper == 0 || basicUpper < s.upper || (s.hasPrev && s.prevClose > s.upper) {
		s.upper = basicUpper
	}
	if s.lower == 0 || basicLower > s.lower || (s.hasPrev && s.prevClose < s.lower) {
		s.lower = basicLower
	}

	switch s.trend {
	case TrendNone:
		if b.Close > s.upper {
			s.trend = TrendUp
		} else if b.Close < s.lower {
			s.trend = TrendDown
		}
	case TrendUp:
		if b.Close < s.lower {
			s.trend = TrendDown
			s.upper = basicUpper
		}
	case TrendDown:
		if b.Close > s.upper {
			s.trend = TrendUp
			s.lower = basicLower
		}
	}

	s.prevClose = b.Close
	s.hasPrev = true
}

func (s *SuperTrend) Ready() bool { return s.atr.Ready() }

// Trend returns the current direction; TrendNone until the first flip.
func (s *SuperTrend) Trend() Trend { return s.trend }

// Stop returns the active band price: the trailing stop for the current
// trend direction.
func (s *SuperTrend) Stop() float64 {
	switch s.trend {
	case TrendUp:
		return s.lower
	case TrendDown:
		return s.upper
	}
	return 0
}

func (s *SuperTrend) ATRValue() float64 { return s.atr.Value() }
