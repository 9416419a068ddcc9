package market

import (
	"fmt"
	"time"
)

// BarSet holds the time-ordered bar history for a single symbol.
// Appends must be strictly increasing in time; out-of-order data is a bug in
// the feed, not something to repair here.
type BarSet struct {
	Symbol   string
	Interval time.Duration // expected spacing between bars; 0 disables gap checks
	bars     []Bar
}

func NewBarSet(symbol string, interval time.Duration) *BarSet {
	return &BarSet{Symbol: symbol, Interval: interval}
}

// Append adds a bar to the set. The bar must match the set's symbol and be
// strictly later than the last recorded bar.
func (s *BarSet) Append(b Bar) error {
	if b.Symbol != s.Symbol {
		return fmt.Errorf("bar symbol %q does not match set %q", b.Symbol, s.Symbol)
	}
	if n := len(s.bars); n > 0 && !b.Time.After(s.bars[n-1].Time) {
		return fmt.Errorf("out-of-order bar at %s (last %s)",
			b.Time.Format(time.RFC3339), s.bars[n-1].Time.Format(time.RFC3339))
	}
	s.bars = append(s.bars, b)
	return nil
}

func (s *BarSet) Len() int    { return len(s.bars) }
func (s *BarSet) Bars() []Bar { return s.bars }

// At returns the i-th bar.
func (s *BarSet) At(i int) Bar { return s.bars[i] }

// Last returns the most recent bar, or false when the set is empty.
func (s *BarSet) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Window returns the trailing n bars (fewer if the set is shorter).
func (s *BarSet) Window(n int) []Bar {
	if n >= len(s.bars) {
		return s.bars
	}
	return s.bars[len(s.bars)-n:]
}

// Gap describes missing bars between two recorded neighbours.
type Gap struct {
	After   time.Time
	Before  time.Time
	Missing int
}

// Gaps reports the holes in the set given its expected interval.
// An empty result means the series is contiguous.
func (s *BarSet) Gaps() []Gap {
	if s.Interval <= 0 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(s.bars); i++ {
		dt := s.bars[i].Time.Sub(s.bars[i-1].Time)
		if dt <= s.Interval {
			continue
		}
		missing := int(dt/s.Interval) - 1
		if missing > 0 {
			gaps = append(gaps, Gap{
				After:   s.bars[i-1].Time,
				Before:  s.bars[i].Time,
				Missing: missing,
			})
		}
	}
	return gaps
}

// Returns computes simple close-to-close returns over the whole set.
func (s *BarSet) Returns() []float64 {
	if len(s.bars) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(s.bars)-1)
	for i := 1; i < len(s.bars); i++ {
		prev := s.bars[i-1].Close
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, (s.bars[i].Close-prev)/prev)
	}
	return rets
}
