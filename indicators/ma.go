package indicators

import (
	"fmt"

	"github.com/rgould/quantrisk/market"
)

// SMA calculates the Simple Moving Average of closes for the given period.
func SMA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close
	}
	return sum / float64(period), nil
}

// EMA is a streaming Exponential Moving Average over bar closes.
type EMA struct {
	period int
	mult   float64
	value  float64
	count  int
	seed   float64
}

func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		mult:   2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *EMA) Warmup() int { return e.period }

func (e *EMA) Reset() {
	e.value = 0
	e.count = 0
	e.seed = 0
}

func (e *EMA) Update(b market.Bar) {
	e.count++
	if e.count < e.period {
		e.seed += b.Close
		return
	}
	if e.count == e.period {
		// Seed with the SMA of the first period closes.
		e.value = (e.seed + b.Close) / float64(e.period)
		return
	}
	e.value = (b.Close-e.value)*e.mult + e.value
}

func (e *EMA) Ready() bool { return e.count >= e.period }

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.value
}
