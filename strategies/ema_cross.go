package strategies

import (
	"fmt"

	"github.com/rgould/quantrisk/indicators"
	"github.com/rgould/quantrisk/market"
)

// EMACrossConfig parameterizes the fast/slow EMA crossover.
type EMACrossConfig struct {
	FastPeriod int `json:"fast"`
	SlowPeriod int `json:"slow"`
}

// EMACross signals on crossovers of a fast EMA over a slow EMA.
// It enters only on the cross itself, never mid-trend.
type EMACross struct {
	cfg  EMACrossConfig
	fast *indicators.EMA
	slow *indicators.EMA

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(cfg EMACrossConfig) *EMACross {
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = 20
	}
	if cfg.SlowPeriod <= cfg.FastPeriod {
		cfg.SlowPeriod = cfg.FastPeriod * 2
	}
	return &EMACross{
		cfg:  cfg,
		fast: indicators.NewEMA(cfg.FastPeriod),
		slow: indicators.NewEMA(cfg.SlowPeriod),
	}
}

func (s *EMACross) Name() string {
	return fmt.Sprintf("ema-cross(%d,%d)", s.cfg.FastPeriod, s.cfg.SlowPeriod)
}

func (s *EMACross) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.lastDiff = 0
	s.haveLastDiff = false
}

func (s *EMACross) OnBar(bar market.Bar) *Signal {
	s.fast.Update(bar)
	s.slow.Update(bar)
	if !s.fast.Ready() || !s.slow.Ready() {
		return nil
	}

	diff := s.fast.Value() - s.slow.Value()
	defer func() {
		s.lastDiff = diff
		s.haveLastDiff = true
	}()

	if !s.haveLastDiff {
		return nil
	}

	switch {
	case s.lastDiff <= 0 && diff > 0:
		return &Signal{Direction: 1, Reason: "ema cross up"}
	case s.lastDiff >= 0 && diff < 0:
		return &Signal{Direction: -1, Reason: "ema cross down"}
	}
	return nil
}
