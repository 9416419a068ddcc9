package strategies

import (
	"fmt"

	"github.com/rgould/quantrisk/indicators"
	"github.com/rgould/quantrisk/market"
)

// SuperTrendConfig parameterizes the trend-flip strategy. Factor widens the
// ATR bands; larger values trade less often.
type SuperTrendConfig struct {
	ATRLen int     `json:"atr_len"`
	Factor float64 `json:"fact"`
}

// SuperTrendStrategy goes long on an up-flip and short on a down-flip of
// the SuperTrend bands, suggesting the opposite band as the stop.
type SuperTrendStrategy struct {
	cfg SuperTrendConfig
	st  *indicators.SuperTrend

	lastTrend indicators.Trend
}

func NewSuperTrend(cfg SuperTrendConfig) *SuperTrendStrategy {
	if cfg.ATRLen <= 0 {
		cfg.ATRLen = 14
	}
	if cfg.Factor <= 0 {
		cfg.Factor = 3.0
	}
	return &SuperTrendStrategy{
		cfg: cfg,
		st:  indicators.NewSuperTrend(cfg.ATRLen, cfg.Factor),
	}
}

func (s *SuperTrendStrategy) Name() string {
	return fmt.Sprintf("supertrend(%d,%.2f)", s.cfg.ATRLen, s.cfg.Factor)
}

func (s *SuperTrendStrategy) Reset() {
	s.st.Reset()
	s.lastTrend = indicators.TrendNone
}

func (s *SuperTrendStrategy) OnBar(bar market.Bar) *Signal {
	s.st.Update(bar)
	if !s.st.Ready() {
		return nil
	}

	trend := s.st.Trend()
	defer func() { s.lastTrend = trend }()

	// Only the flip itself is a signal; riding the trend is the position's
	// job, not the strategy's.
	if trend == s.lastTrend || trend == indicators.TrendNone {
		return nil
	}

	switch trend {
	case indicators.TrendUp:
		return &Signal{
			Direction: 1,
			Stop:      s.st.Stop(),
			Reason:    "supertrend flip up",
		}
	case indicators.TrendDown:
		return &Signal{
			Direction: -1,
			Stop:      s.st.Stop(),
			Reason:    "supertrend flip down",
		}
	}
	return nil
}
