// Package sizing converts a raw trade signal plus account state into a
// bounded position size. Every intermediate factor is kept on the decision
// so the audit trail can explain how a size came to be.
package sizing

import (
	"time"

	"github.com/rgould/quantrisk/broker"
	"github.com/rgould/quantrisk/regime"
)

// Request is the sizing input derived from a raw signal.
type Request struct {
	SignalID       string
	Symbol         string
	Direction      int     // +1 long, -1 short
	RequestedUnits float64 // size asked for by the signal, 0 if unspecified
	Price          float64 // current price, used to convert risk to units
	Stop           float64 // stop price, 0 if the signal carried none
}

// Performance is the trailing live performance fed into the secondary
// adjustment factor.
type Performance struct {
	WinRate float64 // 0..1 over the trailing window
	Trades  int     // trades in the window; below MinTrades the factor is neutral
}

// Decision is the immutable sizing output, one per incoming signal.
type Decision struct {
	SignalID     string
	Symbol       string
	Time         time.Time
	OriginalSize float64
	AdjustedSize float64
	Price        float64
	RiskAmount   float64
	RiskPercent  float64
	RegimeID     int
	ModelVersion string

	// Audit trail of the applied factors.
	RegimeFactor      float64
	PerformanceFactor float64
}

// Skip reports whether the decision sized the trade to zero. A zero size is
// a valid "stand aside" outcome, not an error.
func (d Decision) Skip() bool { return d.AdjustedSize == 0 }

// Config bounds the sizer. Regime factors must be monotone: high volatility
// shrinks the base risk, low volatility may grow it.
type Config struct {
	BaseRiskPercent float64 `yaml:"base_risk_percent" default:"1.0" validate:"gt=0,lte=10"`
	MaxRiskPercent  float64 `yaml:"max_risk_percent" default:"2.0" validate:"gt=0,lte=10"`
	MaxUnits        float64 `yaml:"max_units" default:"100000" validate:"gt=0"`

	LowVolFactor    float64 `yaml:"low_vol_factor" default:"1.25" validate:"gt=0"`
	MediumVolFactor float64 `yaml:"medium_vol_factor" default:"1.0" validate:"gt=0"`
	HighVolFactor   float64 `yaml:"high_vol_factor" default:"0.5" validate:"gt=0"`

	// Trailing-performance adjustment, bounded to +/- MaxPerformanceSwing of
	// the base. 0.5 means the factor stays within [0.5, 1.5].
	MaxPerformanceSwing float64 `yaml:"max_performance_swing" default:"0.5" validate:"gte=0,lte=0.5"`
	MinTrades           int     `yaml:"min_trades" default:"10" validate:"gte=0"`

	// DefaultStopPercent supplies a stop distance when the signal has none,
	// as a percentage of price.
	DefaultStopPercent float64 `yaml:"default_stop_percent" default:"2.0" validate:"gt=0"`
}

// Sizer maps {signal, regime, account state, recent performance} to a
// bounded Decision.
type Sizer struct {
	cfg Config
}

func New(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size produces the sizing decision. The result always satisfies
// 0 <= AdjustedSize <= MaxUnits and RiskAmount <= balance * MaxRiskPercent.
func (s *Sizer) Size(req Request, label regime.Label, acct broker.AccountState, perf Performance) Decision {
	base := acct.Balance * s.cfg.BaseRiskPercent / 100

	rf := s.regimeFactor(label.Volatility)
	pf := s.performanceFactor(perf)

	riskAmount := base * rf * pf

	maxRisk := acct.Balance * s.cfg.MaxRiskPercent / 100
	if riskAmount > maxRisk {
		riskAmount = maxRisk
	}
	if riskAmount < 0 {
		riskAmount = 0
	}

	stopDist := s.stopDistance(req)
	units := 0.0
	if stopDist > 0 {
		units = riskAmount / stopDist
	}

	if units > s.cfg.MaxUnits {
		// Clamp units and re-derive the risk actually taken.
		units = s.cfg.MaxUnits
		riskAmount = units * stopDist
	}
	if units < 0 {
		units = 0
		riskAmount = 0
	}

	riskPct := 0.0
	if acct.Balance > 0 {
		riskPct = riskAmount / acct.Balance * 100
	}

	return Decision{
		SignalID:          req.SignalID,
		Symbol:            req.Symbol,
		Time:              label.Time,
		OriginalSize:      req.RequestedUnits,
		AdjustedSize:      units,
		Price:             req.Price,
		RiskAmount:        riskAmount,
		RiskPercent:       riskPct,
		RegimeID:          label.RegimeID,
		ModelVersion:      label.ModelVersion,
		RegimeFactor:      rf,
		PerformanceFactor: pf,
	}
}

func (s *Sizer) regimeFactor(v regime.Volatility) float64 {
	switch v {
	case regime.VolatilityLow:
		return s.cfg.LowVolFactor
	case regime.VolatilityHigh:
		return s.cfg.HighVolFactor
	case regime.VolatilityMedium:
		return s.cfg.MediumVolFactor
	}
	// Unclassified regime sizes at the neutral factor.
	return 1.0
}

// performanceFactor maps trailing win rate into [1-swing, 1+swing] around
// neutral. A 50% win rate is neutral; too few trades stays neutral.
func (s *Sizer) performanceFactor(perf Performance) float64 {
	if perf.Trades < s.cfg.MinTrades || s.cfg.MaxPerformanceSwing == 0 {
		return 1.0
	}
	f := 1.0 + (perf.WinRate-0.5)*2*s.cfg.MaxPerformanceSwing
	if f < 1-s.cfg.MaxPerformanceSwing {
		f = 1 - s.cfg.MaxPerformanceSwing
	}
	if f > 1+s.cfg.MaxPerformanceSwing {
		f = 1 + s.cfg.MaxPerformanceSwing
	}
	return f
}

func (s *Sizer) stopDistance(req Request) float64 {
	if req.Stop > 0 && req.Price > 0 {
		d := req.Price - req.Stop
		if d < 0 {
			d = -d
		}
		if d > 0 {
			return d
		}
	}
	if req.Price > 0 {
		return req.Price * s.cfg.DefaultStopPercent / 100
	}
	return 0
}
