// Package monitor compares a rolling window of live trading results to the
// backtested baseline and raises an alert payload when performance drifts
// beyond the configured thresholds. It only observes; trading action stays
// with the risk manager and the operator.
package monitor

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rgould/quantrisk/backtest"
	"github.com/rgould/quantrisk/internal/metrics"
	"github.com/rgould/quantrisk/journal"
)

// Baseline is the backtest expectation the live window is held against.
type Baseline struct {
	Sharpe         float64
	MaxDrawdownPct float64
	WinRate        float64
}

// BaselineFromMetrics lifts a backtest summary into a monitor baseline.
func BaselineFromMetrics(m backtest.Metrics) Baseline {
	return Baseline{
		Sharpe:         m.Sharpe,
		MaxDrawdownPct: m.MaxDrawdownPct,
		WinRate:        m.WinRate,
	}
}

// Window is the rolling slice of live results under inspection.
type Window struct {
	From   time.Time
	To     time.Time
	Trades []journal.TradeRecord
	Equity []journal.EquitySnapshot
}

// Config sets the degradation thresholds.
type Config struct {
	// Live Sharpe below this fraction of the baseline Sharpe degrades.
	SharpeFraction float64 `yaml:"sharpe_fraction" default:"0.5" validate:"gt=0,lte=1"`
	// Live drawdown above baseline max plus this margin (percentage
	// points) degrades.
	DrawdownMarginPct float64 `yaml:"drawdown_margin_pct" default:"5" validate:"gte=0"`
	// Live win rate this many points below baseline degrades.
	WinRateMarginPct float64 `yaml:"win_rate_margin_pct" default:"15" validate:"gte=0"`
	// Minimum trades before the window is judged at all.
	MinTrades int `yaml:"min_trades" default:"10" validate:"gt=0"`

	Annualization float64 `yaml:"annualization" default:"252" validate:"gt=0"`
}

// Severity of an alert.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is the payload handed to the notification collaborator.
type Alert struct {
	Severity Severity  `json:"severity"`
	Summary  string    `json:"summary"`
	Details  []string  `json:"details"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

// Report is the outcome of one check.
type Report struct {
	Degraded bool
	Details  []string
	Alert    *Alert

	LiveSharpe      float64
	LiveDrawdownPct float64
	LiveWinRate     float64
}

// Monitor runs scheduled degradation checks.
type Monitor struct {
	cfg     Config
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(cfg Config, m *metrics.Metrics, log zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		metrics: m,
		log:     log.With().Str("component", "monitor").Logger(),
	}
}

// Check compares live metrics to the baseline. Too few trades is a clean
// "not degraded" result, not an error: the window simply has nothing to say
// yet.
func (m *Monitor) Check(win Window, base Baseline) Report {
	rep := Report{}

	if len(win.Trades) < m.cfg.MinTrades {
		m.log.Debug().Int("trades", len(win.Trades)).Msg("window below minimum, skipping check")
		return rep
	}

	rep.LiveWinRate = winRate(win.Trades)
	rep.LiveSharpe = equitySharpe(win.Equity, m.cfg.Annualization)
	rep.LiveDrawdownPct = equityDrawdown(win.Equity)

	if base.Sharpe > 0 && rep.LiveSharpe < base.Sharpe*m.cfg.SharpeFraction {
		rep.Details = append(rep.Details, fmt.Sprintf(
			"live Sharpe %.2f below %.0f%% of baseline %.2f",
			rep.LiveSharpe, m.cfg.SharpeFraction*100, base.Sharpe))
	}
	if rep.LiveDrawdownPct > base.MaxDrawdownPct+m.cfg.DrawdownMarginPct {
		rep.Details = append(rep.Details, fmt.Sprintf(
			"live drawdown %.1f%% exceeds backtested max %.1f%% by more than %.1f points",
			rep.LiveDrawdownPct, base.MaxDrawdownPct, m.cfg.DrawdownMarginPct))
	}
	if delta := (base.WinRate - rep.LiveWinRate) * 100; delta > m.cfg.WinRateMarginPct {
		rep.Details = append(rep.Details, fmt.Sprintf(
			"live win rate %.0f%% trails baseline %.0f%% by %.0f points",
			rep.LiveWinRate*100, base.WinRate*100, delta))
	}

	if len(rep.Details) == 0 {
		m.observe(nil)
		return rep
	}

	rep.Degraded = true
	rep.Alert = &Alert{
		Severity: severity(len(rep.Details)),
		Summary:  fmt.Sprintf("live performance degraded: %d threshold(s) breached", len(rep.Details)),
		Details:  rep.Details,
		From:     win.From,
		To:       win.To,
	}
	m.observe(rep.Alert)

	m.log.Warn().
		Str("severity", string(rep.Alert.Severity)).
		Strs("details", rep.Details).
		Msg("degradation detected")
	return rep
}

func (m *Monitor) observe(alert *Alert) {
	if m.metrics == nil {
		return
	}
	if alert == nil {
		m.metrics.MonitorSeverity.Set(0)
		return
	}
	m.metrics.DegradedChecks.Inc()
	m.metrics.MonitorSeverity.Set(severityValue(alert.Severity))
}

func severity(breaches int) Severity {
	switch {
	case breaches >= 2:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

func severityValue(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

func winRate(trades []journal.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.RealizedPL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

func equitySharpe(points []journal.EquitySnapshot, annualization float64) float64 {
	if len(points) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Equity
		if prev <= 0 {
			continue
		}
		rets = append(rets, (points[i].Equity-prev)/prev)
	}
	if len(rets) < 2 {
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
	std := math.Sqrt(varsum / float64(len(rets)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(annualization)
}

func equityDrawdown(points []journal.EquitySnapshot) float64 {
	var peak, maxDD float64
	for _, p := range points {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
