// Package risk enforces the account-wide risk budget. It can veto a sizing
// decision outright; it never resizes one.
package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rgould/quantrisk/broker"
	"github.com/rgould/quantrisk/sizing"
)

// Manager evaluates proposed decisions against the configured limits. It is
// stateful: risk committed during the current UTC day and the drawdown halt
// latch both survive across evaluations.
type Manager struct {
	cfg  Config
	corr Correlator
	log  zerolog.Logger

	mu             sync.Mutex
	committedToday float64
	day            time.Time // UTC midnight anchor for the daily budget
	halted         bool
}

func NewManager(cfg Config, corr Correlator, log zerolog.Logger) *Manager {
	if corr == nil {
		corr = StaticCorrelations{}
	}
	return &Manager{
		cfg:  cfg,
		corr: corr,
		log:  log.With().Str("component", "risk").Logger(),
	}
}

// Evaluate applies the risk rules in order; the first failure wins. Rules:
//  1. daily risk budget
//  2. correlated exposure
//  3. drawdown halt (sticky until drawdown recovers below the resume
//     threshold)
//
// When nothing fires the verdict is NORMAL, or WARNING when usage is within
// the configured margin of any cap.
func (m *Manager) Evaluate(acct broker.AccountState, proposed sizing.Decision, open []broker.Position) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked(decisionTime(proposed, acct))
	m.updateHaltLocked(acct)

	v := Verdict{Allow: true, Status: StatusNormal}
	if m.halted {
		// A latched halt dominates the status whatever else fires.
		v.Status = StatusHalted
	}

	// Rule 1: daily budget.
	v.DailyRiskUsed = m.committedToday + proposed.RiskAmount
	if v.DailyRiskUsed > m.cfg.DailyRiskCap {
		return m.reject(v, ReasonDailyRiskExceeded)
	}

	// Rule 2: correlated exposure.
	v.CorrelatedNotion = m.correlatedExposure(proposed.Symbol, open)
	proposedNotional := proposed.AdjustedSize * proposed.Price
	if v.CorrelatedNotion+proposedNotional > m.cfg.CorrelatedExposureCap {
		return m.reject(v, ReasonCorrelatedExposure)
	}

	// Rule 3: drawdown halt.
	if m.halted {
		return m.reject(v, ReasonDrawdownHalt)
	}

	if m.nearCap(v.DailyRiskUsed, m.cfg.DailyRiskCap) ||
		m.nearCap(v.CorrelatedNotion+proposedNotional, m.cfg.CorrelatedExposureCap) {
		v.Status = StatusWarning
	}
	return v
}

// Commit records executed risk against the daily budget. Call it after the
// execution collaborator confirms the trade went out.
func (m *Manager) Commit(d sizing.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(d.Time)
	m.committedToday += d.RiskAmount
}

// Halted reports the current latch state.
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// CommittedToday returns the risk already spent in the current UTC day.
func (m *Manager) CommittedToday() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committedToday
}

func (m *Manager) reject(v Verdict, r Reason) Verdict {
	v.Allow = false
	v.Reason = r
	if v.Status != StatusHalted {
		v.Status = StatusWarning
	}
	if r == ReasonDrawdownHalt {
		v.Status = StatusHalted
	}
	m.log.Warn().Str("reason", string(r)).Str("status", string(v.Status)).Msg("trade rejected")
	return v
}

// updateHaltLocked maintains the sticky halt latch with hysteresis: engage
// at HaltDrawdownPercent, release only below ResumeDrawdownPercent.
func (m *Manager) updateHaltLocked(acct broker.AccountState) {
	switch {
	case !m.halted && acct.DrawdownPercent >= m.cfg.HaltDrawdownPercent:
		m.halted = true
		m.log.Error().Float64("drawdown_pct", acct.DrawdownPercent).Msg("drawdown halt engaged")
	case m.halted && acct.DrawdownPercent < m.cfg.ResumeDrawdownPercent:
		m.halted = false
		m.log.Info().Float64("drawdown_pct", acct.DrawdownPercent).Msg("drawdown halt released")
	}
}

// rolloverLocked resets the daily budget when the UTC day changes.
func (m *Manager) rolloverLocked(now time.Time) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.Equal(m.day) {
		m.day = day
		m.committedToday = 0
	}
}

func (m *Manager) correlatedExposure(symbol string, open []broker.Position) float64 {
	var total float64
	for _, p := range open {
		if m.corr.Correlation(symbol, p.Symbol) > m.cfg.CorrelationThreshold {
			total += p.Notional(p.EntryPrice)
		}
	}
	return total
}

func (m *Manager) nearCap(used, limit float64) bool {
	if limit <= 0 || m.cfg.WarningMarginPercent <= 0 {
		return false
	}
	return used >= limit*(1-m.cfg.WarningMarginPercent/100)
}

func decisionTime(d sizing.Decision, acct broker.AccountState) time.Time {
	if !d.Time.IsZero() {
		return d.Time
	}
	return acct.Time
}
