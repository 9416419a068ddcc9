package risk

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rgould/quantrisk/broker"
	"github.com/rgould/quantrisk/sizing"
)

func testRiskConfig() Config {
	return Config{
		DailyRiskCap:          500,
		CorrelationThreshold:  0.7,
		CorrelatedExposureCap: 20000,
		HaltDrawdownPercent:   20,
		ResumeDrawdownPercent: 15,
		WarningMarginPercent:  10,
	}
}

func newTestManager(t *testing.T, cfg Config, corr Correlator) *Manager {
	t.Helper()
	return NewManager(cfg, corr, zerolog.Nop())
}

func acctWithDrawdown(dd float64) broker.AccountState {
	return broker.AccountState{
		Balance:         10000,
		Equity:          10000 * (1 - dd/100),
		PeakEquity:      10000,
		DrawdownPercent: dd,
		Time:            time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func proposal(symbol string, risk, units, price float64, at time.Time) sizing.Decision {
	return sizing.Decision{
		SignalID:     "S1",
		Symbol:       symbol,
		Time:         at,
		AdjustedSize: units,
		Price:        price,
		RiskAmount:   risk,
	}
}

func TestEvaluateAllowsWithinLimits(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testRiskConfig(), nil)
	acct := acctWithDrawdown(2)

	v := m.Evaluate(acct, proposal("SPY", 100, 10, 100, acct.Time), nil)
	assert.True(t, v.Allow)
	assert.Equal(t, ReasonNone, v.Reason)
	assert.Equal(t, StatusNormal, v.Status)
	assert.InDelta(t, 100.0, v.DailyRiskUsed, 1e-9)
}

func TestEvaluateDailyBudget(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testRiskConfig(), nil)
	acct := acctWithDrawdown(2)

	// Spend 450 of the 500 budget.
	d := proposal("SPY", 450, 10, 100, acct.Time)
	v := m.Evaluate(acct, d, nil)
	assert.True(t, v.Allow)
	m.Commit(d)
	assert.InDelta(t, 450.0, m.CommittedToday(), 1e-9)

	// Another 100 would breach it.
	v = m.Evaluate(acct, proposal("SPY", 100, 10, 100, acct.Time), nil)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonDailyRiskExceeded, v.Reason)
	assert.Equal(t, StatusWarning, v.Status)

	// 50 exactly fills the budget and passes.
	v = m.Evaluate(acct, proposal("SPY", 50, 10, 100, acct.Time), nil)
	assert.True(t, v.Allow)
	// Right at the cap the verdict carries a warning.
	assert.Equal(t, StatusWarning, v.Status)
}

func TestEvaluateDailyBudgetRollsOver(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testRiskConfig(), nil)
	acct := acctWithDrawdown(2)

	d1 := proposal("SPY", 500, 10, 100, acct.Time)
	assert.True(t, m.Evaluate(acct, d1, nil).Allow)
	m.Commit(d1)

	// Same day: budget exhausted.
	v := m.Evaluate(acct, proposal("SPY", 1, 1, 100, acct.Time), nil)
	assert.False(t, v.Allow)

	// Next UTC day: the budget resets.
	nextDay := acct.Time.Add(24 * time.Hour)
	acct.Time = nextDay
	v = m.Evaluate(acct, proposal("SPY", 400, 10, 100, nextDay), nil)
	assert.True(t, v.Allow)
	assert.InDelta(t, 400.0, v.DailyRiskUsed, 1e-9)
}

func TestEvaluateCorrelatedExposure(t *testing.T) {
	t.Parallel()

	corr := StaticCorrelations{
		"SPY": {"QQQ": 0.9, "GLD": 0.1},
	}
	m := newTestManager(t, testRiskConfig(), corr)
	acct := acctWithDrawdown(2)

	open := []broker.Position{
		{Symbol: "QQQ", Units: 40, EntryPrice: 400},  // 16k, correlated
		{Symbol: "GLD", Units: 100, EntryPrice: 180}, // uncorrelated, ignored
	}

	// 16k existing + 5k proposed breaches the 20k cap.
	v := m.Evaluate(acct, proposal("SPY", 100, 50, 100, acct.Time), open)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonCorrelatedExposure, v.Reason)
	assert.InDelta(t, 16000.0, v.CorrelatedNotion, 1e-9)

	// A smaller position fits under the cap.
	v = m.Evaluate(acct, proposal("SPY", 100, 10, 100, acct.Time), open)
	assert.True(t, v.Allow)
}

func TestEvaluateSelfCorrelation(t *testing.T) {
	t.Parallel()

	// No matrix at all: a symbol is still perfectly correlated with itself.
	m := newTestManager(t, testRiskConfig(), nil)
	acct := acctWithDrawdown(2)

	open := []broker.Position{{Symbol: "SPY", Units: 190, EntryPrice: 100}}

	v := m.Evaluate(acct, proposal("SPY", 100, 20, 100, acct.Time), open)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonCorrelatedExposure, v.Reason)
}

func TestEvaluateDrawdownHalt(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testRiskConfig(), nil)

	// Drawdown 21% with a tiny 1-unit proposal: neither budget rule fires,
	// the halt does, and the status is HALTED.
	v := m.Evaluate(acctWithDrawdown(21), proposal("SPY", 1, 1, 100, time.Time{}), nil)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonDrawdownHalt, v.Reason)
	assert.Equal(t, StatusHalted, v.Status)
	assert.True(t, m.Halted())
}

func TestHaltStatusDominatesOtherRejections(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testRiskConfig(), nil)

	// Halted and over the daily budget: the reason is the first rule that
	// fired but the status stays HALTED.
	v := m.Evaluate(acctWithDrawdown(25), proposal("SPY", 600, 10, 100, time.Time{}), nil)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonDailyRiskExceeded, v.Reason)
	assert.Equal(t, StatusHalted, v.Status)
}

func TestHaltHysteresis(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testRiskConfig(), nil)
	d := proposal("SPY", 1, 1, 100, time.Time{})

	// Engage at 21%.
	v := m.Evaluate(acctWithDrawdown(21), d, nil)
	assert.False(t, v.Allow)
	assert.True(t, m.Halted())

	// Recovery to 17% is inside the hysteresis band: still halted.
	v = m.Evaluate(acctWithDrawdown(17), d, nil)
	assert.False(t, v.Allow)
	assert.Equal(t, ReasonDrawdownHalt, v.Reason)
	assert.Equal(t, StatusHalted, v.Status)
	assert.True(t, m.Halted())

	// Below the 15% resume threshold the halt releases.
	v = m.Evaluate(acctWithDrawdown(14), d, nil)
	assert.True(t, v.Allow)
	assert.False(t, m.Halted())

	// And it re-engages on the next breach.
	v = m.Evaluate(acctWithDrawdown(20), d, nil)
	assert.False(t, v.Allow)
	assert.True(t, m.Halted())
}

func TestEvaluateWarningMargin(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testRiskConfig(), nil)
	acct := acctWithDrawdown(2)

	// 460 of 500 is inside the 10% warning margin but under the cap.
	v := m.Evaluate(acct, proposal("SPY", 460, 10, 100, acct.Time), nil)
	assert.True(t, v.Allow)
	assert.Equal(t, ReasonNone, v.Reason)
	assert.Equal(t, StatusWarning, v.Status)
}

func TestStaticCorrelationsSymmetry(t *testing.T) {
	t.Parallel()

	corr := StaticCorrelations{"SPY": {"QQQ": 0.9}}

	assert.Equal(t, 0.9, corr.Correlation("SPY", "QQQ"))
	assert.Equal(t, 0.9, corr.Correlation("QQQ", "SPY"))
	assert.Equal(t, 1.0, corr.Correlation("SPY", "SPY"))
	assert.Equal(t, 0.0, corr.Correlation("SPY", "GLD"))
}
