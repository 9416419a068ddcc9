// Package broker defines the account/brokerage collaborator boundary. The
// actual brokerage client lives outside this repository; the sizing and risk
// layers only consume the snapshots defined here.
package broker

import (
	"context"
	"time"
)

// AccountState is a point-in-time snapshot of the trading account.
// PeakEquity is monotonically non-decreasing except on explicit reset.
type AccountState struct {
	Balance         float64
	Equity          float64
	OpenRisk        float64 // risk committed to open positions
	PeakEquity      float64
	DrawdownPercent float64
	Time            time.Time
}

// UpdateEquity folds a fresh equity reading into the snapshot, advancing the
// peak and recomputing drawdown.
func (a *AccountState) UpdateEquity(equity float64) {
	a.Equity = equity
	if equity > a.PeakEquity {
		a.PeakEquity = equity
	}
	if a.PeakEquity > 0 {
		a.DrawdownPercent = (a.PeakEquity - equity) / a.PeakEquity * 100
	}
}

// ResetPeak re-anchors the drawdown reference, e.g. after a deposit.
func (a *AccountState) ResetPeak() {
	a.PeakEquity = a.Equity
	a.DrawdownPercent = 0
}

// Position is an open position as reported by the brokerage.
type Position struct {
	Symbol     string
	Units      float64 // >0 long, <0 short
	EntryPrice float64
	RiskAmount float64 // account-currency risk if the stop is hit
	OpenTime   time.Time
}

// Notional returns the absolute exposure of the position at price.
func (p Position) Notional(price float64) float64 {
	n := p.Units * price
	if n < 0 {
		return -n
	}
	return n
}

// AccountSource is the pull interface to the brokerage collaborator.
// Reads are fallible, retryable point reads.
type AccountSource interface {
	Account(ctx context.Context) (AccountState, error)
	OpenPositions(ctx context.Context) ([]Position, error)
}
