// Package journal persists the audit trail: sizing decisions, risk
// verdicts, regime labels, simulated trades and optimization artifacts.
// Records are flat structs so the store stays decoupled from the domain
// packages that produce them.
package journal

import "time"

// DecisionRecord is one sizing decision with its audit factors.
type DecisionRecord struct {
	SignalID          string
	Symbol            string
	Time              time.Time
	OriginalSize      float64
	AdjustedSize      float64
	RiskAmount        float64
	RiskPercent       float64
	RegimeID          int
	ModelVersion      string
	RegimeFactor      float64
	PerformanceFactor float64
}

// VerdictRecord is the risk manager's answer to a decision.
type VerdictRecord struct {
	SignalID string
	Time     time.Time
	Allow    bool
	Reason   string
	Status   string
}

// RegimeRecord is one classification outcome.
type RegimeRecord struct {
	Symbol            string
	Time              time.Time
	RegimeID          int
	Volatility        string
	OutOfDistribution bool
	ModelVersion      string
}

// TradeRecord is one simulated (or live-reported) round trip.
type TradeRecord struct {
	TradeID    string
	Symbol     string
	Units      float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// EquitySnapshot is one point of an equity curve.
type EquitySnapshot struct {
	Time    time.Time
	Balance float64
	Equity  float64
}

// OptimizationRecord summarizes one optimizer run; the full report lives in
// the JSON artifact referenced by ReportPath.
type OptimizationRecord struct {
	RunID       string
	Time        time.Time
	Strategy    string
	Symbol      string
	Objective   string
	Evaluations int
	BestScore   float64
	OOSScore    float64
	OverfitRisk bool
	TimedOut    bool
	BestParams  string // JSON-encoded parameter set
	ReportPath  string
}

// Journal is the persistence collaborator's write/read contract.
type Journal interface {
	RecordDecision(DecisionRecord) error
	RecordVerdict(VerdictRecord) error
	RecordRegime(RegimeRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordOptimization(OptimizationRecord) error

	// ListTradesClosedBetween returns trades whose close time falls in
	// [from, to); used by the degradation monitor and backtest summaries.
	ListTradesClosedBetween(from, to time.Time) ([]TradeRecord, error)

	// ListEquityBetween returns equity snapshots in [from, to).
	ListEquityBetween(from, to time.Time) ([]EquitySnapshot, error)

	Close() error
}

// Nop discards every record. Backtests that only need in-memory results use
// it to skip journaling entirely.
type Nop struct{}

func (Nop) RecordDecision(DecisionRecord) error         { return nil }
func (Nop) RecordVerdict(VerdictRecord) error           { return nil }
func (Nop) RecordRegime(RegimeRecord) error             { return nil }
func (Nop) RecordTrade(TradeRecord) error               { return nil }
func (Nop) RecordEquity(EquitySnapshot) error           { return nil }
func (Nop) RecordOptimization(OptimizationRecord) error { return nil }
func (Nop) ListTradesClosedBetween(from, to time.Time) ([]TradeRecord, error) {
	return nil, nil
}
func (Nop) ListEquityBetween(from, to time.Time) ([]EquitySnapshot, error) {
	return nil, nil
}
func (Nop) Close() error { return nil }
