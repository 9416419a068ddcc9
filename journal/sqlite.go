package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordDecision(d DecisionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO decisions
		(signal_id, symbol, time, original_size, adjusted_size, risk_amount,
		 risk_percent, regime_id, model_version, regime_factor, performance_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SignalID, d.Symbol, d.Time, d.OriginalSize, d.AdjustedSize, d.RiskAmount,
		d.RiskPercent, d.RegimeID, d.ModelVersion, d.RegimeFactor, d.PerformanceFactor,
	)
	return err
}

func (j *SQLiteJournal) RecordVerdict(v VerdictRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO verdicts (signal_id, time, allow, reason, status)
		VALUES (?, ?, ?, ?, ?)`,
		v.SignalID, v.Time, v.Allow, v.Reason, v.Status,
	)
	return err
}

func (j *SQLiteJournal) RecordRegime(r RegimeRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO regimes
		(symbol, time, regime_id, volatility, out_of_distribution, model_version)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Symbol, r.Time, r.RegimeID, r.Volatility, r.OutOfDistribution, r.ModelVersion,
	)
	return err
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, units, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Units, t.EntryPrice,
		t.ExitPrice, t.OpenTime, t.CloseTime, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, balance, equity) VALUES (?, ?, ?)`,
		e.Time, e.Balance, e.Equity,
	)
	return err
}

func (j *SQLiteJournal) RecordOptimization(o OptimizationRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO optimizations
		(run_id, time, strategy, symbol, objective, evaluations, best_score,
		 oos_score, overfit_risk, timed_out, best_params, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Time, o.Strategy, o.Symbol, o.Objective, o.Evaluations,
		o.BestScore, o.OOSScore, o.OverfitRisk, o.TimedOut, o.BestParams, o.ReportPath,
	)
	return err
}

func (j *SQLiteJournal) ListTradesClosedBetween(from, to time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, units, entry_price, exit_price,
		       open_time, close_time, realized_pl, reason
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.TradeID, &t.Symbol, &t.Units, &t.EntryPrice,
			&t.ExitPrice, &t.OpenTime, &t.CloseTime, &t.RealizedPL, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) ListEquityBetween(from, to time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, equity
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Balance, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
