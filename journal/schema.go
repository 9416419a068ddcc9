package journal

const Schema = `
CREATE TABLE IF NOT EXISTS decisions (
	signal_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	time DATETIME NOT NULL,
	original_size REAL NOT NULL,
	adjusted_size REAL NOT NULL,
	risk_amount REAL NOT NULL,
	risk_percent REAL NOT NULL,
	regime_id INTEGER NOT NULL,
	model_version TEXT NOT NULL,
	regime_factor REAL NOT NULL,
	performance_factor REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS verdicts (
	signal_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	allow INTEGER NOT NULL,
	reason TEXT NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS regimes (
	symbol TEXT NOT NULL,
	time DATETIME NOT NULL,
	regime_id INTEGER NOT NULL,
	volatility TEXT NOT NULL,
	out_of_distribution INTEGER NOT NULL,
	model_version TEXT NOT NULL,
	PRIMARY KEY (symbol, time)
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	units REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS optimizations (
	run_id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	objective TEXT NOT NULL,
	evaluations INTEGER NOT NULL,
	best_score REAL NOT NULL,
	oos_score REAL NOT NULL,
	overfit_risk INTEGER NOT NULL,
	timed_out INTEGER NOT NULL,
	best_params TEXT NOT NULL,
	report_path TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
CREATE INDEX IF NOT EXISTS idx_verdicts_time ON verdicts(time);
`
