package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rgould/quantrisk/market"
	"github.com/rgould/quantrisk/regime"
	"github.com/rgould/quantrisk/risk"
	"github.com/rgould/quantrisk/sizing"
	"github.com/rgould/quantrisk/strategies"
)

func testBacktestConfig() Config {
	return Config{
		InitialBalance:    10000,
		Interval:          24 * time.Hour,
		GapPolicy:         GapWarn,
		Annualization:     252,
		TrainFraction:     0.3,
		PerformanceWindow: 20,
		Features:          market.FeatureConfig{WindowLen: 20, ATRLen: 14},
		Regime:            regime.Config{K: 3, MinTrainWindows: 30, MaxIterations: 100, Seed: 1},
		Sizing: sizing.Config{
			BaseRiskPercent:     1.0,
			MaxRiskPercent:      2.0,
			MaxUnits:            100000,
			LowVolFactor:        1.25,
			MediumVolFactor:     1.0,
			HighVolFactor:       0.5,
			MaxPerformanceSwing: 0.5,
			MinTrades:           10,
			DefaultStopPercent:  2.0,
		},
		Risk: risk.Config{
			DailyRiskCap:          500,
			CorrelationThreshold:  0.7,
			CorrelatedExposureCap: 1e9,
			HaltDrawdownPercent:   20,
			ResumeDrawdownPercent: 15,
			WarningMarginPercent:  10,
		},
	}
}

func syntheticBars(t *testing.T, n int, seed int64) []market.Bar {
	t.Helper()
	return market.Synthetic("SPY", n, seed, market.DefaultSyntheticConfig())
}

func TestRunRequiresInput(t *testing.T) {
	t.Parallel()

	e := NewEngine(testBacktestConfig(), zerolog.Nop())

	_, err := e.Run(context.Background(), nil, syntheticBars(t, 10, 1))
	assert.Error(t, err)

	_, err = e.Run(context.Background(), strategies.Noop{}, nil)
	assert.Error(t, err)
}

func TestRunRejectsOutOfOrderBars(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(t, 50, 1)
	bars[10], bars[20] = bars[20], bars[10]

	e := NewEngine(testBacktestConfig(), zerolog.Nop())
	_, err := e.Run(context.Background(), strategies.Noop{}, bars)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}

func TestRunNoopIsFlat(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(t, 252, 1)
	e := NewEngine(testBacktestConfig(), zerolog.Nop())

	res, err := e.Run(context.Background(), strategies.Noop{}, bars)
	assert.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Len(t, res.EquityCurve, len(bars))
	for _, p := range res.EquityCurve {
		assert.Equal(t, 10000.0, p.Equity)
	}
	assert.Equal(t, 0.0, res.Metrics.TotalReturnPct)
	assert.Equal(t, 0, res.Metrics.TradeCount)
}

func TestRunSuperTrendYear(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(t, 252, 3)
	strat, err := strategies.New("supertrend", strategies.Params{"atr_len": 10, "fact": 2})
	assert.NoError(t, err)

	e := NewEngine(testBacktestConfig(), zerolog.Nop())
	res, err := e.Run(context.Background(), strat, bars)
	assert.NoError(t, err)

	assert.Len(t, res.EquityCurve, len(bars))
	assert.Greater(t, len(res.Trades), 0)

	// Every equity point and metric stays finite and the drawdown bounded.
	assert.GreaterOrEqual(t, res.Metrics.MaxDrawdownPct, 0.0)
	assert.LessOrEqual(t, res.Metrics.MaxDrawdownPct, 100.0)
	assert.GreaterOrEqual(t, res.Metrics.WinRate, 0.0)
	assert.LessOrEqual(t, res.Metrics.WinRate, 1.0)
	assert.Equal(t, len(res.Trades), res.Metrics.TradeCount)

	// The trade log balances: realized PnL explains the final equity.
	var pnl float64
	for _, tr := range res.Trades {
		pnl += tr.PnL
	}
	final := res.EquityCurve[len(res.EquityCurve)-1].Equity
	assert.InDelta(t, 10000+pnl, final, 1e-6)
}

func barsFromCloses(t *testing.T, closes []float64) []market.Bar {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Bar, len(closes))
	open := closes[0]
	for i, c := range closes {
		hi, lo := open, c
		if c > open {
			hi, lo = c, open
		}
		out[i] = market.Bar{
			Symbol: "SPY",
			Time:   start.AddDate(0, 0, i),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  c,
			Volume: 1000,
		}
		open = c
	}
	return out
}

func TestRunStoplessSignalGetsDefaultStop(t *testing.T) {
	t.Parallel()

	// ema-cross emits signals without a stop. The fast(2)/slow(4) EMAs cross
	// up exactly once, at the close of 100; the position is filled with the
	// default 2% stop at 98, so the collapse that follows exits the trade at
	// the stop for a loss equal to the sized risk amount, not at end of data.
	closes := []float64{100, 98, 96, 94, 92, 90, 100, 110, 120, 130, 120, 105, 95}
	bars := barsFromCloses(t, closes)

	strat, err := strategies.New("ema-cross", strategies.Params{"fast": 2, "slow": 4})
	assert.NoError(t, err)

	res, err := NewEngine(testBacktestConfig(), zerolog.Nop()).
		Run(context.Background(), strat, bars)
	assert.NoError(t, err)

	assert.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, "stop", tr.Reason)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.InDelta(t, 98.0, tr.ExitPrice, 1e-9)
	// 1% of the 10000 balance risked over the 2% stop distance: 50 units,
	// and the stop caps the loss at exactly that risk amount.
	assert.InDelta(t, 50.0, tr.Units, 1e-9)
	assert.InDelta(t, -100.0, tr.PnL, 1e-9)
}

func TestDefaultStop(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 98.0, defaultStop(100, 1, 2.0), 1e-9)
	assert.InDelta(t, 102.0, defaultStop(100, -1, 2.0), 1e-9)
}

func TestRunReproducible(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(t, 252, 3)
	cfg := testBacktestConfig()

	run := func() Result {
		strat, err := strategies.New("supertrend", strategies.Params{"atr_len": 10, "fact": 2})
		assert.NoError(t, err)
		res, err := NewEngine(cfg, zerolog.Nop()).Run(context.Background(), strat, bars)
		assert.NoError(t, err)
		return res
	}

	a, b := run(), run()

	assert.Equal(t, a.Trades, b.Trades)
	assert.Equal(t, a.EquityCurve, b.EquityCurve)
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, a.Rejections, b.Rejections)
}

func TestRunGapWarn(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(t, 120, 1)
	// Drop ten bars in the middle of the window.
	gapped := append(append([]market.Bar{}, bars[:60]...), bars[70:]...)

	cfg := testBacktestConfig()
	cfg.GapPolicy = GapWarn
	res, err := NewEngine(cfg, zerolog.Nop()).Run(context.Background(), strategies.Noop{}, gapped)
	assert.NoError(t, err)

	assert.Len(t, res.EquityCurve, len(gapped))
	found := false
	for _, w := range res.Warnings {
		if len(w) >= 8 && w[:8] == "DATA_GAP" {
			found = true
		}
	}
	assert.True(t, found, "expected a DATA_GAP warning")
}

func TestRunGapInterpolate(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(t, 120, 1)
	gapped := append(append([]market.Bar{}, bars[:60]...), bars[70:]...)

	cfg := testBacktestConfig()
	cfg.GapPolicy = GapInterpolate
	res, err := NewEngine(cfg, zerolog.Nop()).Run(context.Background(), strategies.Noop{}, gapped)
	assert.NoError(t, err)

	// The ten missing bars are filled back in.
	assert.Len(t, res.EquityCurve, 120)
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "DATA_GAP")
	}
}

func TestRunShortHistoryDegradesRegime(t *testing.T) {
	t.Parallel()

	// Too few bars to train: the run still completes with a warning.
	bars := syntheticBars(t, 60, 1)
	e := NewEngine(testBacktestConfig(), zerolog.Nop())

	res, err := e.Run(context.Background(), strategies.Noop{}, bars)
	assert.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
}

func TestRunHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(testBacktestConfig(), zerolog.Nop())
	_, err := e.Run(ctx, strategies.Noop{}, syntheticBars(t, 252, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunUsesSuppliedModel(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(t, 252, 3)
	cfg := testBacktestConfig()

	windows := market.RollingFeatures(bars[:100], cfg.Features)
	model, err := regime.Fit(windows, cfg.Regime)
	assert.NoError(t, err)

	e := NewEngine(cfg, zerolog.Nop())
	e.Model = model

	res, err := e.Run(context.Background(), strategies.Noop{}, bars)
	assert.NoError(t, err)
	// A supplied model means no training warning.
	assert.Empty(t, res.Warnings)
}

func TestTrailingPerformance(t *testing.T) {
	t.Parallel()

	closed := []Trade{
		{PnL: 10}, {PnL: -5}, {PnL: 7}, {PnL: -2}, {PnL: 3},
	}

	perf := trailingPerformance(closed, 3)
	assert.Equal(t, 3, perf.Trades)
	// Last three: +7, -2, +3.
	assert.InDelta(t, 2.0/3.0, perf.WinRate, 1e-9)

	perf = trailingPerformance(nil, 10)
	assert.Equal(t, sizing.Performance{}, perf)

	perf = trailingPerformance(closed, 100)
	assert.Equal(t, 5, perf.Trades)
}

func TestCheckExitStopFirst(t *testing.T) {
	t.Parallel()

	// Long position where the bar touches both stop and target: stop wins.
	p := position{open: true, units: 10, entryPrice: 100, stop: 95, target: 110}
	bar := market.Bar{High: 112, Low: 94, Close: 100}

	px, reason, hit := checkExit(p, bar)
	assert.True(t, hit)
	assert.Equal(t, "stop", reason)
	assert.Equal(t, 95.0, px)
}

func TestCheckExitShortSide(t *testing.T) {
	t.Parallel()

	p := position{open: true, units: -10, entryPrice: 100, stop: 105, target: 90}

	// Target only.
	px, reason, hit := checkExit(p, market.Bar{High: 101, Low: 89, Close: 95})
	assert.True(t, hit)
	assert.Equal(t, "target", reason)
	assert.Equal(t, 90.0, px)

	// Both touched: stop first.
	px, reason, hit = checkExit(p, market.Bar{High: 106, Low: 89, Close: 95})
	assert.True(t, hit)
	assert.Equal(t, "stop", reason)
	assert.Equal(t, 105.0, px)

	// Neither.
	_, _, hit = checkExit(p, market.Bar{High: 101, Low: 99, Close: 100})
	assert.False(t, hit)
}
