package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rgould/quantrisk/backtest"
	"github.com/rgould/quantrisk/internal/metrics"
	"github.com/rgould/quantrisk/journal"
)

func testMonitorConfig() Config {
	return Config{
		SharpeFraction:    0.5,
		DrawdownMarginPct: 5,
		WinRateMarginPct:  15,
		MinTrades:         10,
		Annualization:     252,
	}
}

func testBaseline() Baseline {
	return Baseline{Sharpe: 1.2, MaxDrawdownPct: 10, WinRate: 0.55}
}

// windowOf builds a live window with the given trade win rate and a daily
// equity path moving by stepPct each day.
func windowOf(t *testing.T, trades int, winRate float64, stepPct float64) Window {
	t.Helper()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	win := Window{From: base, To: base.AddDate(0, 0, 30)}

	wins := int(float64(trades) * winRate)
	for i := 0; i < trades; i++ {
		pl := -50.0
		if i < wins {
			pl = 50.0
		}
		win.Trades = append(win.Trades, journal.TradeRecord{
			TradeID:    "T",
			Symbol:     "SPY",
			CloseTime:  base.AddDate(0, 0, i),
			RealizedPL: pl,
		})
	}

	equity := 10000.0
	for i := 0; i < 30; i++ {
		win.Equity = append(win.Equity, journal.EquitySnapshot{
			Time:   base.AddDate(0, 0, i),
			Equity: equity,
		})
		// Alternating jitter keeps the return series from being constant.
		jitter := 0.05
		if i%2 == 1 {
			jitter = -jitter
		}
		equity *= 1 + (stepPct+jitter)/100
	}
	return win
}

func TestCheckBelowMinTradesIsClean(t *testing.T) {
	t.Parallel()

	m := New(testMonitorConfig(), nil, zerolog.Nop())
	rep := m.Check(windowOf(t, 3, 0.0, -2), testBaseline())

	assert.False(t, rep.Degraded)
	assert.Nil(t, rep.Alert)
	assert.Empty(t, rep.Details)
}

func TestCheckHealthyWindow(t *testing.T) {
	t.Parallel()

	m := New(testMonitorConfig(), nil, zerolog.Nop())
	// Steady gains, win rate above baseline.
	rep := m.Check(windowOf(t, 20, 0.6, 0.3), testBaseline())

	assert.False(t, rep.Degraded)
	assert.Nil(t, rep.Alert)
	assert.Greater(t, rep.LiveSharpe, 0.0)
}

func TestCheckSharpeCollapse(t *testing.T) {
	t.Parallel()

	m := New(testMonitorConfig(), nil, zerolog.Nop())
	// Win rate holds but equity bleeds every day.
	rep := m.Check(windowOf(t, 20, 0.6, -0.1), testBaseline())

	assert.True(t, rep.Degraded)
	assert.NotNil(t, rep.Alert)
	assert.Less(t, rep.LiveSharpe, testBaseline().Sharpe*0.5)
}

func TestCheckDrawdownBreach(t *testing.T) {
	t.Parallel()

	m := New(testMonitorConfig(), nil, zerolog.Nop())
	// A 2% daily slide compounds past baseline max 10% plus the 5-point
	// margin inside 30 days.
	rep := m.Check(windowOf(t, 20, 0.6, -2), testBaseline())

	assert.True(t, rep.Degraded)
	assert.Greater(t, rep.LiveDrawdownPct, 15.0)
}

func TestCheckWinRateDrop(t *testing.T) {
	t.Parallel()

	m := New(testMonitorConfig(), nil, zerolog.Nop())
	// Flat-ish equity, but the win rate cratered 35 points below baseline.
	rep := m.Check(windowOf(t, 20, 0.2, 0.0), testBaseline())

	assert.True(t, rep.Degraded)
	assert.InDelta(t, 0.2, rep.LiveWinRate, 1e-9)
}

func TestCheckSeverityEscalates(t *testing.T) {
	t.Parallel()

	m := New(testMonitorConfig(), nil, zerolog.Nop())

	// Everything wrong at once: collapsing equity and a terrible win rate.
	rep := m.Check(windowOf(t, 20, 0.1, -2), testBaseline())
	assert.True(t, rep.Degraded)
	assert.NotNil(t, rep.Alert)
	assert.Equal(t, SeverityCritical, rep.Alert.Severity)
	assert.GreaterOrEqual(t, len(rep.Details), 2)
}

func TestCheckRecordsMetrics(t *testing.T) {
	t.Parallel()

	mx := metrics.New(prometheus.NewRegistry())
	m := New(testMonitorConfig(), mx, zerolog.Nop())

	// Two simultaneous breaches: one alert counted, severity CRITICAL.
	rep := m.Check(windowOf(t, 20, 0.1, -2), testBaseline())
	assert.True(t, rep.Degraded)
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.DegradedChecks))
	assert.Equal(t, 2.0, testutil.ToFloat64(mx.MonitorSeverity))

	// A healthy window resets the severity gauge but not the counter.
	rep = m.Check(windowOf(t, 20, 0.6, 0.3), testBaseline())
	assert.False(t, rep.Degraded)
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.DegradedChecks))
	assert.Equal(t, 0.0, testutil.ToFloat64(mx.MonitorSeverity))
}

func TestBaselineFromMetrics(t *testing.T) {
	t.Parallel()

	b := BaselineFromMetrics(backtest.Metrics{Sharpe: 1.1, MaxDrawdownPct: 8, WinRate: 0.6})

	assert.Equal(t, 1.1, b.Sharpe)
	assert.Equal(t, 8.0, b.MaxDrawdownPct)
	assert.Equal(t, 0.6, b.WinRate)
}
