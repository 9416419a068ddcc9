package optimize

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rgould/quantrisk/backtest"
	"github.com/rgould/quantrisk/market"
	"github.com/rgould/quantrisk/regime"
	"github.com/rgould/quantrisk/risk"
	"github.com/rgould/quantrisk/sizing"
)

func optBacktestConfig() backtest.Config {
	return backtest.Config{
		InitialBalance:    10000,
		Interval:          24 * time.Hour,
		GapPolicy:         backtest.GapWarn,
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

func optOptions() Options {
	return Options{
		MaxEvaluations:   100,
		Workers:          4,
		Budget:           time.Minute,
		OverfitTolerance: 0.3,
		MonteCarloRuns:   50,
		Seed:             1,
	}
}

func splitBars(t *testing.T) (inSample, outOfSample []market.Bar) {
	t.Helper()
	bars := market.Synthetic("SPY", 360, 3, market.DefaultSyntheticConfig())
	return bars[:280], bars[280:]
}

func TestOptimizerRunGrid(t *testing.T) {
	t.Parallel()

	space := Space{
		{Key: "atr_len", Min: 8, Max: 12, Step: 2},
		{Key: "fact", Min: 2, Max: 3, Step: 1},
	}
	inSample, outOfSample := splitBars(t)

	o := New("supertrend", optBacktestConfig(), optOptions(), zerolog.Nop())
	run, err := o.Run(context.Background(), space, ObjectiveSharpe, inSample, outOfSample)
	assert.NoError(t, err)

	assert.Equal(t, 6, run.Evaluations)
	assert.Len(t, run.Candidates, 6)
	assert.NotNil(t, run.Best)
	assert.False(t, run.TimedOut)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, "supertrend", run.Strategy)
	assert.NotNil(t, run.MonteCarlo)

	// Candidates come back ranked, best first.
	for i := 1; i < len(run.Candidates); i++ {
		if run.Candidates[i].Err != "" {
			continue
		}
		assert.GreaterOrEqual(t, run.Candidates[i-1].Score, run.Candidates[i].Score)
	}
	assert.Equal(t, run.Candidates[0].Score, run.Best.Score)
}

func TestOptimizerDeterministic(t *testing.T) {
	t.Parallel()

	space := Space{
		{Key: "atr_len", Min: 8, Max: 12, Step: 2},
		{Key: "fact", Min: 2, Max: 3, Step: 1},
	}
	inSample, outOfSample := splitBars(t)

	run1, err := New("supertrend", optBacktestConfig(), optOptions(), zerolog.Nop()).
		Run(context.Background(), space, ObjectiveSharpe, inSample, outOfSample)
	assert.NoError(t, err)
	run2, err := New("supertrend", optBacktestConfig(), optOptions(), zerolog.Nop()).
		Run(context.Background(), space, ObjectiveSharpe, inSample, outOfSample)
	assert.NoError(t, err)

	// Concurrency must not disturb the outcome.
	assert.Equal(t, run1.Best.Params, run2.Best.Params)
	assert.Equal(t, run1.Best.Score, run2.Best.Score)
	assert.Equal(t, run1.OOSScore, run2.OOSScore)
	assert.Equal(t, run1.OverfitRisk, run2.OverfitRisk)
	assert.Equal(t, run1.MonteCarlo, run2.MonteCarlo)
}

func TestOptimizerCapsEvaluations(t *testing.T) {
	t.Parallel()

	// A 100x100 grid against a 5-evaluation budget.
	space := Space{
		{Key: "fast", Min: 1, Max: 100, Step: 1},
		{Key: "slow", Min: 101, Max: 200, Step: 1},
	}
	opts := optOptions()
	opts.MaxEvaluations = 5
	inSample, outOfSample := splitBars(t)

	o := New("ema-cross", optBacktestConfig(), opts, zerolog.Nop())
	run, err := o.Run(context.Background(), space, ObjectiveReturn, inSample, outOfSample)
	assert.NoError(t, err)

	assert.Equal(t, 5, run.Evaluations)
	assert.NotNil(t, run.Best)
	assert.False(t, run.TimedOut)
}

func TestOptimizerBudgetPreservesCompletedWork(t *testing.T) {
	t.Parallel()

	// A grid far too large for the budget. Evaluations in flight when the
	// budget lapses still finish: the run is flagged TimedOut, the completed
	// candidates are ranked, and none of them is recorded as failed.
	space := Space{
		{Key: "fast", Min: 1, Max: 40, Step: 1},
		{Key: "slow", Min: 41, Max: 90, Step: 1},
	}
	opts := optOptions()
	opts.MaxEvaluations = 2000
	opts.Workers = 2
	opts.Budget = 25 * time.Millisecond
	opts.MonteCarloRuns = 0
	inSample, outOfSample := splitBars(t)

	o := New("ema-cross", optBacktestConfig(), opts, zerolog.Nop())
	run, err := o.Run(context.Background(), space, ObjectiveReturn, inSample, outOfSample)
	assert.NoError(t, err)

	assert.True(t, run.TimedOut)
	assert.NotNil(t, run.Best)
	assert.GreaterOrEqual(t, run.Evaluations, 1)
	assert.Less(t, run.Evaluations, 2000)
	for _, c := range run.Candidates {
		assert.Empty(t, c.Err)
	}
}

func TestOptimizerTimeoutWithoutResults(t *testing.T) {
	t.Parallel()

	space := Space{{Key: "fact", Min: 1, Max: 5, Step: 1}}
	opts := optOptions()
	opts.Budget = time.Nanosecond
	inSample, outOfSample := splitBars(t)

	o := New("supertrend", optBacktestConfig(), opts, zerolog.Nop())
	run, err := o.Run(context.Background(), space, ObjectiveSharpe, inSample, outOfSample)

	assert.ErrorIs(t, err, ErrOptimizationTimeout)
	assert.True(t, run.TimedOut)
	assert.Equal(t, 0, run.Evaluations)
}

func TestOptimizerBadStrategyCandidates(t *testing.T) {
	t.Parallel()

	inSample, outOfSample := splitBars(t)
	o := New("no-such-strategy", optBacktestConfig(), optOptions(), zerolog.Nop())

	space := Space{{Key: "fact", Min: 1, Max: 3, Step: 1}}
	_, err := o.Run(context.Background(), space, ObjectiveSharpe, inSample, outOfSample)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrOptimizationTimeout)
}

func TestObjectiveScore(t *testing.T) {
	t.Parallel()

	m := backtest.Metrics{Sharpe: 1.5, TotalReturnPct: 20, MaxDrawdownPct: 10}

	assert.Equal(t, 1.5, ObjectiveSharpe.Score(m))
	assert.Equal(t, 20.0, ObjectiveReturn.Score(m))
	assert.InDelta(t, 1.5+0.2-0.1, ObjectiveComposite.Score(m), 1e-12)
	// Unknown objectives degrade to Sharpe.
	assert.Equal(t, 1.5, Objective("bogus").Score(m))
}

func TestOverfitFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in, oos   float64
		tolerance float64
		want      bool
	}{
		{"holds up", 2.0, 1.8, 0.3, false},
		{"degrades past tolerance", 2.0, 1.0, 0.3, true},
		{"improves out of sample", 1.0, 1.5, 0.3, false},
		{"exactly at tolerance", 2.0, 1.4, 0.3, false},
		{"zero in-sample", 0.0, -0.5, 0.3, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, overfit(tt.in, tt.oos, tt.tolerance))
		})
	}
}
