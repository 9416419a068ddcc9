package optimize

import (
	"math/rand"
	"sort"

	"github.com/rgould/quantrisk/backtest"
)

// MCResult is the distribution of total-return outcomes from resampling a
// fixed trade sequence with replacement. It estimates sequence-order risk,
// not parameter risk: every sampled outcome is built from trades the
// backtest actually produced.
type MCResult struct {
	Runs int     `json:"runs"`
	Min  float64 `json:"min"`
	P5   float64 `json:"p5"`
	P25  float64 `json:"p25"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P95  float64 `json:"p95"`
	Max  float64 `json:"max"`

	// Worst drawdown seen across the resampled equity paths, percent.
	WorstDrawdownPct float64 `json:"worst_drawdown_pct"`
}

// Resample draws n bootstrap samples of the trade sequence and reports
// percentile bounds of the resulting total returns. Deterministic for a
// fixed seed.
func Resample(trades []backtest.Trade, initialBalance float64, n int, seed int64) MCResult {
	res := MCResult{Runs: n}
	if len(trades) == 0 || n <= 0 || initialBalance <= 0 {
		return res
	}

	rng := rand.New(rand.NewSource(seed))
	returns := make([]float64, 0, n)

	for i := 0; i < n; i++ {
		balance := initialBalance
		peak := initialBalance

		for j := 0; j < len(trades); j++ {
			t := trades[rng.Intn(len(trades))]
			balance += t.PnL
			if balance > peak {
				peak = balance
			}
			if peak > 0 {
				dd := (peak - balance) / peak * 100
				if dd > res.WorstDrawdownPct {
					res.WorstDrawdownPct = dd
				}
			}
		}
		returns = append(returns, (balance-initialBalance)/initialBalance*100)
	}

	sort.Float64s(returns)
	res.Min = returns[0]
	res.Max = returns[len(returns)-1]
	res.P5 = percentile(returns, 0.05)
	res.P25 = percentile(returns, 0.25)
	res.P50 = percentile(returns, 0.50)
	res.P75 = percentile(returns, 0.75)
	res.P95 = percentile(returns, 0.95)
	return res
}

// percentile expects sorted input; nearest-rank method.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
