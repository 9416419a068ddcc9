package backtest

import "math"

// Metrics summarizes a run. All values are finite; degenerate inputs
// (no trades, flat curves) report zeros rather than NaN.
type Metrics struct {
	TotalReturnPct float64
	MaxDrawdownPct float64
	Sharpe         float64
	WinRate        float64
	TradeCount     int
	ProfitFactor   float64
}

// ComputeMetrics derives the summary from the equity curve and trade log.
// Sharpe uses per-bar returns annualized by sqrt(annualization).
func ComputeMetrics(initialBalance float64, curve []EquityPoint, trades []Trade, annualization float64) Metrics {
	var m Metrics
	m.TradeCount = len(trades)

	if len(curve) > 0 && initialBalance > 0 {
		final := curve[len(curve)-1].Equity
		m.TotalReturnPct = (final - initialBalance) / initialBalance * 100
	}

	m.MaxDrawdownPct = maxDrawdown(curve)
	m.Sharpe = sharpe(curve, annualization)

	wins := 0
	var grossWin, grossLoss float64
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			wins++
			grossWin += t.PnL
		case t.PnL < 0:
			grossLoss -= t.PnL
		}
	}
	if len(trades) > 0 {
		m.WinRate = float64(wins) / float64(len(trades))
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	}

	return m
}

func maxDrawdown(curve []EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func sharpe(curve []EquityPoint, annualization float64) float64 {
	if len(curve) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		rets = append(rets, (curve[i].Equity-prev)/prev)
	}
	if len(rets) < 2 {
		return 0
	}

	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var varsum float64
	for _, r := range rets {
		d := r - mean
		varsum += d * d
	}
	std := math.Sqrt(varsum / float64(len(rets)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(annualization)
}
