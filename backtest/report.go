package backtest

import (
	"fmt"
	"io"
	"time"
)

// PrintResult writes the human-readable run summary.
func PrintResult(w io.Writer, strategyName string, r Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Strategy:      %s\n", strategyName)
	if n := len(r.EquityCurve); n > 0 {
		fmt.Fprintf(w, "Start:         %s\n", r.EquityCurve[0].Time.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", r.EquityCurve[n-1].Time.Format(time.RFC3339))
		fmt.Fprintf(w, "Bars:          %d\n", n)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Total Return:  %.2f%%\n", r.Metrics.TotalReturnPct)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.Metrics.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", r.Metrics.Sharpe)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.Metrics.WinRate*100)
	fmt.Fprintf(w, "Trades:        %d\n", r.Metrics.TradeCount)
	if r.Metrics.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.Metrics.ProfitFactor)
	}

	if len(r.Rejections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Risk Rejections")
		fmt.Fprintln(w, "--------------------------------------------------")
		for reason, n := range r.Rejections {
			fmt.Fprintf(w, "%-30s %d\n", reason, n)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "- %s\n", warn)
		}
	}

	fmt.Fprintln(w)
}
