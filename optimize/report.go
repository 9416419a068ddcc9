package optimize

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// WriteReport serializes the run as a JSON artifact at path.
func WriteReport(run Run, path string) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal optimization run: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// PrintRun writes the human-readable summary.
func PrintRun(w io.Writer, run Run) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Optimization Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", run.RunID)
	fmt.Fprintf(w, "Strategy:      %s\n", run.Strategy)
	fmt.Fprintf(w, "Objective:     %s\n", run.Objective)
	fmt.Fprintf(w, "Started:       %s\n", run.Started.Format(time.RFC3339))
	fmt.Fprintf(w, "Evaluations:   %d\n", run.Evaluations)
	if run.TimedOut {
		fmt.Fprintln(w, "Status:        PARTIAL (budget exceeded)")
	} else {
		fmt.Fprintln(w, "Status:        complete")
	}

	if run.Best != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Best Candidate")
		fmt.Fprintln(w, "--------------------------------------------------")
		keys := make([]string, 0, len(run.Best.Params))
		for k := range run.Best.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-16s %g\n", k, run.Best.Params[k])
		}
		fmt.Fprintf(w, "In-Sample:     %.4f\n", run.Best.Score)
		fmt.Fprintf(w, "Out-of-Sample: %.4f\n", run.OOSScore)
		if run.OverfitRisk {
			fmt.Fprintln(w, "Overfit Risk:  YES (out-of-sample degraded beyond tolerance)")
		}
		fmt.Fprintf(w, "Return:        %.2f%%\n", run.Best.Metrics.TotalReturnPct)
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", run.Best.Metrics.MaxDrawdownPct)
		fmt.Fprintf(w, "Sharpe:        %.2f\n", run.Best.Metrics.Sharpe)
		fmt.Fprintf(w, "Win Rate:      %.2f%%\n", run.Best.Metrics.WinRate*100)
		fmt.Fprintf(w, "Trades:        %d\n", run.Best.Metrics.TradeCount)
	}

	if mc := run.MonteCarlo; mc != nil && mc.Runs > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Monte Carlo (total return, %)")
		fmt.Fprintln(w, "--------------------------------------------------")
		fmt.Fprintf(w, "Resamples:     %d\n", mc.Runs)
		fmt.Fprintf(w, "P5 / P50 / P95: %.2f / %.2f / %.2f\n", mc.P5, mc.P50, mc.P95)
		fmt.Fprintf(w, "Range:         [%.2f, %.2f]\n", mc.Min, mc.Max)
		fmt.Fprintf(w, "Worst DD:      %.2f%%\n", mc.WorstDrawdownPct)
	}

	fmt.Fprintln(w)
}
