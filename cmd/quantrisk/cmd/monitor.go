package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgould/quantrisk/journal"
	"github.com/rgould/quantrisk/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check recent live performance against the backtest baseline",
	Long: `Monitor pulls the trailing window of trades and equity from the
journal and compares it to the backtested baseline. Breaches print as alerts
and the command exits non-zero when the window is degraded, so it can drive
a cron or alerting hook directly.

Example:
  quantrisk monitor --days 30 --baseline-sharpe 1.2 --baseline-drawdown 12 --baseline-winrate 0.55`,
	RunE: runMonitor,
}

var (
	monDays     int
	monSharpe   float64
	monDrawdown float64
	monWinRate  float64
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntVar(&monDays, "days", 30, "trailing window length in days")
	monitorCmd.Flags().Float64Var(&monSharpe, "baseline-sharpe", 0, "backtested Sharpe ratio")
	monitorCmd.Flags().Float64Var(&monDrawdown, "baseline-drawdown", 0, "backtested max drawdown percent")
	monitorCmd.Flags().Float64Var(&monWinRate, "baseline-winrate", 0, "backtested win rate (0..1)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if cfg.Journal.Path == "" {
		return fmt.Errorf("monitor requires a journal path in the config")
	}

	j, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -monDays)

	trades, err := j.ListTradesClosedBetween(from, to)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	equity, err := j.ListEquityBetween(from, to)
	if err != nil {
		return fmt.Errorf("list equity: %w", err)
	}

	win := monitor.Window{From: from, To: to, Trades: trades, Equity: equity}
	base := monitor.Baseline{
		Sharpe:         monSharpe,
		MaxDrawdownPct: monDrawdown,
		WinRate:        monWinRate,
	}

	// One-shot invocation: nothing scrapes this process, so no gauges.
	rep := monitor.New(cfg.Monitor, nil, log).Check(win, base)

	fmt.Printf("Window %s .. %s  (%d trades, %d equity points)\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"), len(trades), len(equity))
	if len(trades) >= cfg.Monitor.MinTrades {
		fmt.Printf("Live Sharpe %.2f  drawdown %.1f%%  win rate %.0f%%\n",
			rep.LiveSharpe, rep.LiveDrawdownPct, rep.LiveWinRate*100)
	}

	if !rep.Degraded {
		fmt.Println("Status: OK")
		return nil
	}

	fmt.Printf("Status: DEGRADED (%s)\n", rep.Alert.Severity)
	for _, d := range rep.Details {
		fmt.Printf("  - %s\n", d)
	}
	return fmt.Errorf("performance degraded: %d threshold(s) breached", len(rep.Details))
}
