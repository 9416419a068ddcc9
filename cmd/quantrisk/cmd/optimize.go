package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgould/quantrisk/journal"
	"github.com/rgould/quantrisk/optimize"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search a strategy parameter space and validate the winner",
	Long: `Optimize evaluates strategy parameter sets against in-sample bars,
re-scores the best set on a held-out window and stress-tests it with Monte
Carlo trade resampling. The full run is written as a JSON artifact and
summarized in the journal.

The search space comes from the config file's "space" section.

Example:
  quantrisk optimize --bars data/spy_daily.csv --symbol SPY --strategy supertrend --objective sharpe`,
	RunE: runOptimize,
}

var (
	optObjective   string
	optReportPath  string
	optOOSFraction float64
)

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to bar CSV (time,symbol,open,high,low,close,volume)")
	optimizeCmd.Flags().StringVarP(&btSymbol, "symbol", "i", "SPY", "symbol to optimize over")
	optimizeCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "supertrend", "strategy name")
	optimizeCmd.Flags().IntVar(&btSynthetic, "synthetic", 0, "generate N synthetic bars instead of reading a CSV")
	optimizeCmd.Flags().Int64Var(&btSeed, "seed", 42, "seed for synthetic data generation")
	optimizeCmd.Flags().StringVar(&btFrom, "from", "", "start date (YYYY-MM-DD), CSV input only")
	optimizeCmd.Flags().StringVar(&btTo, "to", "", "end date (YYYY-MM-DD), CSV input only")
	optimizeCmd.Flags().StringVarP(&optObjective, "objective", "o", "sharpe", "objective: sharpe, return or composite")
	optimizeCmd.Flags().StringVar(&optReportPath, "report", "", "path for the JSON run artifact (default optimize_<run_id>.json)")
	optimizeCmd.Flags().Float64Var(&optOOSFraction, "oos-fraction", 0.3, "trailing fraction of bars held out for validation")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	if len(cfg.Space) == 0 {
		return fmt.Errorf("config has no parameter space to search")
	}
	objective := optimize.Objective(optObjective)
	switch objective {
	case optimize.ObjectiveSharpe, optimize.ObjectiveReturn, optimize.ObjectiveComposite:
	default:
		return fmt.Errorf("unknown objective %q", optObjective)
	}
	if optOOSFraction <= 0 || optOOSFraction >= 1 {
		return fmt.Errorf("--oos-fraction must be in (0, 1)")
	}

	bars, err := loadBars(cmd)
	if err != nil {
		return err
	}
	split := len(bars) - int(float64(len(bars))*optOOSFraction)
	if split < 2 || split >= len(bars) {
		return fmt.Errorf("not enough bars to split in/out of sample (%d total)", len(bars))
	}
	inSample, outOfSample := bars[:split], bars[split:]

	opt := optimize.New(btStrategy, cfg.Backtest, cfg.Optimize, log)
	run, err := opt.Run(cmd.Context(), cfg.Space, objective, inSample, outOfSample)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	optimize.PrintRun(os.Stdout, run)

	path := optReportPath
	if path == "" {
		path = fmt.Sprintf("optimize_%s.json", run.RunID)
	}
	if err := optimize.WriteReport(run, path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("path", path).Msg("wrote optimization report")

	if cfg.Journal.Path != "" {
		if err := journalOptimization(run, path); err != nil {
			return fmt.Errorf("journal optimization: %w", err)
		}
	}
	if run.TimedOut {
		log.Warn().Msg("budget expired before all candidates were evaluated")
		return fmt.Errorf("%w: budget expired after %d evaluations, report at %s",
			ErrPartialResult, run.Evaluations, path)
	}
	return nil
}

func journalOptimization(run optimize.Run, reportPath string) error {
	j, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	rec := journal.OptimizationRecord{
		RunID:       run.RunID,
		Time:        time.Now().UTC(),
		Strategy:    run.Strategy,
		Symbol:      btSymbol,
		Objective:   string(run.Objective),
		Evaluations: run.Evaluations,
		OOSScore:    run.OOSScore,
		OverfitRisk: run.OverfitRisk,
		TimedOut:    run.TimedOut,
		ReportPath:  reportPath,
	}
	if run.Best != nil {
		rec.BestScore = run.Best.Score
		if b, err := json.Marshal(run.Best.Params); err == nil {
			rec.BestParams = string(b)
		}
	}
	return j.RecordOptimization(rec)
}
