package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgould/quantrisk/backtest"
	"github.com/rgould/quantrisk/journal"
	"github.com/rgould/quantrisk/market"
	"github.com/rgould/quantrisk/pkg/id"
	"github.com/rgould/quantrisk/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy backtest over historical bars",
	Long: `Backtest replays historical bars through a strategy, the regime
detector, the position sizer and the risk manager, and reports the resulting
equity curve and trade statistics.

Supported strategies: ` + strings.Join(strategies.Names(), ", ") + `

Example:
  quantrisk backtest --bars data/spy_daily.csv --symbol SPY --strategy supertrend --param fact=3 --param atr_len=14`,
	RunE: runBacktest,
}

var (
	btBarsPath  string
	btSymbol    string
	btStrategy  string
	btParams    []string
	btSynthetic int
	btSeed      int64
	btFrom      string
	btTo        string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to bar CSV (time,symbol,open,high,low,close,volume)")
	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "i", "SPY", "symbol to backtest")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "supertrend", "strategy name")
	backtestCmd.Flags().StringArrayVarP(&btParams, "param", "p", nil, "strategy parameter override key=value (repeatable)")
	backtestCmd.Flags().IntVar(&btSynthetic, "synthetic", 0, "generate N synthetic bars instead of reading a CSV")
	backtestCmd.Flags().Int64Var(&btSeed, "seed", 42, "seed for synthetic data generation")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "start date (YYYY-MM-DD), CSV input only")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "end date (YYYY-MM-DD), CSV input only")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	bars, err := loadBars(cmd)
	if err != nil {
		return err
	}

	params, err := parseParams(btParams)
	if err != nil {
		return err
	}
	strat, err := strategies.New(btStrategy, params)
	if err != nil {
		return err
	}

	engine := backtest.NewEngine(cfg.Backtest, log)
	res, err := engine.Run(cmd.Context(), strat, bars)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	backtest.PrintResult(os.Stdout, strat.Name(), res)

	if cfg.Journal.Path != "" {
		if err := journalBacktest(res); err != nil {
			return fmt.Errorf("journal backtest: %w", err)
		}
	}
	return nil
}

func journalBacktest(res backtest.Result) error {
	j, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	for _, t := range res.Trades {
		err := j.RecordTrade(journal.TradeRecord{
			TradeID:    id.New(),
			Symbol:     btSymbol,
			Units:      t.Units,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			OpenTime:   t.EntryTime,
			CloseTime:  t.ExitTime,
			RealizedPL: t.PnL,
			Reason:     t.Reason,
		})
		if err != nil {
			return err
		}
	}
	for _, p := range res.EquityCurve {
		if err := j.RecordEquity(journal.EquitySnapshot{Time: p.Time, Equity: p.Equity, Balance: p.Equity}); err != nil {
			return err
		}
	}
	return nil
}

func loadBars(cmd *cobra.Command) ([]market.Bar, error) {
	if btSynthetic > 0 {
		return market.Synthetic(btSymbol, btSynthetic, btSeed, market.DefaultSyntheticConfig()), nil
	}
	if btBarsPath == "" {
		return nil, fmt.Errorf("either --bars or --synthetic is required")
	}

	src, err := market.NewCSVSource(btBarsPath)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}

	from := time.Time{}
	to := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	if btFrom != "" {
		if from, err = time.Parse("2006-01-02", btFrom); err != nil {
			return nil, fmt.Errorf("bad --from: %w", err)
		}
	}
	if btTo != "" {
		if to, err = time.Parse("2006-01-02", btTo); err != nil {
			return nil, fmt.Errorf("bad --to: %w", err)
		}
	}
	return src.History(cmd.Context(), btSymbol, from, to)
}

func parseParams(kvs []string) (strategies.Params, error) {
	p := strategies.Params{}
	for _, kv := range kvs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad --param %q, want key=value", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad --param %q: %w", kv, err)
		}
		p[strings.TrimSpace(parts[0])] = v
	}
	return p, nil
}
