package cmd

import (
	"errors"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rgould/quantrisk/config"
	"github.com/rgould/quantrisk/internal/logging"
)

// ErrPartialResult marks a command that produced usable output before its
// budget expired. main maps it to its own exit status so a scheduler can
// tell a partial run from a failed one.
var ErrPartialResult = errors.New("partial result")

var (
	cfgFile string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quantrisk",
	Short: "Volatility-regime-aware sizing, risk and backtesting engine",
	Long: `Quantrisk augments a signal-driven execution pipeline with an adaptive
risk and sizing layer.

It provides tools for:
  - Classifying market conditions into volatility regimes
  - Regime- and performance-aware position sizing
  - Account-wide risk limits with drawdown halts
  - Backtesting strategies over historical bars
  - Parameter optimization with out-of-sample and Monte Carlo validation
  - Monitoring live performance against its backtested baseline`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; explicit config errors are not.
		_ = godotenv.Load()

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.Default()
		}
		if err != nil {
			return err
		}

		log, err = logging.New(cfg.Logging)
		return err
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
}
