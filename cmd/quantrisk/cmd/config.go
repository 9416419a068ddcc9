package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rgould/quantrisk/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage quantrisk configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  quantrisk config init --output quantrisk.yaml
  quantrisk config validate --file quantrisk.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "quantrisk.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	c, err := config.Default()
	if err != nil {
		return err
	}
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  quantrisk backtest --config %s ...\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Journal: %s\n", c.Journal.Path)
	fmt.Printf("  Base risk: %.2f%% (max %.2f%%)\n",
		c.Trading.Sizing.BaseRiskPercent, c.Trading.Sizing.MaxRiskPercent)
	fmt.Printf("  Daily risk cap: $%.2f\n", c.Trading.Risk.DailyRiskCap)
	fmt.Printf("  Halt drawdown: %.1f%% (resume %.1f%%)\n",
		c.Trading.Risk.HaltDrawdownPercent, c.Trading.Risk.ResumeDrawdownPercent)
	return nil
}
