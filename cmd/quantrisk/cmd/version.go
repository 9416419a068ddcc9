package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the quantrisk CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quantrisk version %s\n", version)
		fmt.Println("Volatility-regime-aware position sizing and risk research platform")
		fmt.Println("https://github.com/rgould/quantrisk")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
