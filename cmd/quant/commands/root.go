package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile   string
	strategyFile string
	env          string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "b3factor - point-in-time factor dataset for B3 equities",
	Long: `b3factor Unified CLI

Builds the indicator library, risk premium portfolios and walk-forward
backtests from financial statements and daily prices.

Pipeline:
  S0 data → S1 statements → S2 point-in-time → S3 indicators → S4 premium → S5 walk-forward

Examples:
  go run ./cmd/quant run
  go run ./cmd/quant indicators
  go run ./cmd/quant premium --strategies config/strategies.yaml
  go run ./cmd/quant backtest --model majority
  go run ./cmd/quant api --port 8089`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := godotenv.Load(configFile); err != nil {
				return fmt.Errorf("load %s: %w", configFile, err)
			}
		}
		if cmd.Flags().Changed("env") {
			os.Setenv("ENV", env)
		}
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategies", "", "strategy YAML (default STRATEGY_FILE)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
