package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	rulesFile string
	priceFile string
	priceSrc  string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Top-N price-ranked equity index",
	Long: `Indexer computes a daily level for a custom equity index.

Constituents are re-selected on the first business day of each month as the
highest priced tickers at the previous month's last business day. Levels
accumulate weighted price returns between rebalances.

Usage:
  go run ./cmd/indexer [command]

Examples:
  go run ./cmd/indexer compute --from 2020-01-01 --to 2020-12-31 --out export.csv
  go run ./cmd/indexer rules validate config/index/top3_price_weighted.yaml
  go run ./cmd/indexer prices import --file data_sources/stock_prices.csv
  go run ./cmd/indexer serve
  go run ./cmd/indexer scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags; empty values fall back to the environment
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "index rules YAML (default: INDEX_RULES_FILE or built-in rules)")
	rootCmd.PersistentFlags().StringVar(&priceFile, "prices", "", "price CSV file (default: PRICE_FILE)")
	rootCmd.PersistentFlags().StringVar(&priceSrc, "source", "", "price source csv|postgres (default: PRICE_SOURCE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
