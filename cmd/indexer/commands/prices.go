package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/prices"
	"github.com/wonny/indexmodel/internal/selection"
)

// pricesCmd represents the prices command
var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Manage the price table",
	Long: `Load, import and inspect daily closing prices.

Subcommands:
  import   - copy a price CSV into Postgres
  inspect  - summarize coverage of the configured price source and rank tickers

Example:
  go run ./cmd/indexer prices import --file data_sources/stock_prices.csv
  go run ./cmd/indexer prices inspect --as-of 2020-06-30`,
}

var (
	pricesImportCmd = &cobra.Command{
		Use:   "import",
		Short: "Import a price CSV into Postgres",
		RunE:  runPricesImport,
	}

	pricesInspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Summarize prices and rank tickers on a date",
		RunE:  runPricesInspect,
	}
)

var (
	importFile  string
	inspectAsOf string
	inspectTop  int
)

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesImportCmd)
	pricesCmd.AddCommand(pricesInspectCmd)

	pricesImportCmd.Flags().StringVar(&importFile, "file", "", "price CSV (default: PRICE_FILE)")
	pricesInspectCmd.Flags().StringVar(&inspectAsOf, "as-of", "", "ranking date (YYYY-MM-DD, default: last price date)")
	pricesInspectCmd.Flags().IntVar(&inspectTop, "top", 10, "number of ranked tickers to show")
}

func runPricesImport(cmd *cobra.Command, args []string) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}

	path := d.cfg.Index.PriceFile
	if importFile != "" {
		path = importFile
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := d.connect(ctx, true); err != nil {
		return err
	}
	defer d.close()

	table, err := prices.LoadCSVFile(path)
	if err != nil {
		return err
	}

	repo := prices.NewRepository(d.db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	n, err := repo.SaveTable(ctx, table)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	if d.redis.Enabled() {
		if err := prices.NewCachedLoader(repo, d.cache(), d.cfg.Index.PriceCacheTTL, d.log).Invalidate(ctx, time.Time{}, time.Time{}); err != nil {
			d.log.WithError(err).Warn("Price cache invalidation failed")
		}
	}

	first, last := table.Range()
	PrintSuccess(fmt.Sprintf("Imported %d prices for %d tickers (%s ~ %s)",
		n, len(table.Tickers()), first.Format(calendar.DateLayout), last.Format(calendar.DateLayout)))
	return nil
}

func runPricesInspect(cmd *cobra.Command, args []string) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := d.connect(ctx, false); err != nil {
		return err
	}
	defer d.close()

	loader, err := d.loader()
	if err != nil {
		return err
	}
	table, err := loader.LoadTable(ctx, time.Time{}, time.Time{})
	if err != nil {
		return err
	}

	first, last := table.Range()
	asOf := last
	if inspectAsOf != "" {
		if asOf, err = calendar.ParseDate(inspectAsOf); err != nil {
			return fmt.Errorf("invalid --as-of date: %w", err)
		}
	}

	PrintHeader("Prices: " + loader.Source())
	PrintKeyValue("Tickers", fmt.Sprintf("%d", len(table.Tickers())), 10)
	PrintKeyValue("Dates", fmt.Sprintf("%d", table.Len()), 10)
	PrintKeyValue("Range", fmt.Sprintf("%s ~ %s", first.Format(calendar.DateLayout), last.Format(calendar.DateLayout)), 10)

	cal, _, err := d.rules.Build()
	if err != nil {
		return err
	}
	report := prices.NewQualityGate(cal, prices.DefaultQualityConfig()).Check(table)
	PrintKeyValue("Coverage", fmt.Sprintf("%s of %d business days", formatPct(report.DayCoverage()), report.BusinessDays), 10)
	PrintKeyValue("Score", fmt.Sprintf("%.4f", report.QualityScore), 10)
	for _, issue := range report.Issues {
		PrintWarning(issue)
	}
	PrintSeparator()

	ranked, err := selection.NewSelector(table, d.log).Rank(asOf)
	if err != nil {
		PrintWarning(err.Error())
		return nil
	}

	fmt.Printf("Ranking as of %s\n\n", asOf.Format(calendar.DateLayout))
	widths := []int{6, 16, 12}
	PrintTableHeader([]string{"Rank", "Ticker", "Price"}, widths)
	for i, r := range ranked {
		if i >= inspectTop {
			break
		}
		PrintTableRow([]string{fmt.Sprintf("%d", r.Rank), r.Ticker, fmt.Sprintf("%.4f", r.Price)}, widths)
	}

	return nil
}
