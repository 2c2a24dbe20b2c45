package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/export"
	"github.com/wonny/indexmodel/internal/pipeline"
	"github.com/wonny/indexmodel/pkg/config"
)

// computeCmd represents the compute command
var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute index levels and export them",
	Long: `Compute the index from its base date through --to and export the levels
between --from and --to.

The walk always starts at the index base date, so --from only filters the
output. Days where a constituent lacks a price are skipped.

Flags:
  --from      first exported date (YYYY-MM-DD, default: index start)
  --to        last computed date (YYYY-MM-DD, default: last price date)
  --out       output file (default: OUTPUT_FILE)
  --format    csv|xlsx|png (default: from the --out extension)
  --persist   store levels, rebalances and the run in Postgres

Example:
  go run ./cmd/indexer compute --from 2020-01-01 --to 2020-12-31
  go run ./cmd/indexer compute --out levels.xlsx
  go run ./cmd/indexer compute --source postgres --persist`,
	RunE: runCompute,
}

var (
	computeFrom    string
	computeTo      string
	computeOut     string
	computeFormat  string
	computePersist bool
)

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringVar(&computeFrom, "from", "", "first exported date (YYYY-MM-DD)")
	computeCmd.Flags().StringVar(&computeTo, "to", "", "last computed date (YYYY-MM-DD)")
	computeCmd.Flags().StringVar(&computeOut, "out", "", "output file (default: OUTPUT_FILE)")
	computeCmd.Flags().StringVar(&computeFormat, "format", "", "csv|xlsx|png")
	computeCmd.Flags().BoolVar(&computePersist, "persist", false, "store results in Postgres")
}

func runCompute(cmd *cobra.Command, args []string) error {
	var (
		runCfg = pipeline.RunConfig{RunID: "cli-" + time.Now().UTC().Format("20060102T150405")}
		err    error
	)

	if computeFrom != "" {
		if runCfg.From, err = calendar.ParseDate(computeFrom); err != nil {
			return fmt.Errorf("invalid --from date: %w", err)
		}
	}
	if computeTo != "" {
		if runCfg.To, err = calendar.ParseDate(computeTo); err != nil {
			return fmt.Errorf("invalid --to date: %w", err)
		}
	}
	if computeFormat != "" {
		if runCfg.Format, err = export.ParseFormat(computeFormat); err != nil {
			return err
		}
	}

	d, err := loadDeps()
	if err != nil {
		return err
	}

	runCfg.OutputFile = d.cfg.Index.OutputFile
	if computeOut != "" {
		runCfg.OutputFile = computeOut
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	needDB := computePersist || d.cfg.Index.PriceSource == config.PriceSourcePostgres
	if err := d.connect(ctx, needDB); err != nil {
		return err
	}
	defer d.close()

	orch, err := d.orchestrator(ctx, computePersist, nil)
	if err != nil {
		return err
	}

	result, err := orch.Run(ctx, runCfg)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	printComputeResult(result, runCfg.OutputFile)
	return nil
}

func printComputeResult(result *pipeline.RunResult, out string) {
	s := result.Summary

	PrintHeader("Index " + result.Snapshot.IndexID)
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", s.From.Format(calendar.DateLayout), s.To.Format(calendar.DateLayout)), 14)
	PrintKeyValue("Levels", fmt.Sprintf("%d", s.Days), 14)
	PrintKeyValue("Start / End", fmt.Sprintf("%.4f / %.4f", s.StartLevel, s.EndLevel), 14)
	PrintKeyValue("Total Return", formatPct(s.TotalReturn), 14)
	PrintKeyValue("CAGR", formatPct(s.CAGR), 14)
	PrintKeyValue("Volatility", formatPct(s.Volatility), 14)
	PrintKeyValue("Max Drawdown", formatPct(s.MaxDrawdown), 14)
	PrintKeyValue("Config Hash", shortHash(result.Snapshot.ConfigHash), 14)
	PrintSeparator()

	widths := []int{12, 12, 12, 30}
	PrintTableHeader([]string{"Rebalance", "As Of", "Base Level", "Constituents"}, widths)
	for _, rb := range result.Rebalances {
		PrintTableRow([]string{
			rb.Date.Format(calendar.DateLayout),
			rb.AsOf.Format(calendar.DateLayout),
			fmt.Sprintf("%.4f", rb.BaseLevel),
			strings.Join(rb.Constituents, ", "),
		}, widths)
	}
	PrintSeparator()

	if out != "" {
		PrintSuccess("Levels written to " + out)
	}
	if result.StoredRunID != 0 {
		PrintSuccess(fmt.Sprintf("Run #%d stored", result.StoredRunID))
	}
	fmt.Printf("\n✅ Completed in %.2fs\n", result.Duration.Seconds())
}
