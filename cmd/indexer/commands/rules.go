package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/indexconfig"
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate index rules",
	Long: `Inspect and validate the YAML rules that define the index.

Subcommands:
  validate  - check a rules file and report warnings
  show      - print the effective rules and their hash

Example:
  go run ./cmd/indexer rules validate config/index/top3_price_weighted.yaml
  go run ./cmd/indexer rules show --rules config/index/top3_price_weighted.yaml`,
}

var (
	rulesValidateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a rules file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRulesValidate,
	}

	rulesShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective rules",
		RunE:  runRulesShow,
	}
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesShowCmd)
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	path := rulesFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no rules file given")
	}

	cfg, _, err := indexconfig.Load(path)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	hash, err := indexconfig.Hash(cfg)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s is valid (index %s, hash %s)", path, cfg.Meta.IndexID, shortHash(hash)))
	for _, w := range indexconfig.Warn(cfg) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	return nil
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}

	cal, rules, err := d.rules.Build()
	if err != nil {
		return err
	}
	hash, err := indexconfig.Hash(d.rules)
	if err != nil {
		return err
	}

	source := d.cfg.Index.RulesFile
	if source == "" {
		source = "built-in defaults"
	}

	weights := make([]string, len(rules.Weights))
	for i, w := range rules.Weights {
		weights[i] = fmt.Sprintf("%g", w)
	}

	PrintHeader("Index Rules: " + d.rules.Meta.IndexID)
	PrintKeyValue("Source", source, 14)
	PrintKeyValue("Hash", hash, 14)
	PrintKeyValue("Weekmask", cal.Weekmask().String(), 14)
	PrintKeyValue("Holidays", fmt.Sprintf("%d", len(d.rules.Calendar.Holidays)), 14)
	PrintKeyValue("Constituents", fmt.Sprintf("%d", len(rules.Weights)), 14)
	PrintKeyValue("Weights", strings.Join(weights, " / "), 14)
	PrintKeyValue("Start Date", rules.StartDate.Format(calendar.DateLayout), 14)
	PrintKeyValue("Base Date", cal.RollForward(rules.StartDate).Format(calendar.DateLayout), 14)
	PrintKeyValue("Initial Level", fmt.Sprintf("%g", rules.InitialLevel), 14)
	PrintSeparator()
	fmt.Print(string(d.rulesYAML))

	return nil
}
