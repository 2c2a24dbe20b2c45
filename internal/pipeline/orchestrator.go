package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/contracts"
	"github.com/wonny/indexmodel/internal/export"
	"github.com/wonny/indexmodel/internal/index"
	"github.com/wonny/indexmodel/internal/indexconfig"
	"github.com/wonny/indexmodel/internal/levelstore"
	"github.com/wonny/indexmodel/internal/prices"
	"github.com/wonny/indexmodel/pkg/logger"
)

// Publisher receives a freshly computed engine, e.g. the API's LevelService
type Publisher interface {
	Swap(engine *index.Engine)
}

// invalidator is implemented by cached price loaders
type invalidator interface {
	Invalidate(ctx context.Context, from, to time.Time) error
}

// Orchestrator runs one index computation end to end:
// load prices, check coverage, seed the engine and compute, then export, persist and publish.
// ⭐ SSOT: the compute pipeline is coordinated here only
type Orchestrator struct {
	rules     *indexconfig.Config
	rulesYAML []byte
	loader    prices.TableLoader
	store     *levelstore.Repository // optional
	publisher Publisher              // optional
	logger    *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	RunID      string
	From       time.Time     // zero = index start
	To         time.Time     // zero = last price date
	OutputFile string        // empty = no file export
	Format     export.Format // empty = inferred from OutputFile
	Refresh    bool          // drop cached prices before loading
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	RunID           string
	Engine          *index.Engine
	Series          contracts.Series
	Rebalances      []contracts.Rebalance
	Summary         index.Summary
	Quality         prices.QualityReport
	Snapshot        *indexconfig.RunSnapshot
	StoredRunID     int64
	CompletedStages []string
	Duration        time.Duration
}

// NewOrchestrator creates a new orchestrator. store and publisher may be nil.
func NewOrchestrator(
	rules *indexconfig.Config,
	rulesYAML []byte,
	loader prices.TableLoader,
	store *levelstore.Repository,
	publisher Publisher,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		rules:     rules,
		rulesYAML: rulesYAML,
		loader:    loader,
		store:     store,
		publisher: publisher,
		logger:    log,
	}
}

// Run executes the pipeline. A failing stage stops the run; nothing is retried.
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	result := &RunResult{
		RunID:           config.RunID,
		CompletedStages: make([]string, 0, 6),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":   config.RunID,
		"index_id": o.rules.Meta.IndexID,
		"source":   o.loader.Source(),
		"output":   config.OutputFile,
	}).Info("Starting index run")

	// Load
	table, err := o.loadPrices(ctx, config)
	if err != nil {
		return result, fmt.Errorf("load prices: %w", err)
	}
	result.CompletedStages = append(result.CompletedStages, "load")

	// Check
	cal, rules, err := o.rules.Build()
	if err != nil {
		return result, fmt.Errorf("build rules: %w", err)
	}
	result.Quality = o.check(table, cal)
	result.CompletedStages = append(result.CompletedStages, "check")

	// Compute
	engine, series, err := o.compute(table, cal, rules, config)
	if err != nil {
		return result, fmt.Errorf("compute levels: %w", err)
	}
	result.Engine = engine
	result.Series = series
	result.Rebalances = engine.Rebalances()
	result.Summary = index.Summarize(series)
	result.CompletedStages = append(result.CompletedStages, "compute")

	snapshot, err := indexconfig.NewRunSnapshot(o.rules, o.rulesYAML, o.loader.Source())
	if err != nil {
		return result, fmt.Errorf("snapshot rules: %w", err)
	}
	result.Snapshot = snapshot

	// Export
	if config.OutputFile != "" {
		format := config.Format
		if format == "" {
			format = export.FormatFromPath(config.OutputFile)
		}
		if err := export.WriteFile(config.OutputFile, format, o.rules.Meta.IndexID, series); err != nil {
			return result, fmt.Errorf("export %s: %w", config.OutputFile, err)
		}
		result.CompletedStages = append(result.CompletedStages, "export")
	}

	// Persist
	if o.store != nil {
		id, err := o.persist(ctx, snapshot, series, result.Rebalances)
		if err != nil {
			return result, fmt.Errorf("persist levels: %w", err)
		}
		result.StoredRunID = id
		result.CompletedStages = append(result.CompletedStages, "persist")
	}

	// Publish
	if o.publisher != nil {
		o.publisher.Swap(engine)
		result.CompletedStages = append(result.CompletedStages, "publish")
	}

	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"run_id":       config.RunID,
		"levels":       len(series),
		"rebalances":   len(result.Rebalances),
		"total_return": fmt.Sprintf("%.2f%%", result.Summary.TotalReturn*100),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.Summary.MaxDrawdown*100),
		"config_hash":  snapshot.ConfigHash,
		"stages":       result.CompletedStages,
		"duration":     result.Duration.String(),
	}).Info("Index run completed")

	return result, nil
}

func (o *Orchestrator) loadPrices(ctx context.Context, config RunConfig) (*prices.Table, error) {
	if config.Refresh {
		if inv, ok := o.loader.(invalidator); ok {
			if err := inv.Invalidate(ctx, time.Time{}, time.Time{}); err != nil {
				o.logger.WithError(err).Warn("Price cache invalidation failed")
			}
		}
	}

	table, err := o.loader.LoadTable(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	first, last := table.Range()
	o.logger.WithFields(map[string]interface{}{
		"tickers": len(table.Tickers()),
		"dates":   table.Len(),
		"first":   first.Format(calendar.DateLayout),
		"last":    last.Format(calendar.DateLayout),
	}).Debug("Prices loaded")

	return table, nil
}

// check reports coverage gaps; they only warn because the engine skips unpriced days
func (o *Orchestrator) check(table *prices.Table, cal *calendar.Calendar) prices.QualityReport {
	report := prices.NewQualityGate(cal, prices.DefaultQualityConfig()).Check(table)

	entry := o.logger.WithFields(map[string]interface{}{
		"business_days": report.BusinessDays,
		"priced_days":   report.PricedDays,
		"quality_score": fmt.Sprintf("%.4f", report.QualityScore),
	})
	if report.Passed {
		entry.Debug("Price quality check passed")
		return report
	}
	for _, issue := range report.Issues {
		entry.WithField("issue", issue).Warn("Price quality below threshold")
	}
	return report
}

func (o *Orchestrator) compute(table *prices.Table, cal *calendar.Calendar, rules index.Rules, config RunConfig) (*index.Engine, contracts.Series, error) {
	engine, err := index.New(table, cal, rules, o.logger)
	if err != nil {
		return nil, nil, err
	}

	from, to := engine.HistoryRange()
	if !config.From.IsZero() {
		from = config.From
	}
	if !config.To.IsZero() {
		to = config.To
	}

	series, err := engine.ComputeLevels(from, to)
	if err != nil {
		return nil, nil, err
	}
	return engine, series, nil
}

func (o *Orchestrator) persist(ctx context.Context, snapshot *indexconfig.RunSnapshot, series contracts.Series, rebalances []contracts.Rebalance) (int64, error) {
	indexID := o.rules.Meta.IndexID

	if _, err := o.store.SaveLevels(ctx, indexID, series); err != nil {
		return 0, err
	}
	if err := o.store.SaveRebalances(ctx, indexID, rebalances); err != nil {
		return 0, err
	}
	return o.store.SaveRun(ctx, snapshot, series)
}
