package jobs

import (
	"context"
	"time"

	"github.com/wonny/indexmodel/internal/pipeline"
	"github.com/wonny/indexmodel/pkg/logger"
)

// Runner runs one index computation
type Runner interface {
	Run(ctx context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error)
}

// RecomputeJob recomputes the index from freshly loaded prices
type RecomputeJob struct {
	runner     Runner
	schedule   string
	outputFile string
	logger     *logger.Logger
}

// NewRecomputeJob creates a new recompute job
func NewRecomputeJob(runner Runner, schedule, outputFile string, log *logger.Logger) *RecomputeJob {
	return &RecomputeJob{
		runner:     runner,
		schedule:   schedule,
		outputFile: outputFile,
		logger:     log,
	}
}

// Name returns the job name
func (j *RecomputeJob) Name() string {
	return "index_recompute"
}

// Schedule returns the cron schedule (weekday evenings by default)
func (j *RecomputeJob) Schedule() string {
	return j.schedule
}

// Run executes the recompute
func (j *RecomputeJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled index recompute")

	result, err := j.runner.Run(ctx, pipeline.RunConfig{
		RunID:      "scheduled-" + time.Now().UTC().Format("20060102T150405"),
		OutputFile: j.outputFile,
		Refresh:    true,
	})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"levels": len(result.Series),
	}).Info("Scheduled recompute completed")

	return nil
}
