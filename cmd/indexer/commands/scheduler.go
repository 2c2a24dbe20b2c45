package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/indexmodel/internal/scheduler"
	"github.com/wonny/indexmodel/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the recompute schedule",
	Long: `Start the scheduler or run its jobs immediately.

Subcommands:
  start   - run jobs on their schedule until interrupted
  list    - list registered jobs
  run     - run a job now and wait for it

Registered jobs:
  index_recompute: RECOMPUTE_SCHEDULE (default weekdays 18:30)

Example:
  go run ./cmd/indexer scheduler start
  go run ./cmd/indexer scheduler run index_recompute`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE:  runSchedulerStart,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  runSchedulerList,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

var schedulerTimeout time.Duration

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().DurationVar(&schedulerTimeout, "timeout", scheduler.DefaultJobTimeout, "per-run timeout")
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	sched.Start()

	PrintSuccess("Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.GetAllJobs() {
		if next, err := sched.NextRun(name); err == nil {
			fmt.Printf("  - %s (next: %s)\n", name, next.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Printf("  - %s\n", name)
		}
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printJobStats(sched)

	return nil
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	stats := sched.GetJobStats()
	widths := []int{20, 24}
	PrintTableHeader([]string{"Job", "Schedule"}, widths)
	for _, name := range sched.GetAllJobs() {
		PrintTableRow([]string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunJob(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}

	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration))
	return nil
}

// initScheduler wires the recompute job to a persisting pipeline
func initScheduler(ctx context.Context) (*deps, *scheduler.Scheduler, error) {
	d, err := loadDeps()
	if err != nil {
		return nil, nil, err
	}

	if err := d.connect(ctx, false); err != nil {
		return nil, nil, err
	}

	orch, err := d.orchestrator(ctx, true, nil)
	if err != nil {
		d.close()
		return nil, nil, err
	}

	sched := scheduler.New(d.log)
	sched.SetJobTimeout(schedulerTimeout)

	job := jobs.NewRecomputeJob(orch, d.cfg.Index.RecomputeSchedule, d.cfg.Index.OutputFile, d.log)
	if err := sched.AddJob(job); err != nil {
		d.close()
		return nil, nil, err
	}

	return d, sched, nil
}

func printJobStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		stat := stats[name]
		fmt.Printf("📊 %s\n", name)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
	}
}
