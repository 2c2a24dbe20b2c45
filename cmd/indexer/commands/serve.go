package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/indexmodel/internal/api"
	"github.com/wonny/indexmodel/internal/api/handlers"
	"github.com/wonny/indexmodel/internal/pipeline"
	"github.com/wonny/indexmodel/internal/scheduler"
	"github.com/wonny/indexmodel/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the index API server",
	Long: `Compute the index once and serve its levels over HTTP.

With --with-scheduler the index is recomputed on RECOMPUTE_SCHEDULE and the
served levels are swapped in place after each successful run.

Endpoints:
  GET  /health           - Health check
  GET  /api/levels       - Levels (?from=YYYY-MM-DD&to=YYYY-MM-DD)
  GET  /api/summary      - Return and risk summary for a range
  GET  /api/rebalances   - Rebalance log
  GET  /api/state        - Current rebalance state

Example:
  go run ./cmd/indexer serve
  go run ./cmd/indexer serve --port 8089 --with-scheduler`,
	RunE: runServe,
}

var (
	servePort      string
	serveScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (default: PORT)")
	serveCmd.Flags().BoolVar(&serveScheduler, "with-scheduler", false, "recompute on RECOMPUTE_SCHEDULE")
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}
	if servePort != "" {
		d.cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.connect(ctx, false); err != nil {
		return err
	}
	defer d.close()

	d.log.WithFields(map[string]interface{}{
		"port":  d.cfg.Port,
		"env":   d.cfg.Env,
		"index": d.rules.Meta.IndexID,
	}).Info("Initializing API server")

	// 1. Initial computation
	initial, err := d.orchestrator(ctx, false, nil)
	if err != nil {
		return err
	}
	result, err := initial.Run(ctx, pipeline.RunConfig{RunID: "serve-initial"})
	if err != nil {
		return fmt.Errorf("initial computation: %w", err)
	}

	// 2. Service, handler, router
	service := api.NewLevelService(result.Engine, d.rules.Meta.IndexID)
	indexHandler := handlers.NewIndexHandler(service, d.log)
	router := api.NewRouter(indexHandler, d.log)
	server := api.New(d.cfg, d.log, router)

	// 3. Optional recompute schedule
	if serveScheduler {
		orch, err := d.orchestrator(ctx, true, service)
		if err != nil {
			return err
		}

		sched := scheduler.New(d.log)
		job := jobs.NewRecomputeJob(orch, d.cfg.Index.RecomputeSchedule, "", d.log)
		if err := sched.AddJob(job); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		if next, err := sched.NextRun(job.Name()); err == nil {
			d.log.WithField("next_run", next.Format(time.RFC3339)).Info("Recompute scheduled")
		}
	}

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/levels")
	fmt.Println("  GET  /api/summary")
	fmt.Println("  GET  /api/rebalances")
	fmt.Println("  GET  /api/state")
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	d.log.Info("Server exited")
	return nil
}
