package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/indexconfig"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connections and the last stored run",
	Long: `Check the configured backends and report the latest persisted run.

This command:
- connects to Postgres (when DATABASE_URL is set) and reports pool statistics
- pings Redis (when REDIS_ENABLED)
- shows the latest stored run of the configured index

Example:
  go run ./cmd/indexer status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	PrintHeader("Indexer Status")
	PrintKeyValue("Env", d.cfg.Env, 14)
	PrintKeyValue("Index", d.rules.Meta.IndexID, 14)
	PrintKeyValue("Price Source", d.cfg.Index.PriceSource, 14)
	PrintSeparator()

	if err := d.connect(ctx, false); err != nil {
		PrintError(err.Error())
		return err
	}
	defer d.close()

	// Postgres
	if d.db == nil {
		PrintWarning("DATABASE_URL not set, Postgres skipped")
	} else {
		fmt.Printf("Database: %s\n", maskPassword(d.cfg.Database.URL))
		health, err := d.db.HealthCheck(ctx)
		if err != nil {
			PrintError(fmt.Sprintf("Health check failed: %v", err))
			return err
		}
		PrintSuccess(fmt.Sprintf("Postgres healthy (%s)", health.ResponseTime))
		PrintKeyValue("Total Conns", fmt.Sprintf("%d", health.Stats.TotalConns), 14)
		PrintKeyValue("Idle Conns", fmt.Sprintf("%d", health.Stats.IdleConns), 14)
		PrintKeyValue("Acquired", fmt.Sprintf("%d", health.Stats.AcquiredConns), 14)
		PrintKeyValue("Max Conns", fmt.Sprintf("%d", health.Stats.MaxConns), 14)
	}

	// Redis
	if !d.redis.Enabled() {
		PrintWarning("REDIS_ENABLED=false, Redis skipped")
	} else if err := d.redis.Ping(ctx); err != nil {
		PrintError(fmt.Sprintf("Redis ping failed: %v", err))
	} else {
		PrintSuccess(fmt.Sprintf("Redis reachable (%s:%s)", d.cfg.Redis.Host, d.cfg.Redis.Port))
	}

	// Latest run
	store, err := d.store(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}

	run, err := store.LatestRun(ctx, d.rules.Meta.IndexID)
	if err != nil {
		return err
	}
	PrintSeparator()
	if run == nil {
		PrintWarning("No stored runs for " + d.rules.Meta.IndexID)
		return nil
	}

	hash, err := indexconfig.Hash(d.rules)
	if err != nil {
		return err
	}

	fmt.Println("Latest run:")
	PrintKeyValue("Run", fmt.Sprintf("#%d", run.ID), 14)
	PrintKeyValue("Created", run.CreatedAt.Format("2006-01-02 15:04:05"), 14)
	PrintKeyValue("Levels", fmt.Sprintf("%d", run.LevelCount), 14)
	PrintKeyValue("Last Date", run.LastDate.Format(calendar.DateLayout), 14)
	PrintKeyValue("Source", run.PriceSource, 14)
	PrintKeyValue("Config Hash", shortHash(run.ConfigHash), 14)
	if run.ConfigHash != hash {
		PrintWarning("Stored run used different rules than the current config")
	}

	return nil
}

// maskPassword hides the password in a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
