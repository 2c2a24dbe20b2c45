package database_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/indexmodel/pkg/config"
	"github.com/wonny/indexmodel/pkg/database"
)

// Example demonstrates how to open the pool and report its health
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		return
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("Health check failed: %v\n", err)
		return
	}
	fmt.Printf("healthy=%v total_conns=%d\n", status.Healthy, status.Stats.TotalConns)
}
