package config_test

import (
	"fmt"

	"github.com/wonny/indexmodel/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Price source: %s (%s)\n", cfg.Index.PriceSource, cfg.Index.PriceFile)
	fmt.Printf("Output: %s\n", cfg.Index.OutputFile)
}
