package main

import (
	"os"

	"github.com/wonny/indexmodel/cmd/indexer/commands"
)

// main is the entry point for the indexer CLI
// ⭐ single CLI entry point: go run ./cmd/indexer [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
