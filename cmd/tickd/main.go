package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tickd",
	Short: "Game-telemetry ingestion worker",
	Long: `tickd consumes game-state snapshots from a Redis queue and turns them
into durable match records and lifetime player statistics.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(recomputeCmd)
}
