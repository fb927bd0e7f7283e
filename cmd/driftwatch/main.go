// driftwatch is the CLI for inspecting drift-monitoring data: alerts,
// traces, runs, and baselines.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/storage/sqlite"
)

var (
	dbPath string
	store  *sqlite.SQLiteStore
)

var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "Real-time drift detection for AI agents",
	Long: `driftwatch monitors agent execution traces and surfaces behavioral
drift: repetitive tool-call loops, outputs wandering from the stated
goal, and abnormal resource consumption.

This CLI inspects the data an embedded monitor has recorded.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		store, err = sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", dbPath, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "driftwatch.db", "Path to the driftwatch database")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
