package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs <agent-id>",
	Short: "List recent runs for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID := args[0]
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := context.Background()

		runIDs, err := store.GetRunIDs(ctx, agentID, limit)
		if err != nil {
			return err
		}
		if len(runIDs) == 0 {
			fmt.Printf("No runs found for agent '%s'\n", agentID)
			return nil
		}

		fmt.Printf("\n%s\n\n", color.New(color.Bold).Sprintf("Recent runs for '%s'", agentID))
		fmt.Printf("%-16s  %8s  %10s  %8s  %12s\n", "Run ID", "Events", "Tokens", "Tools", "Duration")

		for _, runID := range runIDs {
			stats, err := store.GetRunStats(ctx, agentID, runID)
			if err != nil {
				return err
			}
			duration := "-"
			if stats.TotalDurationMs > 0 {
				duration = fmt.Sprintf("%.0fms", stats.TotalDurationMs)
			}
			fmt.Printf("%-16s  %8d  %10d  %8d  %12s\n",
				runID, stats.EventCount, stats.TotalTokens, stats.ToolCalls, duration)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 10, "Number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
