package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tracesCmd = &cobra.Command{
	Use:   "traces <agent-id>",
	Short: "View trace events for an agent run",
	Long: `View the recorded trace events for one run of an agent.

Examples:
  # Latest run
  driftwatch traces logistics-v2

  # A specific run
  driftwatch traces logistics-v2 --run 3f2a9c1b04de`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID := args[0]
		runID, _ := cmd.Flags().GetString("run")
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := context.Background()

		if runID == "latest" || runID == "" {
			runIDs, err := store.GetRunIDs(ctx, agentID, 1)
			if err != nil {
				return err
			}
			if len(runIDs) == 0 {
				fmt.Printf("No runs found for agent '%s'\n", agentID)
				return nil
			}
			runID = runIDs[0]
		}

		events, err := store.GetRunTraces(ctx, agentID, runID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Printf("No traces found for run '%s'\n", runID)
			return nil
		}

		bold := color.New(color.Bold)
		fmt.Printf("\n%s %s  %s %s\n\n", bold.Sprint("Agent:"), agentID, bold.Sprint("Run:"), runID)
		fmt.Printf("%-20s  %-16s  %-24s  %8s  %10s\n", "Time", "Type", "Action", "Tokens", "Duration")

		shown := 0
		for _, e := range events {
			if shown >= limit {
				break
			}
			tokens := "-"
			if e.TokenCount > 0 {
				tokens = fmt.Sprintf("%d", e.TokenCount)
			}
			duration := "-"
			if e.DurationMs > 0 {
				duration = fmt.Sprintf("%.0fms", e.DurationMs)
			}
			fmt.Printf("%-20s  %-16s  %-24s  %8s  %10s\n",
				formatTime(e.Timestamp), e.ActionType, e.ActionName, tokens, duration)
			shown++
		}

		fmt.Printf("\n%d event(s) in run\n", len(events))
		return nil
	},
}

func init() {
	tracesCmd.Flags().String("run", "latest", "Run ID or 'latest'")
	tracesCmd.Flags().Int("limit", 50, "Max events")
	rootCmd.AddCommand(tracesCmd)
}
