package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/baseline"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <agent-id>",
	Short: "Recompute an agent's baseline from stored runs",
	Long: `Force a baseline recalculation from the agent's stored history.

Normally the baseline refreshes automatically when a run ends; this
command is for rebuilding it after importing data or changing the
required run count.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID := args[0]
		requiredRuns, _ := cmd.Flags().GetInt("runs")

		cal := baseline.New(store, requiredRuns, nil)
		bl, err := cal.UpdateBaseline(context.Background(), agentID)
		if err != nil {
			return err
		}

		status := color.YellowString("PENDING (%d/%d runs)", bl.CalibrationRuns, requiredRuns)
		if bl.IsCalibrated {
			status = color.GreenString("CALIBRATED (%d runs)", bl.CalibrationRuns)
		}
		fmt.Printf("Baseline for '%s': %s\n", agentID, status)
		return nil
	},
}

func init() {
	calibrateCmd.Flags().Int("runs", 30, "Runs required for a calibrated baseline")
	rootCmd.AddCommand(calibrateCmd)
}
