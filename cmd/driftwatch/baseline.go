package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline <agent-id>",
	Short: "Show baseline statistics for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID := args[0]

		bl, err := store.GetBaseline(context.Background(), agentID)
		if err != nil {
			return err
		}
		if bl == nil {
			fmt.Printf("No baseline found for agent '%s'\n", agentID)
			return nil
		}

		status := color.YellowString("PENDING")
		if bl.IsCalibrated {
			status = color.GreenString("CALIBRATED")
		}

		fmt.Printf("\n%s  %s\n", color.New(color.Bold).Sprintf("Baseline for '%s'", agentID), status)
		fmt.Printf("  Calibration runs: %d\n", bl.CalibrationRuns)
		fmt.Printf("  Tokens/run:       %.0f ± %.0f\n", bl.MeanTokensPerRun, bl.StdTokensPerRun)
		fmt.Printf("  Tools/run:        %.1f ± %.1f\n", bl.MeanToolsPerRun, bl.StdToolsPerRun)
		fmt.Printf("  Duration/run:     %.0fms ± %.0fms\n", bl.MeanDurationMs, bl.StdDurationMs)

		if len(bl.CommonSequences) > 0 {
			fmt.Printf("\n  Common sequences:\n")
			for _, seq := range bl.CommonSequences {
				fmt.Printf("    %s\n", strings.Join(seq, "  ->  "))
			}
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}
