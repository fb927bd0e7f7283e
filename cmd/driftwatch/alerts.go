package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/storage"
	"github.com/driftwatch/driftwatch/internal/types"
)

var severityColorFuncs = map[types.Severity]func(format string, a ...interface{}) string{
	types.SeverityLow:      color.GreenString,
	types.SeverityMed:      color.YellowString,
	types.SeverityHigh:     color.HiYellowString,
	types.SeverityCritical: color.RedString,
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "View recent drift alerts",
	Long: `View recent drift alerts across agents.

Examples:
  # Everything from the last day
  driftwatch alerts

  # One agent, last week, HIGH and up shown by filtering
  driftwatch alerts --agent logistics-v2 --last 7d --severity HIGH`,
	RunE: func(cmd *cobra.Command, args []string) error {
		last, _ := cmd.Flags().GetString("last")
		agent, _ := cmd.Flags().GetString("agent")
		severity, _ := cmd.Flags().GetString("severity")
		limit, _ := cmd.Flags().GetInt("limit")

		since, err := parseTimeWindow(last)
		if err != nil {
			return err
		}

		filter := storage.DriftFilter{AgentID: agent, Since: since, Limit: limit}
		if severity != "" {
			s := types.Severity(strings.ToUpper(severity))
			if !s.IsValid() {
				return fmt.Errorf("unknown severity %q (use LOW, MED, HIGH, or CRITICAL)", severity)
			}
			filter.Severity = s
		}

		events, err := store.GetDriftEvents(context.Background(), filter)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("No drift events found.")
			return nil
		}

		for _, event := range events {
			label := fmt.Sprintf("[%s]", event.Severity)
			if colorize, ok := severityColorFuncs[event.Severity]; ok {
				label = colorize("%s", label)
			}
			fmt.Printf("\n  %s  %s  %s\n", label, formatTime(event.Timestamp), color.New(color.Bold).Sprint(event.AgentID))
			fmt.Printf("          %s\n", event.Message)
			fmt.Printf("          Suggested action: %s\n", event.SuggestedAction)
		}
		fmt.Printf("\n%d alert(s) shown\n", len(events))
		return nil
	},
}

func init() {
	alertsCmd.Flags().String("last", "24h", "Time window (e.g. 24h, 7d, 30m)")
	alertsCmd.Flags().String("agent", "", "Filter by agent ID")
	alertsCmd.Flags().String("severity", "", "Filter by severity (LOW, MED, HIGH, CRITICAL)")
	alertsCmd.Flags().Int("limit", 20, "Max results")
	rootCmd.AddCommand(alertsCmd)
}

// parseTimeWindow turns "24h", "7d", "30m" into the window's start.
func parseTimeWindow(window string) (time.Time, error) {
	if len(window) < 2 {
		return time.Time{}, fmt.Errorf("invalid time window %q", window)
	}
	value, err := strconv.ParseFloat(window[:len(window)-1], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time window %q", window)
	}

	var unit time.Duration
	switch strings.ToLower(window[len(window)-1:]) {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	default:
		return time.Time{}, fmt.Errorf("unknown time unit in %q (use m/h/d)", window)
	}
	return time.Now().Add(-time.Duration(value * float64(unit))), nil
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format("2006-01-02 15:04:05")
}
