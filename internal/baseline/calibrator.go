// Package baseline builds per-agent statistical norms from historical
// runs. The calibrator is recomputed wholesale after each run ends, so
// the baseline always reflects the most recent history window.
package baseline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/driftwatch/driftwatch/internal/storage"
	"github.com/driftwatch/driftwatch/internal/types"
)

const (
	// minSequenceLength and maxSequenceLength bound the mined action
	// subsequences
	minSequenceLength = 2
	maxSequenceLength = 4
	// topSequences caps how many common subsequences are kept
	topSequences = 5
	// actionWindow is how many trailing actions per run feed the miner
	actionWindow = 50
)

// Calibrator derives BaselineStats from an agent's stored runs.
type Calibrator struct {
	store        storage.Store
	requiredRuns int
	logger       *slog.Logger
}

// New creates a calibrator. requiredRuns is the number of observed runs
// before the baseline is considered trustworthy; values below 1 fall
// back to the default of 30.
func New(store storage.Store, requiredRuns int, logger *slog.Logger) *Calibrator {
	if requiredRuns < 1 {
		requiredRuns = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calibrator{store: store, requiredRuns: requiredRuns, logger: logger}
}

// RequiredRuns returns the calibration run threshold.
func (c *Calibrator) RequiredRuns() int { return c.requiredRuns }

// UpdateBaseline recomputes the agent's baseline from its most recent
// runs (at most requiredRuns of them), persists it, and returns it.
// An agent with no stored runs gets an empty uncalibrated baseline.
func (c *Calibrator) UpdateBaseline(ctx context.Context, agentID string) (*types.BaselineStats, error) {
	runIDs, err := c.store.GetRunIDs(ctx, agentID, c.requiredRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	baseline := &types.BaselineStats{AgentID: agentID}

	if len(runIDs) == 0 {
		if err := c.store.SaveBaseline(ctx, baseline); err != nil {
			return nil, fmt.Errorf("failed to save baseline: %w", err)
		}
		return baseline, nil
	}

	tokensPerRun := make([]float64, 0, len(runIDs))
	toolsPerRun := make([]float64, 0, len(runIDs))
	durations := make([]float64, 0, len(runIDs))
	var allSequences [][]string

	for _, runID := range runIDs {
		stats, err := c.store.GetRunStats(ctx, agentID, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to get stats for run %s: %w", runID, err)
		}
		tokensPerRun = append(tokensPerRun, float64(stats.TotalTokens))
		toolsPerRun = append(toolsPerRun, float64(stats.ToolCalls))
		durations = append(durations, stats.TotalDurationMs)

		actions, err := c.store.GetRecentActions(ctx, agentID, runID, actionWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to get actions for run %s: %w", runID, err)
		}
		if len(actions) > 0 {
			allSequences = append(allSequences, actions)
		}
	}

	baseline.CalibrationRuns = len(runIDs)
	baseline.MeanTokensPerRun, baseline.StdTokensPerRun = meanStd(tokensPerRun)
	baseline.MeanToolsPerRun, baseline.StdToolsPerRun = meanStd(toolsPerRun)
	baseline.MeanDurationMs, baseline.StdDurationMs = meanStd(durations)
	baseline.CommonSequences = findCommonSequences(allSequences)
	baseline.IsCalibrated = len(runIDs) >= c.requiredRuns

	if err := c.store.SaveBaseline(ctx, baseline); err != nil {
		return nil, fmt.Errorf("failed to save baseline: %w", err)
	}

	if baseline.IsCalibrated {
		c.logger.Info("baseline calibrated",
			"agent_id", agentID,
			"runs", baseline.CalibrationRuns,
			"mean_tokens", baseline.MeanTokensPerRun,
			"mean_tools", baseline.MeanToolsPerRun)
	} else {
		c.logger.Info("baseline partial",
			"agent_id", agentID,
			"runs", baseline.CalibrationRuns,
			"required", c.requiredRuns)
	}

	return baseline, nil
}

// meanStd returns the population mean and standard deviation. The std
// is 0 unless at least two samples exist, matching how a single run
// gives no notion of spread.
func meanStd(samples []float64) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(len(samples))
	if len(samples) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range samples {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(samples)))
}

// findCommonSequences mines the most frequent action subsequences of
// length 2 to 4 across runs. Each distinct subsequence counts at most
// once per run, so multi-run habits rank above single-run loops. Ties
// break by first appearance to keep output deterministic.
func findCommonSequences(allSequences [][]string) [][]string {
	type entry struct {
		actions []string
		count   int
		order   int
	}
	counts := make(map[string]*entry)

	for _, seq := range allSequences {
		seen := make(map[string]bool)
		for length := minSequenceLength; length <= maxSequenceLength && length <= len(seq); length++ {
			for i := 0; i+length <= len(seq); i++ {
				sub := seq[i : i+length]
				key := strings.Join(sub, "\x00")
				if seen[key] {
					continue
				}
				seen[key] = true
				if e, ok := counts[key]; ok {
					e.count++
				} else {
					counts[key] = &entry{
						actions: append([]string(nil), sub...),
						count:   1,
						order:   len(counts),
					}
				}
			}
		}
	}

	entries := make([]*entry, 0, len(counts))
	for _, e := range counts {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].order < entries[j].order
	})

	if len(entries) > topSequences {
		entries = entries[:topSequences]
	}
	result := make([][]string, len(entries))
	for i, e := range entries {
		result[i] = e.actions
	}
	return result
}
