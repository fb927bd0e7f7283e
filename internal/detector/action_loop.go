package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftwatch/driftwatch/internal/storage"
	"github.com/driftwatch/driftwatch/internal/types"
)

// ActionLoopConfig holds tuning for the action-loop detector.
type ActionLoopConfig struct {
	// WindowSize is how many recent tool calls to inspect
	// Default: 20
	WindowSize int `yaml:"window_size"`

	// MaxRepeats is the repeat count that counts as a loop
	// Default: 4
	MaxRepeats int `yaml:"max_repeats"`

	// SequenceLength is the longest repeating pattern to look for
	// Default: 3
	SequenceLength int `yaml:"sequence_length"`
}

func (c *ActionLoopConfig) applyDefaults() {
	if c.WindowSize <= 0 {
		c.WindowSize = 20
	}
	if c.MaxRepeats <= 0 {
		c.MaxRepeats = 4
	}
	if c.SequenceLength <= 0 {
		c.SequenceLength = 3
	}
}

// ActionLoop flags agents stuck in repetitive tool-call cycles. It
// inspects a sliding window of recent tool calls and fires when the
// same tool, or the same short tool sequence, repeats too many times.
// Plain sequence matching, no model calls.
type ActionLoop struct {
	store   storage.Store
	config  ActionLoopConfig
	enabled bool
}

// NewActionLoop creates an action-loop detector reading history from
// the given store.
func NewActionLoop(store storage.Store, config ActionLoopConfig) *ActionLoop {
	config.applyDefaults()
	return &ActionLoop{store: store, config: config, enabled: true}
}

// Name identifies this detector
func (d *ActionLoop) Name() types.DetectorType { return types.DetectorActionLoop }

// Enabled reports whether the detector participates in the pipeline
func (d *ActionLoop) Enabled() bool { return d.enabled }

// SetEnabled toggles the detector
func (d *ActionLoop) SetEnabled(enabled bool) { d.enabled = enabled }

// Check inspects the run's recent tool calls for loops. Only tool-call
// events are considered; everything else returns no verdict immediately.
func (d *ActionLoop) Check(ctx context.Context, event *types.TraceEvent, baseline *types.BaselineStats) (*types.DriftEvent, error) {
	if !d.enabled || event.ActionType != types.ActionToolCall {
		return nil, nil
	}

	recent, err := d.store.GetRecentActions(ctx, event.AgentID, event.RunID, d.config.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent actions: %w", err)
	}

	if len(recent) < d.config.MaxRepeats {
		return nil, nil
	}

	if drift := d.checkSingleRepeat(recent, event); drift != nil {
		return drift, nil
	}
	return d.checkSequenceRepeat(recent, event), nil
}

// checkSingleRepeat detects one tool called over and over.
func (d *ActionLoop) checkSingleRepeat(recent []string, event *types.TraceEvent) *types.DriftEvent {
	tailNames := recent[len(recent)-d.config.MaxRepeats:]
	toolName := tailNames[0]
	for _, name := range tailNames[1:] {
		if name != toolName {
			return nil
		}
	}

	// The last maxRepeats calls are identical; count the full trailing run.
	repeatCount := 0
	for i := len(recent) - 1; i >= 0 && recent[i] == toolName; i-- {
		repeatCount++
	}

	score := loopScore(repeatCount, d.config.MaxRepeats)
	return types.NewDriftEvent(
		event.AgentID, event.RunID, types.DetectorActionLoop, score,
		fmt.Sprintf("Action loop: %s called %dx consecutively", toolName, repeatCount),
		fmt.Sprintf("Check %s input/output for stale data or error loops", toolName),
		map[string]any{
			"tool_name":      toolName,
			"repeat_count":   repeatCount,
			"recent_actions": tail(recent, 10),
		},
	)
}

// checkSequenceRepeat detects repeating patterns like A,B,A,B or
// A,B,C,A,B,C. The shortest qualifying pattern length wins; longer
// lengths are not tried once one fires.
func (d *ActionLoop) checkSequenceRepeat(recent []string, event *types.TraceEvent) *types.DriftEvent {
	for seqLen := 2; seqLen <= d.config.SequenceLength; seqLen++ {
		if len(recent) < seqLen*d.config.MaxRepeats {
			continue
		}

		pattern := recent[len(recent)-seqLen:]

		// Walk backward in fixed-size blocks counting consecutive matches.
		repeatCount := 0
		for idx := len(recent) - seqLen; idx >= 0; idx -= seqLen {
			if !equalBlock(recent[idx:idx+seqLen], pattern) {
				break
			}
			repeatCount++
		}

		if repeatCount >= d.config.MaxRepeats {
			score := loopScore(repeatCount, d.config.MaxRepeats)
			return types.NewDriftEvent(
				event.AgentID, event.RunID, types.DetectorActionLoop, score,
				fmt.Sprintf("Action loop: sequence [%s] repeated %dx", strings.Join(pattern, " -> "), repeatCount),
				"Review agent logic for circular tool dependencies",
				map[string]any{
					"sequence":       append([]string(nil), pattern...),
					"repeat_count":   repeatCount,
					"recent_actions": tail(recent, 15),
				},
			)
		}
	}
	return nil
}

// loopScore maps a repeat count to [0,1]: maxRepeats yields 0.5 and the
// score saturates at twice that.
func loopScore(repeatCount, maxRepeats int) float64 {
	score := float64(repeatCount) / float64(maxRepeats*2)
	if score > 1 {
		return 1
	}
	return score
}

func equalBlock(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
