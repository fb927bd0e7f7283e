package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/internal/types"
)

// ResourceSpikeConfig holds tuning for the resource-spike detector.
type ResourceSpikeConfig struct {
	// SpikeMultiplier scales the standard deviation when deriving the
	// statistical threshold above the baseline mean
	// Default: 2.5
	SpikeMultiplier float64 `yaml:"spike_multiplier"`

	// AbsoluteTokenLimit is the per-run token ceiling that fires even
	// without a calibrated baseline
	// Default: 50000
	AbsoluteTokenLimit int `yaml:"absolute_token_limit"`

	// AbsoluteDurationLimitMs is the wall-clock run duration ceiling
	// Default: 300000 (5 minutes)
	AbsoluteDurationLimitMs float64 `yaml:"absolute_duration_limit_ms"`

	// MaxTrackedRuns bounds the number of concurrently tracked run
	// counters; the longest-tracked run is evicted beyond this
	// Default: 10
	MaxTrackedRuns int `yaml:"max_tracked_runs"`
}

func (c *ResourceSpikeConfig) applyDefaults() {
	if c.SpikeMultiplier <= 0 {
		c.SpikeMultiplier = 2.5
	}
	if c.AbsoluteTokenLimit <= 0 {
		c.AbsoluteTokenLimit = 50000
	}
	if c.AbsoluteDurationLimitMs <= 0 {
		c.AbsoluteDurationLimitMs = 300000
	}
	if c.MaxTrackedRuns <= 0 {
		c.MaxTrackedRuns = 10
	}
}

// runCounter accumulates per-run consumption. Ephemeral, never persisted.
type runCounter struct {
	totalTokens     int
	totalDurationMs float64
	toolCalls       int
	llmCalls        int
	startTime       time.Time
}

// ResourceSpike flags abnormal consumption: token burn, execution time,
// or tool-call volume exceeding baseline norms, plus absolute ceilings
// that hold even before calibration.
//
// The detector owns an in-memory counter per active run, bounded to
// MaxTrackedRuns entries with insertion-order eviction. The counter map
// is internally synchronized so concurrent event submissions for the
// same run are safe.
type ResourceSpike struct {
	config  ResourceSpikeConfig
	enabled bool

	mu       sync.Mutex
	counters map[string]*runCounter
	order    []string // run IDs in insertion order, oldest first

	now func() time.Time // injectable clock for tests
}

// NewResourceSpike creates a resource-spike detector.
func NewResourceSpike(config ResourceSpikeConfig) *ResourceSpike {
	config.applyDefaults()
	return &ResourceSpike{
		config:   config,
		enabled:  true,
		counters: make(map[string]*runCounter),
		now:      time.Now,
	}
}

// Name identifies this detector
func (d *ResourceSpike) Name() types.DetectorType { return types.DetectorResourceSpike }

// Enabled reports whether the detector participates in the pipeline
func (d *ResourceSpike) Enabled() bool { return d.enabled }

// SetEnabled toggles the detector
func (d *ResourceSpike) SetEnabled(enabled bool) { d.enabled = enabled }

// Check updates the run's counters with this event, then applies the
// statistical baseline check (when calibrated) and the absolute safety
// nets. When both layers fire, the higher-scoring verdict wins.
// The counters are updated for every event regardless of verdict.
func (d *ResourceSpike) Check(ctx context.Context, event *types.TraceEvent, baseline *types.BaselineStats) (*types.DriftEvent, error) {
	if !d.enabled {
		return nil, nil
	}

	snapshot, startTime := d.update(event)

	var statDrift *types.DriftEvent
	if baseline != nil && baseline.IsCalibrated {
		statDrift = d.checkBaselineSpike(event, baseline, snapshot)
	}

	absDrift := d.checkAbsoluteLimits(event, snapshot, startTime)

	if statDrift != nil && (absDrift == nil || statDrift.Score >= absDrift.Score) {
		return statDrift, nil
	}
	return absDrift, nil
}

// update applies the event to its run counter, creating (and bounding)
// the counter set as needed, and returns a snapshot for checking.
func (d *ResourceSpike) update(event *types.TraceEvent) (runCounter, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	counter, ok := d.counters[event.RunID]
	if !ok {
		counter = &runCounter{startTime: d.now()}
		d.counters[event.RunID] = counter
		d.order = append(d.order, event.RunID)

		// Evict the longest-tracked run once the bound is exceeded.
		for len(d.counters) > d.config.MaxTrackedRuns {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.counters, oldest)
		}
	}

	counter.totalTokens += event.TokenCount
	counter.totalDurationMs += event.DurationMs
	switch event.ActionType {
	case types.ActionToolCall:
		counter.toolCalls++
	case types.ActionLLMRequest:
		counter.llmCalls++
	}

	return *counter, counter.startTime
}

// checkBaselineSpike compares the run's totals against the calibrated
// baseline. Metrics are tried in a fixed order and the first exceeding
// metric wins.
func (d *ResourceSpike) checkBaselineSpike(event *types.TraceEvent, baseline *types.BaselineStats, counter runCounter) *types.DriftEvent {
	checks := []struct {
		metric  string
		current float64
		mean    float64
		std     float64
		unit    string
	}{
		{"token_burn", float64(counter.totalTokens), baseline.MeanTokensPerRun, baseline.StdTokensPerRun, "tokens"},
		{"duration", counter.totalDurationMs, baseline.MeanDurationMs, baseline.StdDurationMs, "ms"},
		{"tool_calls", float64(counter.toolCalls), baseline.MeanToolsPerRun, baseline.StdToolsPerRun, "calls"},
	}

	for _, c := range checks {
		if c.mean == 0 && c.std == 0 {
			continue
		}

		// The mean*0.1 floor keeps a tiny std from producing a hair-trigger
		// threshold; the mean*1.5 guard rejects spikes that are large only
		// relative to the std.
		spread := c.std
		if floor := c.mean * 0.1; spread < floor {
			spread = floor
		}
		threshold := c.mean + d.config.SpikeMultiplier*spread

		if c.current <= threshold || c.current <= c.mean*1.5 {
			continue
		}

		denom := threshold
		if denom < 1 {
			denom = 1
		}
		score := (c.current - threshold) / denom
		if score > 1 {
			score = 1
		}

		return types.NewDriftEvent(
			event.AgentID, event.RunID, types.DetectorResourceSpike, score,
			fmt.Sprintf("Resource spike: %s at %.0f %s (baseline: %.0f +/- %.0f)",
				c.metric, c.current, c.unit, c.mean, c.std),
			fmt.Sprintf("Check for malformed input or error loops causing elevated %s", c.metric),
			map[string]any{
				"metric":        c.metric,
				"current":       c.current,
				"baseline_mean": c.mean,
				"baseline_std":  c.std,
				"threshold":     threshold,
				"run_totals": map[string]any{
					"total_tokens":      counter.totalTokens,
					"total_duration_ms": counter.totalDurationMs,
					"tool_calls":        counter.toolCalls,
					"llm_calls":         counter.llmCalls,
				},
			},
		)
	}
	return nil
}

// checkAbsoluteLimits applies the safety-net ceilings that hold with or
// without a calibrated baseline.
func (d *ResourceSpike) checkAbsoluteLimits(event *types.TraceEvent, counter runCounter, startTime time.Time) *types.DriftEvent {
	if counter.totalTokens > d.config.AbsoluteTokenLimit {
		score := float64(counter.totalTokens-d.config.AbsoluteTokenLimit) / float64(d.config.AbsoluteTokenLimit)
		if score > 1 {
			score = 1
		}
		if score < 0.7 {
			score = 0.7
		}
		return types.NewDriftEvent(
			event.AgentID, event.RunID, types.DetectorResourceSpike, score,
			fmt.Sprintf("Resource spike: token count %d exceeds absolute limit (%d)",
				counter.totalTokens, d.config.AbsoluteTokenLimit),
			"Investigate agent run - token consumption is abnormally high",
			map[string]any{
				"metric":         "absolute_token_limit",
				"current_tokens": counter.totalTokens,
				"limit":          d.config.AbsoluteTokenLimit,
			},
		)
	}

	// Wall-clock elapsed since the run's first observed event, not the
	// sum of reported durations.
	elapsedMs := float64(d.now().Sub(startTime)) / float64(time.Millisecond)
	if elapsedMs > d.config.AbsoluteDurationLimitMs {
		return types.NewDriftEvent(
			event.AgentID, event.RunID, types.DetectorResourceSpike, 0.8,
			fmt.Sprintf("Resource spike: run duration %.1fs exceeds limit (%.0fs)",
				elapsedMs/1000, d.config.AbsoluteDurationLimitMs/1000),
			"Agent may be hung or stuck - consider terminating the run",
			map[string]any{
				"metric":     "absolute_duration_limit",
				"elapsed_ms": elapsedMs,
				"limit_ms":   d.config.AbsoluteDurationLimitMs,
			},
		)
	}

	return nil
}

// TrackedRuns returns the number of runs currently being counted.
func (d *ResourceSpike) TrackedRuns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.counters)
}
