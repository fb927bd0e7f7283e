package types

import (
	"fmt"
	"time"
)

// ActionType classifies what kind of action a trace event records.
type ActionType string

const (
	// ActionToolCall indicates the agent invoked a tool
	ActionToolCall ActionType = "tool_call"
	// ActionLLMRequest indicates the agent made a model request
	ActionLLMRequest ActionType = "llm_request"
	// ActionStateTransition indicates an agent lifecycle/state change
	ActionStateTransition ActionType = "state_transition"
)

// IsValid checks if the action type is one of the defined values
func (a ActionType) IsValid() bool {
	switch a {
	case ActionToolCall, ActionLLMRequest, ActionStateTransition:
		return true
	}
	return false
}

// DetectorType identifies which analyzer produced a drift event.
type DetectorType string

const (
	// DetectorActionLoop is the repetitive tool-call loop detector
	DetectorActionLoop DetectorType = "action_loop"
	// DetectorGoalDrift is the semantic goal-drift detector
	DetectorGoalDrift DetectorType = "goal_drift"
	// DetectorResourceSpike is the resource consumption detector
	DetectorResourceSpike DetectorType = "resource_spike"
)

// Severity is the ordered classification of drift intensity.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMed      Severity = "MED"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// severityRanks defines the ordering LOW < MED < HIGH < CRITICAL.
var severityRanks = map[Severity]int{
	SeverityLow:      0,
	SeverityMed:      1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the position of the severity in the LOW<MED<HIGH<CRITICAL
// order. Unknown severities rank below LOW.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return -1
}

// IsValid checks if the severity is one of the defined levels
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// SeverityFromScore maps a normalized drift score to a severity level.
// The breakpoints are fixed: >=0.9 CRITICAL, >=0.7 HIGH, >=0.5 MED,
// otherwise LOW. Every detector derives severity through this function.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 0.9:
		return SeverityCritical
	case score >= 0.7:
		return SeverityHigh
	case score >= 0.5:
		return SeverityMed
	default:
		return SeverityLow
	}
}

// TraceEvent is a single captured event from an agent run. Events are
// immutable once recorded; the event ID is globally unique.
type TraceEvent struct {
	EventID    string         `json:"event_id"`
	AgentID    string         `json:"agent_id"`
	RunID      string         `json:"run_id"`
	ActionType ActionType     `json:"action_type"`
	ActionName string         `json:"action_name"`
	Timestamp  time.Time      `json:"timestamp"`
	TokenCount int            `json:"token_count"`
	InputData  map[string]any `json:"input_data"`
	OutputData map[string]any `json:"output_data"`
	DurationMs float64        `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata"`
}

// Validate checks if the trace event has valid field values
func (e *TraceEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	if e.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if !e.ActionType.IsValid() {
		return fmt.Errorf("invalid action type: %s", e.ActionType)
	}
	if e.ActionName == "" {
		return fmt.Errorf("action_name is required")
	}
	return nil
}

// DriftEvent is a detector's verdict that a run's behavior is anomalous.
type DriftEvent struct {
	EventID  string       `json:"event_id"`
	AgentID  string       `json:"agent_id"`
	RunID    string       `json:"run_id"`
	Detector DetectorType `json:"detector"`
	Severity Severity     `json:"severity"`
	// Score is the normalized drift intensity in [0,1]; higher is worse
	Score           float64        `json:"score"`
	Message         string         `json:"message"`
	SuggestedAction string         `json:"suggested_action"`
	Timestamp       time.Time      `json:"timestamp"`
	// Context carries detector-specific diagnostic data
	Context map[string]any `json:"context"`
}

// BaselineStats is the per-agent statistical summary of normal run
// behavior, rebuilt wholesale on each calibration.
type BaselineStats struct {
	AgentID string `json:"agent_id"`
	// CalibrationRuns is the number of historical runs the stats are built from
	CalibrationRuns  int     `json:"calibration_runs"`
	MeanTokensPerRun float64 `json:"mean_tokens_per_run"`
	StdTokensPerRun  float64 `json:"std_tokens_per_run"`
	MeanToolsPerRun  float64 `json:"mean_tools_per_run"`
	StdToolsPerRun   float64 `json:"std_tools_per_run"`
	MeanDurationMs   float64 `json:"mean_duration_ms"`
	StdDurationMs    float64 `json:"std_duration_ms"`
	// CommonSequences holds the most frequent action subsequences seen
	// during calibration (diagnostic only, max 5)
	CommonSequences [][]string `json:"common_sequences"`
	// MeanGoalSimilarity and StdGoalSimilarity are reserved for a future
	// calibration pass; the calibrator does not populate them
	MeanGoalSimilarity float64 `json:"mean_goal_similarity"`
	StdGoalSimilarity  float64 `json:"std_goal_similarity"`
	// IsCalibrated is true once enough runs have been observed
	IsCalibrated bool `json:"is_calibrated"`
}

// RunStats is the aggregate view of a single run, computed by the store.
type RunStats struct {
	EventCount      int       `json:"event_count"`
	TotalTokens     int       `json:"total_tokens"`
	ToolCalls       int       `json:"tool_calls"`
	LLMCalls        int       `json:"llm_calls"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	TotalDurationMs float64   `json:"total_duration_ms"`
}
