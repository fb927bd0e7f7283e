package types

import (
	"time"

	"github.com/google/uuid"
)

// NewTraceEvent creates a TraceEvent with a generated ID and current
// timestamp. Payload maps default to empty so serialization never emits
// null structures.
func NewTraceEvent(agentID, runID string, actionType ActionType, actionName string) *TraceEvent {
	return &TraceEvent{
		EventID:    uuid.New().String(),
		AgentID:    agentID,
		RunID:      runID,
		ActionType: actionType,
		ActionName: actionName,
		Timestamp:  time.Now(),
		InputData:  make(map[string]any),
		OutputData: make(map[string]any),
		Metadata:   make(map[string]any),
	}
}

// NewDriftEvent creates a DriftEvent with a generated ID and current
// timestamp. Severity is derived from the score, never passed in, so
// every detector applies the same breakpoints.
func NewDriftEvent(agentID, runID string, detector DetectorType, score float64, message, suggestedAction string, context map[string]any) *DriftEvent {
	if context == nil {
		context = make(map[string]any)
	}
	return &DriftEvent{
		EventID:         uuid.New().String(),
		AgentID:         agentID,
		RunID:           runID,
		Detector:        detector,
		Severity:        SeverityFromScore(score),
		Score:           score,
		Message:         message,
		SuggestedAction: suggestedAction,
		Timestamp:       time.Now(),
		Context:         context,
	}
}
