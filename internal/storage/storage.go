// Package storage defines the persistence contract for trace events,
// drift events, and baselines. The embedded SQLite implementation lives
// in the sqlite subpackage.
package storage

import (
	"context"
	"time"

	"github.com/driftwatch/driftwatch/internal/types"
)

// TraceFilter defines criteria for querying trace events.
type TraceFilter struct {
	// AgentID filters events by agent
	AgentID string
	// RunID filters events by run
	RunID string
	// Since filters events recorded at or after this time
	Since time.Time
	// Limit caps the number of events returned (most recent first)
	Limit int
}

// DriftFilter defines criteria for querying drift events.
type DriftFilter struct {
	// AgentID filters drift events by agent
	AgentID string
	// Since filters drift events recorded at or after this time
	Since time.Time
	// Severity filters drift events by exact severity level
	Severity types.Severity
	// Limit caps the number of events returned (most recent first)
	Limit int
}

// Store is the durable keyed storage for the three record kinds,
// namespaced by agent ID. Writes are idempotent on primary key: a
// repeated save with the same key overwrites. Implementations must be
// safe for concurrent use.
type Store interface {
	// SaveTrace persists a trace event
	SaveTrace(ctx context.Context, event *types.TraceEvent) error

	// GetTraces retrieves trace events matching the filter, most recent first
	GetTraces(ctx context.Context, filter TraceFilter) ([]*types.TraceEvent, error)

	// GetRunTraces retrieves all events for a run in chronological order
	GetRunTraces(ctx context.Context, agentID, runID string) ([]*types.TraceEvent, error)

	// GetRecentActions returns the trailing window of tool-call action
	// names for a run, in chronological order
	GetRecentActions(ctx context.Context, agentID, runID string, window int) ([]string, error)

	// GetRunIDs returns distinct run identifiers for an agent, most recent first
	GetRunIDs(ctx context.Context, agentID string, limit int) ([]string, error)

	// GetRunStats computes aggregate statistics for a single run
	GetRunStats(ctx context.Context, agentID, runID string) (*types.RunStats, error)

	// SaveDrift persists a drift event
	SaveDrift(ctx context.Context, event *types.DriftEvent) error

	// GetDriftEvents retrieves drift events matching the filter, most recent first
	GetDriftEvents(ctx context.Context, filter DriftFilter) ([]*types.DriftEvent, error)

	// SaveBaseline persists an agent's baseline, replacing any prior one
	SaveBaseline(ctx context.Context, baseline *types.BaselineStats) error

	// GetBaseline retrieves an agent's baseline, or nil if none exists
	GetBaseline(ctx context.Context, agentID string) (*types.BaselineStats, error)

	// Close releases the underlying database handles
	Close() error
}
