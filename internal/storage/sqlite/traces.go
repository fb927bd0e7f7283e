package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/storage"
	"github.com/driftwatch/driftwatch/internal/types"
)

// SaveTrace persists a trace event. Saves are idempotent on event_id:
// a repeated save with the same ID overwrites the prior row.
func (s *SQLiteStore) SaveTrace(ctx context.Context, event *types.TraceEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	inputJSON, err := marshalPayload(event.InputData)
	if err != nil {
		return fmt.Errorf("failed to encode input_data: %w", err)
	}
	outputJSON, err := marshalPayload(event.OutputData)
	if err != nil {
		return fmt.Errorf("failed to encode output_data: %w", err)
	}
	metaJSON, err := marshalPayload(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trace_events (
			event_id, agent_id, run_id, action_type, action_name,
			timestamp, token_count, input_data, output_data, duration_ms, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.EventID, event.AgentID, event.RunID, string(event.ActionType),
		event.ActionName, event.Timestamp.UnixNano(), event.TokenCount,
		inputJSON, outputJSON, event.DurationMs, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save trace event %s: %w", event.EventID, err)
	}
	return nil
}

// GetTraces retrieves trace events matching the filter, most recent first.
func (s *SQLiteStore) GetTraces(ctx context.Context, filter storage.TraceFilter) ([]*types.TraceEvent, error) {
	query := `
		SELECT event_id, agent_id, run_id, action_type, action_name,
		       timestamp, token_count, input_data, output_data, duration_ms, metadata
		FROM trace_events
		WHERE 1=1
	`
	args := []any{}

	if filter.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, filter.AgentID)
	}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace events: %w", err)
	}
	defer rows.Close()

	return s.scanTraces(rows)
}

// GetRunTraces retrieves all events for a run in chronological order.
func (s *SQLiteStore) GetRunTraces(ctx context.Context, agentID, runID string) ([]*types.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, agent_id, run_id, action_type, action_name,
		       timestamp, token_count, input_data, output_data, duration_ms, metadata
		FROM trace_events
		WHERE agent_id = ? AND run_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`, agentID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run traces: %w", err)
	}
	defer rows.Close()

	return s.scanTraces(rows)
}

// GetRecentActions returns the trailing window of tool-call action names
// for a run, oldest first. Only tool-call events count; model requests
// and state transitions are excluded.
func (s *SQLiteStore) GetRecentActions(ctx context.Context, agentID, runID string, window int) ([]string, error) {
	if window <= 0 {
		window = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT action_name FROM trace_events
		WHERE agent_id = ? AND run_id = ? AND action_type = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, agentID, runID, string(types.ActionToolCall), window)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent actions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan action name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action rows: %w", err)
	}

	// Query returned newest-first; callers want chronological order.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}

// GetRunIDs returns distinct run identifiers for an agent, most recent
// first (by each run's latest event).
func (s *SQLiteStore) GetRunIDs(ctx context.Context, agentID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id FROM trace_events
		WHERE agent_id = ?
		GROUP BY run_id
		ORDER BY MAX(timestamp) DESC
		LIMIT ?
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run IDs: %w", err)
	}
	defer rows.Close()

	var runIDs []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("failed to scan run ID: %w", err)
		}
		runIDs = append(runIDs, runID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run ID rows: %w", err)
	}
	return runIDs, nil
}

// GetRunStats computes aggregate statistics for a single run.
func (s *SQLiteStore) GetRunStats(ctx context.Context, agentID, runID string) (*types.RunStats, error) {
	var (
		eventCount int
		tokens     sql.NullInt64
		toolCalls  sql.NullInt64
		llmCalls   sql.NullInt64
		startNanos sql.NullInt64
		endNanos   sql.NullInt64
		durationMs sql.NullFloat64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(token_count),
			SUM(CASE WHEN action_type = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN action_type = ? THEN 1 ELSE 0 END),
			MIN(timestamp),
			MAX(timestamp),
			SUM(duration_ms)
		FROM trace_events
		WHERE agent_id = ? AND run_id = ?
	`, string(types.ActionToolCall), string(types.ActionLLMRequest), agentID, runID).Scan(
		&eventCount, &tokens, &toolCalls, &llmCalls, &startNanos, &endNanos, &durationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute run stats: %w", err)
	}

	stats := &types.RunStats{
		EventCount:      eventCount,
		TotalTokens:     int(tokens.Int64),
		ToolCalls:       int(toolCalls.Int64),
		LLMCalls:        int(llmCalls.Int64),
		TotalDurationMs: durationMs.Float64,
	}
	if startNanos.Valid {
		stats.StartTime = time.Unix(0, startNanos.Int64)
	}
	if endNanos.Valid {
		stats.EndTime = time.Unix(0, endNanos.Int64)
	}
	return stats, nil
}

// scanTraces is a helper to scan rows into TraceEvent structs.
func (s *SQLiteStore) scanTraces(rows *sql.Rows) ([]*types.TraceEvent, error) {
	var result []*types.TraceEvent

	for rows.Next() {
		var (
			event      types.TraceEvent
			actionType string
			nanos      int64
			inputJSON  string
			outputJSON string
			metaJSON   string
		)

		err := rows.Scan(
			&event.EventID, &event.AgentID, &event.RunID, &actionType,
			&event.ActionName, &nanos, &event.TokenCount,
			&inputJSON, &outputJSON, &event.DurationMs, &metaJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trace event: %w", err)
		}

		event.ActionType = types.ActionType(actionType)
		event.Timestamp = time.Unix(0, nanos)
		event.InputData = s.unmarshalPayload(inputJSON, "input_data")
		event.OutputData = s.unmarshalPayload(outputJSON, "output_data")
		event.Metadata = s.unmarshalPayload(metaJSON, "metadata")

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trace event rows: %w", err)
	}
	return result, nil
}
