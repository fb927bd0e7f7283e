package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/storage"
	"github.com/driftwatch/driftwatch/internal/types"
)

// SaveDrift persists a drift event. Idempotent on event_id.
func (s *SQLiteStore) SaveDrift(ctx context.Context, event *types.DriftEvent) error {
	contextJSON, err := marshalPayload(event.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO drift_events (
			event_id, agent_id, run_id, detector, severity, score,
			message, suggested_action, timestamp, context
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.EventID, event.AgentID, event.RunID, string(event.Detector),
		string(event.Severity), event.Score, event.Message,
		event.SuggestedAction, event.Timestamp.UnixNano(), contextJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save drift event %s: %w", event.EventID, err)
	}
	return nil
}

// GetDriftEvents retrieves drift events matching the filter, most recent first.
func (s *SQLiteStore) GetDriftEvents(ctx context.Context, filter storage.DriftFilter) ([]*types.DriftEvent, error) {
	query := `
		SELECT event_id, agent_id, run_id, detector, severity, score,
		       message, suggested_action, timestamp, context
		FROM drift_events
		WHERE 1=1
	`
	args := []any{}

	if filter.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, filter.AgentID)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query drift events: %w", err)
	}
	defer rows.Close()

	return s.scanDrifts(rows)
}

// scanDrifts is a helper to scan rows into DriftEvent structs.
func (s *SQLiteStore) scanDrifts(rows *sql.Rows) ([]*types.DriftEvent, error) {
	var result []*types.DriftEvent

	for rows.Next() {
		var (
			event       types.DriftEvent
			detector    string
			severity    string
			nanos       int64
			contextJSON string
		)

		err := rows.Scan(
			&event.EventID, &event.AgentID, &event.RunID, &detector,
			&severity, &event.Score, &event.Message,
			&event.SuggestedAction, &nanos, &contextJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan drift event: %w", err)
		}

		event.Detector = types.DetectorType(detector)
		event.Severity = types.Severity(severity)
		event.Timestamp = time.Unix(0, nanos)
		event.Context = s.unmarshalPayload(contextJSON, "context")

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drift event rows: %w", err)
	}
	return result, nil
}
