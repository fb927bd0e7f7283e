package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/types"
)

// SaveBaseline persists an agent's baseline, replacing any prior one.
// The baseline is stored as a single JSON document keyed by agent.
func (s *SQLiteStore) SaveBaseline(ctx context.Context, baseline *types.BaselineStats) error {
	if baseline.AgentID == "" {
		return fmt.Errorf("baseline agent_id is required")
	}

	data, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO baselines (agent_id, data, updated_at)
		VALUES (?, ?, ?)
	`, baseline.AgentID, string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save baseline for %s: %w", baseline.AgentID, err)
	}
	return nil
}

// GetBaseline retrieves an agent's baseline. Returns nil (no error) if
// the agent has never been calibrated. A corrupted stored baseline is
// recoverable: it yields nil with a logged warning, as if uncalibrated.
func (s *SQLiteStore) GetBaseline(ctx context.Context, agentID string) (*types.BaselineStats, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM baselines WHERE agent_id = ?`, agentID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline for %s: %w", agentID, err)
	}

	var baseline types.BaselineStats
	if err := json.Unmarshal([]byte(data), &baseline); err != nil {
		s.logger.Warn("malformed stored baseline, treating as uncalibrated",
			"agent_id", agentID, "error", err)
		return nil, nil
	}
	return &baseline, nil
}
