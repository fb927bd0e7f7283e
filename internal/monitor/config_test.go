package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("agent-1")

	assert.Equal(t, "agent-1", cfg.AgentID)
	assert.Equal(t, "driftwatch.db", cfg.DBPath)
	assert.Equal(t, 30, cfg.CalibrationRuns)
	assert.Equal(t, types.SeverityMed, cfg.MinAlertSeverity)
	assert.Equal(t, 60*time.Second, cfg.Cooldown())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent_id: logistics-v2
db_path: /tmp/traces.db
calibration_runs: 10
goal_description: optimise delivery routes
action_loop:
  max_repeats: 6
alert_webhook: https://hooks.slack.com/services/T0/B0/xyz
min_alert_severity: HIGH
alert_cooldown_seconds: 120
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "logistics-v2", cfg.AgentID)
	assert.Equal(t, "/tmp/traces.db", cfg.DBPath)
	assert.Equal(t, 10, cfg.CalibrationRuns)
	assert.Equal(t, 6, cfg.ActionLoop.MaxRepeats)
	assert.Equal(t, types.SeverityHigh, cfg.MinAlertSeverity)
	assert.Equal(t, 2*time.Minute, cfg.Cooldown())
}

func TestLoadConfigRejectsBadSeverity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent_id: agent-1
min_alert_severity: MEDIUM
`), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "min_alert_severity")
}

func TestValidateRequiresAgentID(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Validate())
}
