package monitor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftwatch/driftwatch/internal/detector"
	"github.com/driftwatch/driftwatch/internal/types"
)

// Config holds all monitor settings. Zero values fall back to the
// documented defaults, so a partially filled config is usable.
type Config struct {
	// AgentID identifies the monitored agent; required
	AgentID string `yaml:"agent_id"`

	// DBPath is the SQLite database file for traces, drift events, and
	// baselines
	// Default: driftwatch.db
	DBPath string `yaml:"db_path"`

	// GoalDescription is the objective the agent's outputs are scored
	// against; empty disables goal-drift scoring until a run supplies one
	GoalDescription string `yaml:"goal_description"`

	// CalibrationRuns is how many completed runs establish the baseline
	// Default: 30
	CalibrationRuns int `yaml:"calibration_runs"`

	// ActionLoop tunes the repetitive tool-call detector
	ActionLoop detector.ActionLoopConfig `yaml:"action_loop"`

	// GoalDrift tunes the semantic goal-drift detector
	GoalDrift detector.GoalDriftConfig `yaml:"goal_drift"`

	// ResourceSpike tunes the resource consumption detector
	ResourceSpike detector.ResourceSpikeConfig `yaml:"resource_spike"`

	// AlertWebhook is the destination URL for drift alerts; empty
	// disables alerting
	AlertWebhook string `yaml:"alert_webhook"`

	// MinAlertSeverity is the lowest severity that may alert
	// Default: MED
	MinAlertSeverity types.Severity `yaml:"min_alert_severity"`

	// AlertCooldownSeconds is the minimum gap between alerts for the
	// same agent and detector
	// Default: 60
	AlertCooldownSeconds float64 `yaml:"alert_cooldown_seconds"`

	// OpenAIAPIKey overrides the OPENAI_API_KEY environment variable
	// for the embedding backend
	OpenAIAPIKey string `yaml:"openai_api_key"`
}

// DefaultConfig returns the standard configuration for an agent.
func DefaultConfig(agentID string) Config {
	return Config{
		AgentID:              agentID,
		DBPath:               "driftwatch.db",
		CalibrationRuns:      30,
		MinAlertSeverity:     types.SeverityMed,
		AlertCooldownSeconds: 60,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig("")
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required fields and enum values.
func (c *Config) Validate() error {
	if c.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	if c.MinAlertSeverity != "" && !c.MinAlertSeverity.IsValid() {
		return fmt.Errorf("invalid min_alert_severity: %s", c.MinAlertSeverity)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "driftwatch.db"
	}
	if c.CalibrationRuns < 1 {
		c.CalibrationRuns = 30
	}
	if c.MinAlertSeverity == "" {
		c.MinAlertSeverity = types.SeverityMed
	}
	if c.AlertCooldownSeconds <= 0 {
		c.AlertCooldownSeconds = 60
	}
}

// Cooldown returns the alert cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.AlertCooldownSeconds * float64(time.Second))
}
