// Package monitor wires storage, detection, calibration, and alerting
// into the in-process drift monitor that agent wrappers talk to. No
// separate server, no network hop.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/alert"
	"github.com/driftwatch/driftwatch/internal/baseline"
	"github.com/driftwatch/driftwatch/internal/detector"
	"github.com/driftwatch/driftwatch/internal/embedding"
	"github.com/driftwatch/driftwatch/internal/storage"
	"github.com/driftwatch/driftwatch/internal/storage/sqlite"
	"github.com/driftwatch/driftwatch/internal/types"
)

// DriftCallback is invoked synchronously for every persisted drift
// event, in registration order.
type DriftCallback func(*types.DriftEvent)

// EventParams describes one trace event to record. ActionType and
// ActionName are required; everything else defaults.
type EventParams struct {
	ActionType types.ActionType
	ActionName string
	// RunID overrides the monitor's current run; empty uses it (or a
	// fresh ID if no run is active)
	RunID      string
	TokenCount int
	InputData  map[string]any
	OutputData map[string]any
	DurationMs float64
	Metadata   map[string]any
}

// Monitor is the orchestrator for one monitored agent. Safe for
// concurrent use; detector evaluation for a single event is sequential.
type Monitor struct {
	config     Config
	store      storage.Store
	ownsStore  bool
	calibrator *baseline.Calibrator
	goalDrift  *detector.GoalDrift
	detectors  []detector.Detector
	dispatcher *alert.Dispatcher
	logger     *slog.Logger

	mu           sync.RWMutex
	currentRunID string
	baseline     *types.BaselineStats
	callbacks    []DriftCallback
}

// MonitorOption configures a Monitor beyond its Config.
type MonitorOption func(*Monitor)

// WithStore injects a store instead of opening the configured DB path.
// The monitor will not close an injected store.
func WithStore(store storage.Store) MonitorOption {
	return func(m *Monitor) { m.store = store }
}

// WithEmbedder injects the embedding backend for goal-drift scoring.
// Default: a lazily constructed OpenAI client.
func WithEmbedder(embedder embedding.Embedder) MonitorOption {
	return func(m *Monitor) {
		m.goalDrift = detector.NewGoalDrift(embedder, m.config.GoalDrift)
	}
}

// WithMonitorLogger sets the structured logger.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = logger }
}

// New creates a monitor from config. The store is opened at DBPath
// unless one is injected, the previously persisted baseline (if any) is
// loaded, and the three detectors are armed in their fixed order.
func New(cfg Config, opts ...MonitorOption) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	m := &Monitor{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		store, err := sqlite.NewWithLogger(cfg.DBPath, m.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		m.store = store
		m.ownsStore = true
	}

	if m.goalDrift == nil {
		apiKey := cfg.OpenAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		embedder := embedding.NewLazy(func() (embedding.Embedder, error) {
			if apiKey == "" {
				return nil, fmt.Errorf("no OpenAI API key configured")
			}
			return embedding.NewOpenAI(apiKey), nil
		})
		m.goalDrift = detector.NewGoalDrift(embedder, cfg.GoalDrift)
	}
	if cfg.GoalDescription != "" {
		m.goalDrift.SetGoal(cfg.GoalDescription)
	}

	m.calibrator = baseline.New(m.store, cfg.CalibrationRuns, m.logger)

	// Evaluation order is fixed: loop, goal, resource.
	m.detectors = []detector.Detector{
		detector.NewActionLoop(m.store, cfg.ActionLoop),
		m.goalDrift,
		detector.NewResourceSpike(cfg.ResourceSpike),
	}

	m.dispatcher = alert.NewDispatcher(cfg.AlertWebhook,
		alert.WithMinSeverity(cfg.MinAlertSeverity),
		alert.WithCooldown(cfg.Cooldown()),
		alert.WithLogger(m.logger))

	stored, err := m.store.GetBaseline(context.Background(), cfg.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline: %w", err)
	}
	m.baseline = stored

	state := "pending"
	if stored != nil && stored.IsCalibrated {
		state = "calibrated"
	}
	m.logger.Info("drift monitor initialized", "agent_id", cfg.AgentID, "baseline", state)

	return m, nil
}

// Close releases the store if the monitor opened it.
func (m *Monitor) Close() error {
	if m.ownsStore {
		return m.store.Close()
	}
	return nil
}

// StartRun begins a monitored run. An empty runID generates one. A
// non-empty goal replaces the goal-drift objective for this and
// subsequent runs.
func (m *Monitor) StartRun(runID, goal string) string {
	if runID == "" {
		runID = newRunID()
	}
	if goal != "" {
		m.goalDrift.SetGoal(goal)
	}

	m.mu.Lock()
	m.currentRunID = runID
	m.mu.Unlock()

	m.logger.Debug("run started", "agent_id", m.config.AgentID, "run_id", runID)
	return runID
}

// EndRun closes a run and synchronously recalibrates the baseline. The
// call blocks until the new baseline is persisted; the refreshed
// baseline takes effect for subsequent events.
func (m *Monitor) EndRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	if runID == "" {
		runID = m.currentRunID
	}
	m.currentRunID = ""
	m.mu.Unlock()

	if runID == "" {
		return nil
	}

	updated, err := m.calibrator.UpdateBaseline(ctx, m.config.AgentID)
	if err != nil {
		return fmt.Errorf("failed to update baseline: %w", err)
	}

	m.mu.Lock()
	m.baseline = updated
	m.mu.Unlock()
	return nil
}

// RecordEvent persists a trace event and runs it through every enabled
// detector in order. The trace write happens before any detector runs
// and its failure aborts the call; a failing detector is logged and
// skipped without stopping the rest. Detected drifts are persisted,
// dispatched, handed to callbacks, and returned.
func (m *Monitor) RecordEvent(ctx context.Context, params EventParams) ([]*types.DriftEvent, error) {
	m.mu.RLock()
	runID := params.RunID
	if runID == "" {
		runID = m.currentRunID
	}
	currentBaseline := m.baseline
	m.mu.RUnlock()
	if runID == "" {
		runID = newRunID()
	}

	event := types.NewTraceEvent(m.config.AgentID, runID, params.ActionType, params.ActionName)
	event.TokenCount = params.TokenCount
	event.DurationMs = params.DurationMs
	if params.InputData != nil {
		event.InputData = params.InputData
	}
	if params.OutputData != nil {
		event.OutputData = params.OutputData
	}
	if params.Metadata != nil {
		event.Metadata = params.Metadata
	}

	if err := m.store.SaveTrace(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to save trace: %w", err)
	}

	var drifts []*types.DriftEvent
	for _, d := range m.detectors {
		if !d.Enabled() {
			continue
		}

		drift, err := m.checkDetector(ctx, d, event, currentBaseline)
		if err != nil {
			m.logger.Error("detector failed",
				"detector", d.Name(), "agent_id", m.config.AgentID, "error", err)
			continue
		}
		if drift == nil {
			continue
		}

		if err := m.store.SaveDrift(ctx, drift); err != nil {
			m.logger.Error("failed to save drift event",
				"detector", d.Name(), "agent_id", m.config.AgentID, "error", err)
			continue
		}
		drifts = append(drifts, drift)

		m.dispatcher.Dispatch(ctx, drift)

		m.mu.RLock()
		callbacks := m.callbacks
		m.mu.RUnlock()
		for _, cb := range callbacks {
			cb(drift)
		}

		m.logger.Warn("drift detected",
			"severity", drift.Severity,
			"detector", drift.Detector,
			"agent_id", drift.AgentID,
			"message", drift.Message)
	}

	return drifts, nil
}

// checkDetector runs one detector, containing panics so a broken
// analyzer cannot take down ingestion.
func (m *Monitor) checkDetector(ctx context.Context, d detector.Detector, event *types.TraceEvent, b *types.BaselineStats) (drift *types.DriftEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			drift, err = nil, fmt.Errorf("detector panicked: %v", r)
		}
	}()
	return d.Check(ctx, event, b)
}

// OnDrift registers a callback fired for every persisted drift event.
func (m *Monitor) OnDrift(callback DriftCallback) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, callback)
	m.mu.Unlock()
}

// Baseline returns the baseline currently in effect, which may be nil
// for an agent with no history.
func (m *Monitor) Baseline() *types.BaselineStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseline
}

// RecentAlerts returns drift events from the trailing window, most
// recent first.
func (m *Monitor) RecentAlerts(ctx context.Context, hours float64, limit int) ([]*types.DriftEvent, error) {
	since := time.Now().Add(-time.Duration(hours * float64(time.Hour)))
	return m.store.GetDriftEvents(ctx, storage.DriftFilter{
		AgentID: m.config.AgentID,
		Since:   since,
		Limit:   limit,
	})
}

// SetDetectorEnabled toggles one detector by name. Unknown names are
// ignored.
func (m *Monitor) SetDetectorEnabled(name types.DetectorType, enabled bool) {
	for _, d := range m.detectors {
		if d.Name() == name {
			d.SetEnabled(enabled)
		}
	}
}

// newRunID generates a short random run identifier.
func newRunID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
