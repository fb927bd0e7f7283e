package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/embedding"
	"github.com/driftwatch/driftwatch/internal/storage/sqlite"
	"github.com/driftwatch/driftwatch/internal/types"
)

func failingEmbedder() embedding.Embedder {
	return embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("backend unavailable")
	})
}

func newTestMonitor(t *testing.T, mutate func(*Config), opts ...MonitorOption) (*Monitor, *sqlite.SQLiteStore) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "driftwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := DefaultConfig("agent-1")
	cfg.CalibrationRuns = 2
	if mutate != nil {
		mutate(&cfg)
	}

	opts = append([]MonitorOption{WithStore(store), WithEmbedder(failingEmbedder())}, opts...)
	m, err := New(cfg, opts...)
	require.NoError(t, err)
	return m, store
}

func TestRecordEventPersistsTrace(t *testing.T) {
	m, store := newTestMonitor(t, nil)
	ctx := context.Background()

	runID := m.StartRun("", "")
	require.NotEmpty(t, runID)

	drifts, err := m.RecordEvent(ctx, EventParams{
		ActionType: types.ActionToolCall,
		ActionName: "search",
		TokenCount: 42,
	})
	require.NoError(t, err)
	assert.Empty(t, drifts)

	traces, err := store.GetRunTraces(ctx, "agent-1", runID)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "search", traces[0].ActionName)
	assert.Equal(t, 42, traces[0].TokenCount)
}

func TestRecordEventDetectsActionLoop(t *testing.T) {
	m, _ := newTestMonitor(t, nil)
	ctx := context.Background()
	m.StartRun("run-loop", "")

	var drifts []*types.DriftEvent
	for i := 0; i < 5; i++ {
		var err error
		drifts, err = m.RecordEvent(ctx, EventParams{
			ActionType: types.ActionToolCall,
			ActionName: "search",
		})
		require.NoError(t, err)
	}

	require.Len(t, drifts, 1)
	assert.Equal(t, types.DetectorActionLoop, drifts[0].Detector)
	assert.InDelta(t, 0.625, drifts[0].Score, 1e-9)

	// The drift is queryable through the alert history.
	alerts, err := m.RecentAlerts(ctx, 1, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, alerts)
}

func TestEndRunCalibrates(t *testing.T) {
	m, _ := newTestMonitor(t, func(cfg *Config) { cfg.CalibrationRuns = 2 })
	ctx := context.Background()

	for _, runID := range []string{"run-1", "run-2"} {
		m.StartRun(runID, "")
		_, err := m.RecordEvent(ctx, EventParams{
			ActionType: types.ActionToolCall,
			ActionName: "fetch",
			TokenCount: 100,
		})
		require.NoError(t, err)
		require.NoError(t, m.EndRun(ctx, ""))
	}

	b := m.Baseline()
	require.NotNil(t, b)
	assert.True(t, b.IsCalibrated)
	assert.Equal(t, 2, b.CalibrationRuns)
	assert.InDelta(t, 100, b.MeanTokensPerRun, 1e-9)
}

func TestDetectorFailureDoesNotAbortPipeline(t *testing.T) {
	m, store := newTestMonitor(t, func(cfg *Config) { cfg.GoalDescription = "process invoices" })
	ctx := context.Background()
	runID := m.StartRun("", "")

	// The embedder always fails, so goal-drift errors on every model
	// event. The event must still persist and the call still succeed.
	drifts, err := m.RecordEvent(ctx, EventParams{
		ActionType: types.ActionLLMRequest,
		ActionName: "chat.completion",
		OutputData: map[string]any{"text": "a sufficiently long model response body"},
	})
	require.NoError(t, err)
	assert.Empty(t, drifts)

	traces, err := store.GetRunTraces(ctx, "agent-1", runID)
	require.NoError(t, err)
	assert.Len(t, traces, 1)
}

func TestOnDriftCallbacksFireInOrder(t *testing.T) {
	m, _ := newTestMonitor(t, nil)
	ctx := context.Background()
	m.StartRun("run-cb", "")

	var order []string
	m.OnDrift(func(d *types.DriftEvent) { order = append(order, "first") })
	m.OnDrift(func(d *types.DriftEvent) { order = append(order, "second") })

	// Exactly one drift fires, on the fourth identical call.
	for i := 0; i < 4; i++ {
		_, err := m.RecordEvent(ctx, EventParams{
			ActionType: types.ActionToolCall,
			ActionName: "search",
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDriftAlertsGoThroughWebhookWithCooldown(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m, _ := newTestMonitor(t, func(cfg *Config) { cfg.AlertWebhook = server.URL })
	ctx := context.Background()
	m.StartRun("run-hook", "")

	// Events 4 through 6 all produce loop drifts; the cooldown allows
	// only the first through.
	for i := 0; i < 6; i++ {
		_, err := m.RecordEvent(ctx, EventParams{
			ActionType: types.ActionToolCall,
			ActionName: "search",
		})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestRecordEventWithoutRunGeneratesRunID(t *testing.T) {
	m, store := newTestMonitor(t, nil)
	ctx := context.Background()

	_, err := m.RecordEvent(ctx, EventParams{
		ActionType: types.ActionStateTransition,
		ActionName: "startup",
	})
	require.NoError(t, err)

	runIDs, err := store.GetRunIDs(ctx, "agent-1", 10)
	require.NoError(t, err)
	require.Len(t, runIDs, 1)
	assert.Len(t, runIDs[0], 12)
}

func TestSetDetectorEnabled(t *testing.T) {
	m, _ := newTestMonitor(t, nil)
	ctx := context.Background()
	m.StartRun("run-toggle", "")

	m.SetDetectorEnabled(types.DetectorActionLoop, false)

	for i := 0; i < 6; i++ {
		drifts, err := m.RecordEvent(ctx, EventParams{
			ActionType: types.ActionToolCall,
			ActionName: "search",
		})
		require.NoError(t, err)
		assert.Empty(t, drifts)
	}
}

func TestNewRejectsEmptyAgentID(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
