package detector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/embedding"
	"github.com/driftwatch/driftwatch/internal/types"
)

// axisEmbedder maps texts onto fixed unit vectors so cosine outcomes
// are exact: anything mentioning "invoice" lands on one axis, anything
// else on an orthogonal one.
func axisEmbedder(calls *int) embedding.Embedder {
	return embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
		if calls != nil {
			*calls++
		}
		if strings.Contains(text, "invoice") {
			return []float32{1, 0}, nil
		}
		return []float32{0, 1}, nil
	})
}

func llmEvent(text string) *types.TraceEvent {
	event := types.NewTraceEvent("agent-1", "run-1", types.ActionLLMRequest, "chat.completion")
	event.OutputData = map[string]any{"text": text}
	return event
}

func TestGoalDriftOffTopicOutput(t *testing.T) {
	d := NewGoalDrift(axisEmbedder(nil), GoalDriftConfig{})
	d.SetGoal("Process customer invoice records")

	drift, err := d.Check(context.Background(), llmEvent("Here is a poem about the sea and the sky above it"), nil)
	require.NoError(t, err)
	require.NotNil(t, drift)

	assert.Equal(t, types.DetectorGoalDrift, drift.Detector)
	// similarity 0 against threshold 0.5 maxes the score out
	assert.Equal(t, 1.0, drift.Score)
	assert.Equal(t, types.SeverityCritical, drift.Severity)
	assert.Equal(t, 0.0, drift.Context["similarity"])
	assert.Equal(t, 0.5, drift.Context["threshold"])
}

func TestGoalDriftOnTopicOutput(t *testing.T) {
	d := NewGoalDrift(axisEmbedder(nil), GoalDriftConfig{})
	d.SetGoal("Process customer invoice records")

	drift, err := d.Check(context.Background(), llmEvent("The invoice batch has been reconciled successfully"), nil)
	require.NoError(t, err)
	assert.Nil(t, drift)
}

func TestGoalDriftBaselineRaisesThreshold(t *testing.T) {
	// Similarity 0.7 clears the configured 0.5 floor but not the
	// baseline-derived one: 0.9 - 2*max(0.02, 0.05) = 0.8.
	embedder := embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "goal") {
			return []float32{1, 0}, nil
		}
		return []float32{0.7, float32(0.71414284285)}, nil
	})
	d := NewGoalDrift(embedder, GoalDriftConfig{})
	d.SetGoal("the goal text")

	baseline := &types.BaselineStats{
		IsCalibrated:       true,
		MeanGoalSimilarity: 0.9,
		StdGoalSimilarity:  0.02,
	}

	drift, err := d.Check(context.Background(), llmEvent("a sufficiently long model response body"), baseline)
	require.NoError(t, err)
	require.NotNil(t, drift)

	assert.InDelta(t, 0.8, drift.Context["threshold"].(float64), 1e-9)
	assert.InDelta(t, (0.8-0.7)/0.8, drift.Score, 1e-6)
	assert.Contains(t, drift.Message, "baseline")
}

func TestGoalDriftUncalibratedBaselineIgnored(t *testing.T) {
	calls := 0
	d := NewGoalDrift(axisEmbedder(&calls), GoalDriftConfig{})
	d.SetGoal("Process customer invoice records")

	baseline := &types.BaselineStats{
		IsCalibrated:       false,
		MeanGoalSimilarity: 0.99,
	}

	drift, err := d.Check(context.Background(), llmEvent("The invoice batch has been reconciled successfully"), baseline)
	require.NoError(t, err)
	assert.Nil(t, drift)
}

func TestGoalDriftSkipsShortOutput(t *testing.T) {
	calls := 0
	d := NewGoalDrift(axisEmbedder(&calls), GoalDriftConfig{})
	d.SetGoal("Process customer invoice records")

	drift, err := d.Check(context.Background(), llmEvent("ok done"), nil)
	require.NoError(t, err)
	assert.Nil(t, drift)
	assert.Zero(t, calls, "short output should not be embedded")
}

func TestGoalDriftSkipsWithoutGoal(t *testing.T) {
	calls := 0
	d := NewGoalDrift(axisEmbedder(&calls), GoalDriftConfig{})

	drift, err := d.Check(context.Background(), llmEvent("a sufficiently long model response body"), nil)
	require.NoError(t, err)
	assert.Nil(t, drift)
	assert.Zero(t, calls)
}

func TestGoalDriftIgnoresToolCalls(t *testing.T) {
	d := NewGoalDrift(axisEmbedder(nil), GoalDriftConfig{})
	d.SetGoal("Process customer invoice records")

	event := types.NewTraceEvent("agent-1", "run-1", types.ActionToolCall, "search")
	event.OutputData = map[string]any{"text": "a long enough tool output to pass the length gate"}

	drift, err := d.Check(context.Background(), event, nil)
	require.NoError(t, err)
	assert.Nil(t, drift)
}

func TestGoalDriftReadsOutputFallbackKey(t *testing.T) {
	d := NewGoalDrift(axisEmbedder(nil), GoalDriftConfig{})
	d.SetGoal("Process customer invoice records")

	event := types.NewTraceEvent("agent-1", "run-1", types.ActionLLMRequest, "chat.completion")
	event.OutputData = map[string]any{"output": "an off-topic answer about gardening techniques"}

	drift, err := d.Check(context.Background(), event, nil)
	require.NoError(t, err)
	require.NotNil(t, drift)
}

func TestGoalDriftCachesGoalEmbedding(t *testing.T) {
	calls := 0
	d := NewGoalDrift(axisEmbedder(&calls), GoalDriftConfig{})
	d.SetGoal("Process customer invoice records")

	for i := 0; i < 3; i++ {
		_, err := d.Check(context.Background(), llmEvent("The invoice batch has been reconciled successfully"), nil)
		require.NoError(t, err)
	}

	// One goal embedding plus one per output.
	assert.Equal(t, 4, calls)

	// Changing the goal invalidates the cache.
	d.SetGoal("Summarize invoice disputes")
	_, err := d.Check(context.Background(), llmEvent("The invoice batch has been reconciled successfully"), nil)
	require.NoError(t, err)
	assert.Equal(t, 6, calls)
}

func TestGoalDriftEmbedderFailure(t *testing.T) {
	embedder := embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("backend unavailable")
	})
	d := NewGoalDrift(embedder, GoalDriftConfig{})
	d.SetGoal("Process customer invoice records")

	drift, err := d.Check(context.Background(), llmEvent("a sufficiently long model response body"), nil)
	assert.Error(t, err)
	assert.Nil(t, drift)
}
