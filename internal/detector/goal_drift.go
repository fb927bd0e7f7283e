package detector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/driftwatch/driftwatch/internal/embedding"
	"github.com/driftwatch/driftwatch/internal/types"
)

const (
	// minOutputLength is the shortest model output worth scoring
	minOutputLength = 20
	// maxEmbedLength caps the text sent to the embedding backend
	maxEmbedLength = 512
	// previewLength caps the diagnostic previews attached to drift context
	previewLength = 200
)

// GoalDriftConfig holds tuning for the goal-drift detector.
type GoalDriftConfig struct {
	// SimilarityThreshold is the floor below which output is considered
	// to have drifted from the goal (when no calibrated baseline raises it)
	// Default: 0.5
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

func (c *GoalDriftConfig) applyDefaults() {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.5
	}
}

// GoalDrift measures the semantic distance between the agent's model
// outputs and its declared objective. Both are embedded through the
// configured backend and compared by cosine similarity; a drop below
// the (possibly baseline-adjusted) threshold is drift.
type GoalDrift struct {
	embedder embedding.Embedder
	config   GoalDriftConfig
	enabled  bool

	mu      sync.Mutex
	goal    string
	goalVec []float32 // cached; invalidated when the goal changes
}

// NewGoalDrift creates a goal-drift detector using the given embedding
// backend. The goal is set later via SetGoal (typically at run start).
func NewGoalDrift(embedder embedding.Embedder, config GoalDriftConfig) *GoalDrift {
	config.applyDefaults()
	return &GoalDrift{embedder: embedder, config: config, enabled: true}
}

// Name identifies this detector
func (d *GoalDrift) Name() types.DetectorType { return types.DetectorGoalDrift }

// Enabled reports whether the detector participates in the pipeline
func (d *GoalDrift) Enabled() bool { return d.enabled }

// SetEnabled toggles the detector
func (d *GoalDrift) SetEnabled(enabled bool) { d.enabled = enabled }

// SetGoal sets or replaces the goal description and invalidates the
// cached goal embedding.
func (d *GoalDrift) SetGoal(goal string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if goal != d.goal {
		d.goal = goal
		d.goalVec = nil
	}
}

// Goal returns the currently configured goal description.
func (d *GoalDrift) Goal() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.goal
}

// Check scores a model request's output text against the goal. Events
// that are not model requests, outputs shorter than 20 characters, and
// runs with no configured goal all yield no verdict.
func (d *GoalDrift) Check(ctx context.Context, event *types.TraceEvent, baseline *types.BaselineStats) (*types.DriftEvent, error) {
	if !d.enabled || event.ActionType != types.ActionLLMRequest {
		return nil, nil
	}

	outputText := extractOutputText(event.OutputData)
	if len(strings.TrimSpace(outputText)) < minOutputLength {
		return nil, nil
	}

	d.mu.Lock()
	goal := d.goal
	d.mu.Unlock()
	if goal == "" {
		return nil, nil
	}

	goalVec, err := d.goalEmbedding(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("failed to embed goal: %w", err)
	}

	outputVec, err := d.embedder.Embed(ctx, truncate(outputText, maxEmbedLength))
	if err != nil {
		return nil, fmt.Errorf("failed to embed output: %w", err)
	}

	similarity := embedding.Cosine(goalVec, outputVec)
	threshold := d.threshold(baseline)

	if similarity >= threshold {
		return nil, nil
	}

	score := (threshold - similarity) / threshold
	if score > 1 {
		score = 1
	}

	message := fmt.Sprintf("Goal drift: similarity dropped to %.2f", similarity)
	if baseline != nil && baseline.MeanGoalSimilarity > 0 {
		message = fmt.Sprintf("Goal drift: similarity dropped to %.2f (baseline: %.2f)",
			similarity, baseline.MeanGoalSimilarity)
	}

	return types.NewDriftEvent(
		event.AgentID, event.RunID, types.DetectorGoalDrift, score,
		message,
		"Review context window for off-topic injection or prompt degradation",
		map[string]any{
			"similarity":     similarity,
			"threshold":      threshold,
			"output_preview": truncate(outputText, previewLength),
			"goal_preview":   truncate(goal, previewLength),
		},
	), nil
}

// threshold picks the effective similarity floor. A calibrated baseline
// with a positive mean goal similarity can only raise the configured
// threshold, never lower it.
func (d *GoalDrift) threshold(baseline *types.BaselineStats) float64 {
	threshold := d.config.SimilarityThreshold
	if baseline != nil && baseline.IsCalibrated && baseline.MeanGoalSimilarity > 0 {
		std := baseline.StdGoalSimilarity
		if std < 0.05 {
			std = 0.05
		}
		if adjusted := baseline.MeanGoalSimilarity - 2*std; adjusted > threshold {
			threshold = adjusted
		}
	}
	return threshold
}

// goalEmbedding returns the cached goal vector, computing it on first
// use after the goal changes.
func (d *GoalDrift) goalEmbedding(ctx context.Context, goal string) ([]float32, error) {
	d.mu.Lock()
	if d.goalVec != nil && d.goal == goal {
		vec := d.goalVec
		d.mu.Unlock()
		return vec, nil
	}
	d.mu.Unlock()

	vec, err := d.embedder.Embed(ctx, goal)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.goal == goal {
		d.goalVec = vec
	}
	d.mu.Unlock()
	return vec, nil
}

// extractOutputText pulls the scored text from an output payload,
// preferring "text" over "output".
func extractOutputText(output map[string]any) string {
	if output == nil {
		return ""
	}
	if text, ok := output["text"].(string); ok && text != "" {
		return text
	}
	if text, ok := output["output"].(string); ok {
		return text
	}
	return ""
}
