// Package detector implements the pluggable drift analyzers. Each
// detector evaluates one trace event at a time against the current
// baseline and returns at most one drift verdict.
package detector

import (
	"context"

	"github.com/driftwatch/driftwatch/internal/types"
)

// Detector is the common contract shared by all drift analyzers.
//
// Check returns (nil, nil) when the detector has no verdict for the
// event. A disabled detector returns (nil, nil) without side effects.
// Detectors never write trace data; they may read the store and may
// keep private in-process state.
type Detector interface {
	// Name identifies the detector in drift events and alert keys
	Name() types.DetectorType

	// Check evaluates a trace event against the baseline. The baseline
	// may be nil (uncalibrated agent).
	Check(ctx context.Context, event *types.TraceEvent, baseline *types.BaselineStats) (*types.DriftEvent, error)

	// Enabled reports whether the detector participates in the pipeline
	Enabled() bool

	// SetEnabled toggles the detector without recreating it
	SetEnabled(enabled bool)
}

// truncate shortens a string to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// tail returns the trailing n elements of a slice (or the whole slice).
func tail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
