// Package alert delivers drift events to webhook endpoints with
// severity and cooldown gating so a noisy detector cannot flood the
// destination.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/internal/types"
)

const defaultCooldown = 60 * time.Second

// Dispatcher gates and sends drift alerts. A zero webhook URL disables
// alerting entirely; the gate is evaluated per (agent, detector) pair.
type Dispatcher struct {
	webhookURL  string
	minSeverity types.Severity
	cooldown    time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	lastAlert map[string]time.Time // "{agent_id}:{detector}" -> last send

	now func() time.Time // injectable clock for tests
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMinSeverity sets the minimum severity that may alert.
// Default: MED.
func WithMinSeverity(severity types.Severity) Option {
	return func(d *Dispatcher) { d.minSeverity = severity }
}

// WithCooldown sets the per agent+detector cooldown window.
// Default: 60s.
func WithCooldown(cooldown time.Duration) Option {
	return func(d *Dispatcher) { d.cooldown = cooldown }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher creates a dispatcher for the given webhook URL. An
// empty URL yields a dispatcher that silently drops everything.
func NewDispatcher(webhookURL string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		webhookURL:  webhookURL,
		minSeverity: types.SeverityMed,
		cooldown:    defaultCooldown,
		logger:      slog.Default(),
		lastAlert:   make(map[string]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ShouldAlert applies the gate: configured URL, severity at or above
// the minimum, and cooldown elapsed for this agent+detector pair.
// A true result claims the cooldown slot immediately. Severity
// suppression never touches the cooldown state.
func (d *Dispatcher) ShouldAlert(event *types.DriftEvent) bool {
	if d.webhookURL == "" {
		return false
	}
	if event.Severity.Rank() < d.minSeverity.Rank() {
		return false
	}

	key := fmt.Sprintf("%s:%s", event.AgentID, event.Detector)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastAlert[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.lastAlert[key] = now
	return true
}

// Dispatch gates the event and, if it passes, posts it to the webhook.
// Returns true only when a webhook call was made and succeeded. Send
// failures are logged, not returned; a dropped alert never fails the
// event pipeline.
func (d *Dispatcher) Dispatch(ctx context.Context, event *types.DriftEvent) bool {
	if !d.ShouldAlert(event) {
		return false
	}

	payload := BuildPayload(d.webhookURL, event)
	if err := Send(ctx, d.webhookURL, payload); err != nil {
		d.logger.Warn("failed to send alert",
			"agent_id", event.AgentID,
			"detector", event.Detector,
			"error", err)
		return false
	}

	d.logger.Info("alert sent",
		"agent_id", event.AgentID,
		"detector", event.Detector,
		"severity", event.Severity)
	return true
}
