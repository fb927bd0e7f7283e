package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/types"
)

// severityColors maps severity to the attachment color shown in chat
// clients.
var severityColors = map[types.Severity]string{
	types.SeverityLow:      "#36a64f",
	types.SeverityMed:      "#daa520",
	types.SeverityHigh:     "#ff6600",
	types.SeverityCritical: "#ff0000",
}

var severityEmoji = map[types.Severity]string{
	types.SeverityLow:      "🟢",
	types.SeverityMed:      "🟡",
	types.SeverityHigh:     "🟠",
	types.SeverityCritical: "🔴",
}

// BuildPayload builds the webhook body for a drift event, sniffing the
// destination from the URL: Slack and Discord get native rich formats,
// anything else gets a generic JSON envelope.
func BuildPayload(webhookURL string, event *types.DriftEvent) map[string]any {
	switch {
	case strings.Contains(webhookURL, "hooks.slack.com"):
		return slackPayload(event)
	case strings.Contains(webhookURL, "discord.com"):
		return discordPayload(event)
	default:
		return genericPayload(event)
	}
}

func slackPayload(event *types.DriftEvent) map[string]any {
	return map[string]any{
		"attachments": []any{
			map[string]any{
				"color": colorFor(event.Severity),
				"blocks": []any{
					map[string]any{
						"type": "section",
						"text": map[string]any{
							"type": "mrkdwn",
							"text": fmt.Sprintf(
								"%s *[%s] driftwatch alert*\n*Agent:* `%s`\n*Detector:* %s\n*Time:* %s\n\n%s\n\n💡 *Suggested action:* %s",
								emojiFor(event.Severity), event.Severity, event.AgentID,
								event.Detector, formatTime(event.Timestamp),
								event.Message, event.SuggestedAction),
						},
					},
				},
			},
		},
	}
}

func discordPayload(event *types.DriftEvent) map[string]any {
	return map[string]any{
		"embeds": []any{
			map[string]any{
				"title": fmt.Sprintf("%s [%s] driftwatch alert", emojiFor(event.Severity), event.Severity),
				"color": colorInt(colorFor(event.Severity)),
				"fields": []any{
					map[string]any{"name": "Agent", "value": fmt.Sprintf("`%s`", event.AgentID), "inline": true},
					map[string]any{"name": "Detector", "value": string(event.Detector), "inline": true},
					map[string]any{"name": "Time", "value": formatTime(event.Timestamp), "inline": true},
					map[string]any{"name": "Details", "value": event.Message, "inline": false},
					map[string]any{"name": "💡 Suggested Action", "value": event.SuggestedAction, "inline": false},
				},
			},
		},
	}
}

func genericPayload(event *types.DriftEvent) map[string]any {
	return map[string]any{
		"source": "driftwatch",
		"event":  event,
	}
}

func colorFor(severity types.Severity) string {
	if color, ok := severityColors[severity]; ok {
		return color
	}
	return severityColors[types.SeverityMed]
}

func emojiFor(severity types.Severity) string {
	if emoji, ok := severityEmoji[severity]; ok {
		return emoji
	}
	return "⚠️"
}

// colorInt converts a "#rrggbb" color to the integer form Discord
// embeds expect.
func colorInt(hex string) int {
	var v int
	fmt.Sscanf(strings.TrimPrefix(hex, "#"), "%06x", &v)
	return v
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format("2006-01-02 15:04 UTC")
}
