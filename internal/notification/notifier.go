// Package notification delivers fire-and-forget alerts to external
// channels (Telegram, webhooks) when a rebalance run fails.
package notification

import (
	"context"
	"log/slog"
	"sort"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is a notification to be sent. Fields carries run context
// (account, strategy, run id, failed state) for the operator.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// sortedFieldKeys gives alerts a stable field order across backends.
func sortedFieldKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails; callers
	// treat delivery as fire-and-forget and never retry.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. It is the default
// backend and the fallback when no channel is configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	attrs := []any{"level", string(alert.Level), "title", alert.Title}
	for _, k := range sortedFieldKeys(alert.Fields) {
		attrs = append(attrs, k, alert.Fields[k])
	}
	n.log.Error(alert.Message, attrs...)
	return nil
}
