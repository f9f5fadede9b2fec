package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded events. It is used
// when Discord (or another notification backend) is not configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards events with a log message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &NoOpNotifier{log: log}
}

// SendOverrideEvent logs and discards an override event.
func (n *NoOpNotifier) SendOverrideEvent(_ context.Context, event *OverrideEvent) error {
	n.log.Debug("notification discarded (no backend configured)",
		"action", string(event.Action),
		"product_id", event.ProductID,
	)
	return nil
}
