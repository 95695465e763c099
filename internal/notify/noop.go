package notify

import (
	"context"
	"log/slog"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// NoOpNotifier implements Notifier by logging discarded alerts. It is
// used when Discord (or another delivery backend) is not configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards alerts with a log message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// SendDealAlert logs and discards an alert.
func (n *NoOpNotifier) SendDealAlert(
	_ context.Context,
	fingerprintPrefix string,
	alert *domain.AlertPayload,
) error {
	n.log.Debug("alert discarded (no delivery backend configured)",
		"query_fp", fingerprintPrefix,
		"discount_pct", alert.DiscountPct,
	)
	return nil
}
