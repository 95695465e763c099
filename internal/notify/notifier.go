// Package notify defines the notification interface and implementations
// for deal alert delivery. Notifiers receive the stored alert payload
// and the tracked search's fingerprint prefix, never the query itself.
package notify

import (
	"context"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// Notifier delivers deal alerts to an external channel. Delivery is
// best-effort: the alert event is already persisted when a notifier
// runs, and a failed send is logged, not retried.
type Notifier interface {
	SendDealAlert(ctx context.Context, fingerprintPrefix string, alert *domain.AlertPayload) error
}
