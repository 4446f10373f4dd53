package interfaces

import (
	"context"
	"time"

	"github.com/procurehq/rfpstack/dto"
)

// IngestionOrchestrator receives push notifications and drives the
// dedupe, queue, history-diff and per-message processing cycle.
type IngestionOrchestrator interface {
	// HandleNotification returns false when the notification was dropped as a duplicate.
	// Processing is asynchronous; the call never blocks on the batch.
	HandleNotification(ctx context.Context, notification dto.InboundNotification) bool
	// SweepUnread processes unread messages received after the given time,
	// bypassing the history cursor. Returns the number of messages processed.
	SweepUnread(ctx context.Context, since time.Time) (int, error)
}

// NotificationQueue holds notifications waiting for the single-flight worker.
// The in-memory implementation is best-effort; a durable broker-backed one can
// be substituted without touching the orchestrator state machine.
type NotificationQueue interface {
	Push(notification dto.InboundNotification)
	Pop() (dto.InboundNotification, bool)
	Len() int
}
