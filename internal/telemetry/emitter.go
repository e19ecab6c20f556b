package telemetry

import (
	"context"
	"time"
)

// Lifecycle event types emitted by the session service.
const (
	EventResolved  = "session.resolved"
	EventRefreshed = "session.refreshed"
	EventCleared   = "session.cleared"
	EventPurged    = "session.purged"
	EventSwept     = "session.swept"
)

// Event is one session lifecycle transition. Refresh tokens never appear in events.
type Event struct {
	ID        string
	Type      string
	UserID    string
	Role      string
	Verdict   string
	Reason    string
	CreatedAt time.Time
}

// EventEmitter emits lifecycle events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
