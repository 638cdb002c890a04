package govern

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAccountCreated   ActivityEventType = "account.created"
	ActivityEventAccountDisabled  ActivityEventType = "account.disabled"
	ActivityEventLifecycleChanged ActivityEventType = "identity.lifecycle.changed"
	ActivityEventAccessRequested  ActivityEventType = "identity.access.requested"
	ActivityEventOnboardComplete  ActivityEventType = "workflow.onboard.complete"
	ActivityEventOffboardComplete ActivityEventType = "workflow.offboard.complete"
)

// ActivityEvent captures audit-friendly information about a provisioning
// action. Account and task ids are set when the action produced them.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	IdentityID string
	AccountID  string
	TaskID     string
	FromState  string
	ToState    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: the simulator and workflows log sink failures
// and carry on, so a slow audit store never blocks provisioning.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
