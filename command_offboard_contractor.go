package govern

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	workflowOffboard = "contractor.offboard"

	stepSetLifecycle   = "set_lifecycle_state"
	stepAwaitLifecycle = "await_lifecycle_change"
)

// OffboardContractorMessage requests termination of a contractor
// identity. RevokeAllAccess is informational: the terminated lifecycle
// cascade (disabling every account) is the sole enforced revocation
// mechanism, no per-entitlement revocation call is issued.
type OffboardContractorMessage struct {
	IdentityID      string `json:"identity_id"`
	Justification   string `json:"justification,omitempty"`
	RevokeAllAccess bool   `json:"revoke_all_access,omitempty"`
}

func (e OffboardContractorMessage) Type() string { return "contractor.offboard" }

// Validate will run validation rules
func (e OffboardContractorMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(
			&e.IdentityID,
			validation.Required,
		),
	)
}

// OffboardingReceipt is the successful outcome of an offboarding run.
// TaskID tracks the lifecycle-change task for caller-side follow-up.
type OffboardingReceipt struct {
	IdentityID      string `json:"identity_id"`
	TaskID          string `json:"task_id"`
	RevokeAllAccess bool   `json:"revoke_all_access,omitempty"`
}

// OffboardContractorHandler runs the offboarding workflow: terminate the
// identity's lifecycle and wait for the provider to confirm.
type OffboardContractorHandler struct {
	provisioner Provisioner
	awaiter     TaskAwaiter
	sink        ActivitySink
	logger      Logger
}

// OffboardOption customizes handler construction.
type OffboardOption func(*OffboardContractorHandler)

// WithOffboardLogger overrides the default logger.
func WithOffboardLogger(logger Logger) OffboardOption {
	return func(h *OffboardContractorHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithOffboardActivitySink sets the sink receiving workflow events.
func WithOffboardActivitySink(sink ActivitySink) OffboardOption {
	return func(h *OffboardContractorHandler) {
		h.sink = normalizeActivitySink(sink)
	}
}

// NewOffboardContractorHandler wires the workflow over a provisioner and
// the poller interposed between its steps.
func NewOffboardContractorHandler(provisioner Provisioner, awaiter TaskAwaiter, opts ...OffboardOption) *OffboardContractorHandler {
	h := &OffboardContractorHandler{
		provisioner: provisioner,
		awaiter:     awaiter,
		sink:        noopActivitySink{},
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

func (h *OffboardContractorHandler) Execute(ctx context.Context, event OffboardContractorMessage) (*OffboardingReceipt, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during contractor offboarding",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *OffboardContractorHandler) execute(ctx context.Context, event OffboardContractorMessage) (*OffboardingReceipt, error) {
	if err := event.Validate(); err != nil {
		return nil, ValidationError(err, "invalid offboarding request")
	}

	taskID, err := h.provisioner.SetLifecycleState(ctx, event.IdentityID, LifecycleTerminated)
	if err != nil {
		// unknown identities surface as-is, no task was created
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fatalProvisioningError(err, workflowOffboard, stepSetLifecycle, "", "")
	}

	task, err := h.awaiter.Await(ctx, taskID)
	if err != nil {
		return nil, fatalProvisioningError(err, workflowOffboard, stepAwaitLifecycle, taskID, lastStatusFromError(err))
	}

	if task.Result == nil || task.Result.Status != TaskResultSuccess {
		return nil, fatalProvisioningError(nil, workflowOffboard, stepAwaitLifecycle, taskID, task.Status)
	}

	h.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventOffboardComplete,
		IdentityID: event.IdentityID,
		TaskID:     taskID,
		ToState:    string(LifecycleTerminated),
		Metadata: map[string]any{
			"justification":     event.Justification,
			"revoke_all_access": event.RevokeAllAccess,
		},
	})

	return &OffboardingReceipt{
		IdentityID:      event.IdentityID,
		TaskID:          taskID,
		RevokeAllAccess: event.RevokeAllAccess,
	}, nil
}

func (h *OffboardContractorHandler) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "workflow"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := h.sink.Record(ctx, event); err != nil {
		h.logger.Error("activity sink record failed", "event", string(event.EventType), "error", err)
	}
}
