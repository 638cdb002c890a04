package govern

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

const (
	workflowOnboard = "contractor.onboard"

	stepCreateAccount   = "create_account"
	stepAwaitProvision  = "await_provisioning"
	stepExtractAccount  = "extract_account_id"
	stepResolveIdentity = "resolve_identity"
)

// OnboardContractorMessage carries everything needed to provision a new
// contractor: the person, their manager, source attributes, and the
// access they should start with. EndDate is accepted for API parity but
// not acted upon, scheduled offboarding lives outside the sandbox.
type OnboardContractorMessage struct {
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Email         string            `json:"email"`
	ManagerID     string            `json:"manager_id,omitempty"`
	SourceID      string            `json:"source_id,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	InitialAccess []AccessRequest   `json:"initial_access,omitempty"`
	EndDate       *time.Time        `json:"end_date,omitempty"`
}

func (e OnboardContractorMessage) Type() string { return "contractor.onboard" }

// Validate will run validation rules
func (e OnboardContractorMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(
			&e.FirstName,
			validation.Required,
		),
		validation.Field(
			&e.LastName,
			validation.Required,
		),
		validation.Field(
			&e.Email,
			validation.Required,
			is.Email,
		),
	)
}

// AccessGrantOutcome is the per-item result of the best-effort initial
// access loop. Failures are recorded here instead of being swallowed so
// callers and tests can assert on partial-failure detail.
type AccessGrantOutcome struct {
	ItemID string `json:"item_id"`
	Type   string `json:"type,omitempty"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Granted reports whether this item's grant request was accepted.
func (o AccessGrantOutcome) Granted() bool {
	return o.Error == ""
}

// OnboardingReceipt is the successful outcome of an onboarding run.
type OnboardingReceipt struct {
	AccountID     string               `json:"account_id"`
	IdentityID    string               `json:"identity_id"`
	AccessResults []AccessGrantOutcome `json:"access_results,omitempty"`
}

// OnboardContractorHandler chains the provisioning calls of a contractor
// onboarding: account creation, task polling, identity correlation, and
// best-effort initial access grants.
type OnboardContractorHandler struct {
	provisioner     Provisioner
	awaiter         TaskAwaiter
	sink            ActivitySink
	logger          Logger
	defaultSourceID string
}

// OnboardOption customizes handler construction.
type OnboardOption func(*OnboardContractorHandler)

// WithOnboardLogger overrides the default logger.
func WithOnboardLogger(logger Logger) OnboardOption {
	return func(h *OnboardContractorHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithOnboardActivitySink sets the sink receiving workflow events.
func WithOnboardActivitySink(sink ActivitySink) OnboardOption {
	return func(h *OnboardContractorHandler) {
		h.sink = normalizeActivitySink(sink)
	}
}

// WithOnboardDefaultSource sets the source used when the message does not
// name one.
func WithOnboardDefaultSource(sourceID string) OnboardOption {
	return func(h *OnboardContractorHandler) {
		if sourceID != "" {
			h.defaultSourceID = sourceID
		}
	}
}

// NewOnboardContractorHandler wires the workflow over a provisioner and
// the poller interposed between its dependent steps.
func NewOnboardContractorHandler(provisioner Provisioner, awaiter TaskAwaiter, opts ...OnboardOption) *OnboardContractorHandler {
	h := &OnboardContractorHandler{
		provisioner:     provisioner,
		awaiter:         awaiter,
		sink:            noopActivitySink{},
		logger:          defLogger{},
		defaultSourceID: "contractor-directory",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

func (h *OnboardContractorHandler) Execute(ctx context.Context, event OnboardContractorMessage) (*OnboardingReceipt, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during contractor onboarding",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *OnboardContractorHandler) execute(ctx context.Context, event OnboardContractorMessage) (*OnboardingReceipt, error) {
	if err := event.Validate(); err != nil {
		return nil, ValidationError(err, "invalid onboarding request")
	}

	sourceID := event.SourceID
	if sourceID == "" {
		sourceID = h.defaultSourceID
	}

	attrs := h.buildAttributes(event)

	taskID, err := h.provisioner.CreateAccount(ctx, sourceID, attrs)
	if err != nil {
		return nil, fatalProvisioningError(err, workflowOnboard, stepCreateAccount, "", "")
	}

	task, err := h.awaiter.Await(ctx, taskID)
	if err != nil {
		return nil, fatalProvisioningError(err, workflowOnboard, stepAwaitProvision, taskID, lastStatusFromError(err))
	}

	if task.Result == nil || task.Result.Status != TaskResultSuccess {
		return nil, fatalProvisioningError(nil, workflowOnboard, stepAwaitProvision, taskID, task.Status)
	}

	accountID := task.Result.AccountID
	if accountID == "" {
		return nil, fatalProvisioningError(nil, workflowOnboard, stepExtractAccount, taskID, task.Status)
	}

	identityID, err := h.resolveIdentityID(ctx, task.Result, accountID, event.Email)
	if err != nil {
		return nil, fatalProvisioningError(err, workflowOnboard, stepResolveIdentity, taskID, task.Status)
	}

	receipt := &OnboardingReceipt{
		AccountID:  accountID,
		IdentityID: identityID,
	}

	// Initial access is best-effort: each item's failure is recorded and
	// logged but never fails an otherwise-successful onboarding.
	for _, item := range event.InitialAccess {
		outcome := AccessGrantOutcome{ItemID: item.ID, Type: item.Type}
		if outcome.Type == "" {
			outcome.Type = AccessTypeProfile
		}

		grantTaskID, err := h.provisioner.RequestAccess(ctx, identityID, item)
		if err != nil {
			h.logger.Error("initial access grant failed", "identity_id", identityID, "item_id", item.ID, "error", err)
			outcome.Error = err.Error()
		} else {
			outcome.TaskID = grantTaskID
		}

		receipt.AccessResults = append(receipt.AccessResults, outcome)
	}

	h.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventOnboardComplete,
		IdentityID: identityID,
		AccountID:  accountID,
		TaskID:     taskID,
		Metadata: map[string]any{
			"access_requested": len(event.InitialAccess),
		},
	})

	return receipt, nil
}

// buildAttributes merges the caller's attribute map with the derived
// provider attributes; explicit caller values win.
func (h *OnboardContractorHandler) buildAttributes(event OnboardContractorMessage) map[string]string {
	attrs := map[string]string{
		AttrMail:        event.Email,
		AttrDisplayName: event.FirstName + " " + event.LastName,
		AttrGivenName:   event.FirstName,
		AttrSurname:     event.LastName,
	}
	if event.ManagerID != "" {
		attrs[AttrManager] = event.ManagerID
	}
	for k, v := range event.Attributes {
		attrs[k] = v
	}
	return attrs
}

// resolveIdentityID prefers the task result, then correlation by account
// id, then by email. An identity every path misses is fatal.
func (h *OnboardContractorHandler) resolveIdentityID(ctx context.Context, result *TaskResult, accountID, email string) (string, error) {
	if result.IdentityID != "" {
		return result.IdentityID, nil
	}

	if matches, err := h.provisioner.SearchIdentity(ctx, SearchFilter{AccountID: accountID}); err == nil && len(matches) > 0 {
		return matches[0].ID, nil
	}

	matches, err := h.provisioner.SearchIdentity(ctx, SearchFilter{Email: email})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrIdentityNotFound.WithMetadata(map[string]any{"email": email})
	}

	return matches[0].ID, nil
}

func (h *OnboardContractorHandler) recordActivity(ctx context.Context, event ActivityEvent) {
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

// lastStatusFromError pulls the last observed task status out of a
// timeout error's metadata when present.
func lastStatusFromError(err error) TaskStatus {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Metadata != nil {
		if status, ok := richErr.Metadata["last_status"].(string); ok {
			return status
		}
	}
	return ""
}
