package govern

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_LIFECYCLE_TRANSITION"
	textCodeTerminalState     = "TERMINAL_LIFECYCLE_STATE"
)

// ErrInvalidTransition is returned when a requested lifecycle change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid lifecycle transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from the terminated state.
var ErrTerminalState = goerrors.New("lifecycle state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// ActorRef identifies who/what triggered a provisioning action.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionMetadata captures extra context for a lifecycle change.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor    ActorRef
	Identity *Identity
	From     LifecycleState
	To       LifecycleState
	Meta     TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// LifecycleMachine defines lifecycle operations for identities.
type LifecycleMachine interface {
	Transition(ctx context.Context, actor ActorRef, identityID string, target LifecycleState, opts ...TransitionOption) (*Identity, error)
	CurrentState(identityID string) (LifecycleState, error)
}

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*lifecycleMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock Clock) StateMachineOption {
	return func(sm *lifecycleMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *lifecycleMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *lifecycleMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses the transition graph. Provider-defined
// states outside the built-in set travel through here.
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the state update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the state update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewLifecycleMachine returns the default implementation backed by the
// provided directory. Entering the terminated state cascades a disabled
// status to every account the identity owns, atomically with the state
// change.
func NewLifecycleMachine(dir *Directory, opts ...StateMachineOption) LifecycleMachine {
	sm := &lifecycleMachine{
		dir: dir,
		transitions: map[LifecycleState]map[LifecycleState]struct{}{
			LifecycleActive: {
				LifecycleSuspended:  {},
				LifecycleTerminated: {},
			},
			LifecycleSuspended: {
				LifecycleActive:     {},
				LifecycleTerminated: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type lifecycleMachine struct {
	dir          *Directory
	transitions  map[LifecycleState]map[LifecycleState]struct{}
	now          Clock
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *lifecycleMachine) Transition(ctx context.Context, actor ActorRef, identityID string, target LifecycleState, opts ...TransitionOption) (*Identity, error) {
	if target == "" {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target state is empty",
		})
	}

	identity, err := sm.dir.FindIdentity(identityID)
	if err != nil {
		return nil, err
	}

	identity.EnsureLifecycleState()
	from := identity.LifecycleState

	if from == target {
		return identity, nil
	}

	options := sm.buildTransitionOptions(opts...)

	if from == LifecycleTerminated && !options.force {
		return nil, ErrTerminalState.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if !options.force && !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	ctxData := TransitionContext{
		Actor:    actor,
		Identity: identity,
		From:     from,
		To:       target,
		Meta:     options.cloneMetadata(),
	}

	for _, hook := range options.beforeHooks {
		if err := hook(ctx, ctxData); err != nil {
			return nil, err
		}
	}

	var updated *Identity
	err = sm.dir.update(identity.ID, func(live *Identity) error {
		live.LifecycleState = target
		now := sm.now()
		live.UpdatedAt = &now

		if target == LifecycleTerminated {
			for idx := range live.Accounts {
				live.Accounts[idx].Status = AccountDisabled
			}
		}

		updated = live.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, hook := range options.afterHooks {
		if err := hook(ctx, ctxData); err != nil {
			return nil, err
		}
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventLifecycleChanged,
		Actor:      actor,
		IdentityID: updated.ID,
		FromState:  string(from),
		ToState:    string(target),
		Metadata:   sm.transitionMetadata(ctxData.Meta),
	})

	return updated, nil
}

func (sm *lifecycleMachine) CurrentState(identityID string) (LifecycleState, error) {
	identity, err := sm.dir.FindIdentity(identityID)
	if err != nil {
		return "", err
	}
	identity.EnsureLifecycleState()
	return identity.LifecycleState, nil
}

func (sm *lifecycleMachine) canTransition(from, to LifecycleState) bool {
	allowed, ok := sm.transitions[from]
	if !ok {
		// provider-defined states sit outside the graph; any target is
		// reachable from them (terminal stickiness is enforced earlier)
		return true
	}
	_, exists := allowed[to]
	return exists
}

func (sm *lifecycleMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *lifecycleMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	out := make(map[string]any, len(meta.Metadata)+1)
	for k, v := range meta.Metadata {
		out[k] = v
	}
	if meta.Reason != "" {
		out["reason"] = meta.Reason
	}
	return out
}

func (sm *lifecycleMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}
	if err := sm.activitySink.Record(ctx, event); err != nil {
		sm.logger.Error("activity sink record failed", "event", string(event.EventType), "error", err)
	}
}
