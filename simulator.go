package govern

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// Attribute keys the simulator gives meaning to. Everything else in the
// attribute map is carried through untouched.
const (
	AttrMail           = "mail"
	AttrDisplayName    = "displayName"
	AttrGivenName      = "givenName"
	AttrSurname        = "sn"
	AttrLastName       = "lastName"
	AttrManager        = "manager"
	AttrPhone          = "phone"
	AttrPassword       = "password"
	AttrNativeIdentity = "nativeIdentity"
	AttrSourceName     = "sourceName"
)

// Simulator emulates an identity-governance provider's asynchronous
// provisioning surface. Side effects land in the directory synchronously
// at submission time while the matching ledger task confirms lazily, one
// stage per status query, the way eventually consistent provisioning
// APIs behave: the authoritative state changes server-side immediately
// but client-visible confirmation lags and must be polled.
type Simulator struct {
	dir         *Directory
	ledger      *Ledger
	lifecycle   LifecycleMachine
	sink        ActivitySink
	logger      Logger
	now         Clock
	roundTrip   time.Duration
	phoneRegion string
}

var _ Provisioner = (*Simulator)(nil)

// SimulatorOption customizes simulator construction.
type SimulatorOption func(*Simulator)

// WithSimulatorClock injects a custom clock (useful for tests).
func WithSimulatorClock(clock Clock) SimulatorOption {
	return func(s *Simulator) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSimulatorLogger overrides the default logger.
func WithSimulatorLogger(logger Logger) SimulatorOption {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSimulatorActivitySink sets the sink receiving provisioning events.
func WithSimulatorActivitySink(sink ActivitySink) SimulatorOption {
	return func(s *Simulator) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithRoundTripDelay sets the simulated provider round-trip applied to
// every operation. Zero keeps calls immediate, cancellation is honored
// either way.
func WithRoundTripDelay(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if d >= 0 {
			s.roundTrip = d
		}
	}
}

// WithPhoneRegion sets the default region used to normalize the phone
// attribute to E.164. Defaults to US.
func WithPhoneRegion(region string) SimulatorOption {
	return func(s *Simulator) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

// NewSimulator builds a simulator owning a fresh directory and ledger.
// Both stores are scoped to the simulator instance so tests and tenants
// never share state.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		dir:         NewDirectory(),
		sink:        noopActivitySink{},
		logger:      defLogger{},
		now:         time.Now,
		phoneRegion: "US",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.ledger = NewLedger(WithLedgerClock(s.now))
	s.lifecycle = NewLifecycleMachine(s.dir,
		WithStateMachineClock(s.now),
		WithStateMachineActivitySink(s.sink),
		WithStateMachineLogger(s.logger),
	)

	return s
}

// Directory exposes the read-only lookup surface of the backing store.
func (s *Simulator) Directory() *Directory {
	return s.dir
}

// Ledger exposes the task ledger, including the pure Peek read.
func (s *Simulator) Ledger() *Ledger {
	return s.ledger
}

// Lifecycle exposes the identity lifecycle state machine.
func (s *Simulator) Lifecycle() LifecycleMachine {
	return s.lifecycle
}

// CreateAccount provisions a new account plus its correlated identity
// synchronously and returns the id of a QUEUED account-create task. This
// models the provider's 202 Accepted contract: the records exist in the
// directory immediately, only the task's externally visible status is
// unresolved.
func (s *Simulator) CreateAccount(ctx context.Context, sourceID string, attributes map[string]string) (string, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return "", err
	}

	if sourceID == "" {
		return "", goerrors.New("source id is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	attrs := make(map[string]string, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}

	var passwordHash string
	if pwd := attrs[AttrPassword]; pwd != "" {
		h, err := HashCredential(pwd)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password attribute")
		}
		passwordHash = h
		delete(attrs, AttrPassword)
	} else {
		passwordHash = RandomCredentialHash()
	}

	if raw := attrs[AttrPhone]; raw != "" {
		if num, err := phonenumbers.Parse(raw, s.phoneRegion); err == nil {
			attrs[AttrPhone] = phonenumbers.Format(num, phonenumbers.E164)
		}
	}

	email := attrs[AttrMail]
	displayName := DeriveDisplayName(attrs)

	now := s.now()
	account := Account{
		ID:             uuid.New().String(),
		NativeIdentity: nativeIdentity(attrs, displayName),
		SourceID:       sourceID,
		SourceName:     sourceName(attrs, sourceID),
		Status:         AccountEnabled,
		PasswordHash:   passwordHash,
		CreatedAt:      &now,
	}

	identity := &Identity{
		ID:             s.identityID(email),
		DisplayName:    displayName,
		Email:          email,
		Attributes:     attrs,
		LifecycleState: LifecycleActive,
		Accounts:       []Account{account},
		CreatedAt:      &now,
	}

	if managerID := attrs[AttrManager]; managerID != "" {
		identity.Manager = &ManagerRef{ID: managerID}
		if manager, err := s.dir.FindIdentity(managerID); err == nil {
			identity.Manager.DisplayName = manager.DisplayName
		}
	}

	if err := s.dir.add(identity); err != nil {
		return "", err
	}

	task := s.ledger.add(TaskKindAccountCreate, map[string]any{
		"source_id":   sourceID,
		"account_id":  account.ID,
		"identity_id": identity.ID,
	}, TaskResult{
		AccountID:  account.ID,
		IdentityID: identity.ID,
		SourceName: account.SourceName,
	})

	s.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountCreated,
		IdentityID: identity.ID,
		AccountID:  account.ID,
		TaskID:     task.ID,
		ToState:    string(AccountEnabled),
	})

	return task.ID, nil
}

// DisableAccount marks the account disabled synchronously and enqueues a
// QUEUED disable task. Unknown account ids fail with a not found error.
func (s *Simulator) DisableAccount(ctx context.Context, accountID string) (string, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return "", err
	}

	ownerID, ok := s.dir.accountOwner(accountID)
	if !ok {
		return "", ErrAccountNotFound.WithMetadata(map[string]any{"account_id": accountID})
	}

	var sourceLabel string
	err := s.dir.update(ownerID, func(identity *Identity) error {
		account := identity.AccountByID(accountID)
		if account == nil {
			return ErrAccountNotFound.WithMetadata(map[string]any{"account_id": accountID})
		}
		account.Status = AccountDisabled
		sourceLabel = account.SourceName
		now := s.now()
		identity.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return "", err
	}

	task := s.ledger.add(TaskKindAccountDisable, map[string]any{
		"account_id":  accountID,
		"identity_id": ownerID,
	}, TaskResult{
		AccountID:  accountID,
		IdentityID: ownerID,
		SourceName: sourceLabel,
	})

	s.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountDisabled,
		IdentityID: ownerID,
		AccountID:  accountID,
		TaskID:     task.ID,
		FromState:  string(AccountEnabled),
		ToState:    string(AccountDisabled),
	})

	return task.ID, nil
}

// SetLifecycleState transitions the identity synchronously and enqueues a
// QUEUED lifecycle task. The terminated state cascades a disabled status
// to every owned account. Provider-defined states outside the built-in
// graph are let through unvalidated.
func (s *Simulator) SetLifecycleState(ctx context.Context, identityID string, state LifecycleState) (string, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return "", err
	}

	var opts []TransitionOption
	if !builtinLifecycleState(state) {
		opts = append(opts, WithForceTransition())
	}

	identity, err := s.lifecycle.Transition(ctx, ActorRef{Type: "api"}, identityID, state, opts...)
	if err != nil {
		return "", err
	}

	task := s.ledger.add(TaskKindLifecycleChange, map[string]any{
		"identity_id": identity.ID,
		"state":       state,
	}, TaskResult{
		IdentityID: identity.ID,
		Message:    "lifecycle state set to " + state,
	})

	return task.ID, nil
}

// RequestAccess appends an access item to the identity and enqueues a
// QUEUED generic task tracking the grant.
func (s *Simulator) RequestAccess(ctx context.Context, identityID string, req AccessRequest) (string, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return "", err
	}

	if req.ID == "" {
		return "", goerrors.New("access item id is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if req.Type == "" {
		req.Type = AccessTypeProfile
	}

	identity, err := s.dir.FindIdentity(identityID)
	if err != nil {
		return "", err
	}

	err = s.dir.update(identity.ID, func(live *Identity) error {
		live.AccessItems = append(live.AccessItems, AccessItem{
			ID:   req.ID,
			Type: req.Type,
		})
		now := s.now()
		live.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return "", err
	}

	task := s.ledger.add(TaskKindGeneric, map[string]any{
		"identity_id": identity.ID,
		"access_id":   req.ID,
		"access_type": req.Type,
	}, TaskResult{
		Message: "access request submitted for " + req.ID,
	})

	s.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccessRequested,
		IdentityID: identity.ID,
		TaskID:     task.ID,
		Metadata:   map[string]any{"access_id": req.ID, "access_type": req.Type},
	})

	return task.ID, nil
}

// GetTaskStatus advances the task by one stage when it is not yet
// terminal and returns a snapshot, matching the provider behavior where
// each status query moves simulated work forward. Use Ledger().Peek for
// a side-effect free read.
func (s *Simulator) GetTaskStatus(ctx context.Context, taskID string) (*Task, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return nil, err
	}
	return s.ledger.Advance(taskID)
}

// SearchIdentity resolves an identity through exactly one discriminator:
// email, account id, or identity id.
func (s *Simulator) SearchIdentity(ctx context.Context, filter SearchFilter) ([]*Identity, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return nil, err
	}

	discriminators := 0
	for _, v := range []string{filter.Email, filter.AccountID, filter.IdentityID} {
		if v != "" {
			discriminators++
		}
	}
	if discriminators != 1 {
		return nil, goerrors.New("search requires exactly one of email, account_id, identity_id", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	var (
		identity *Identity
		err      error
	)
	switch {
	case filter.Email != "":
		identity, err = s.dir.FindIdentityByEmail(filter.Email)
	case filter.AccountID != "":
		identity, err = s.dir.FindIdentityByAccountID(filter.AccountID)
	default:
		identity, err = s.dir.FindIdentity(filter.IdentityID)
	}

	if err != nil {
		return []*Identity{}, err
	}

	return []*Identity{identity}, nil
}

// ListAccountsByIdentity returns the identity's accounts. An unknown
// identity yields an empty list, absence of accounts is a valid state.
func (s *Simulator) ListAccountsByIdentity(ctx context.Context, identityID string) ([]Account, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return nil, err
	}

	identity, err := s.dir.FindIdentity(identityID)
	if err != nil {
		if IsNotFound(err) {
			return []Account{}, nil
		}
		return nil, err
	}

	if identity.Accounts == nil {
		return []Account{}, nil
	}
	return identity.Accounts, nil
}

// GetUserDetails returns the identity record or a not found error.
func (s *Simulator) GetUserDetails(ctx context.Context, identityID string) (*Identity, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return nil, err
	}
	return s.dir.FindIdentity(identityID)
}

// GetUserEntitlements returns the identity's access items. A missing
// identity is a not found error, distinct from exists-but-empty.
func (s *Simulator) GetUserEntitlements(ctx context.Context, identityID string) ([]AccessItem, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return nil, err
	}

	identity, err := s.dir.FindIdentity(identityID)
	if err != nil {
		return nil, err
	}

	if identity.AccessItems == nil {
		return []AccessItem{}, nil
	}
	return identity.AccessItems, nil
}

// identityID derives a deterministic id from the email when present so
// re-created identities correlate, falling back to a random uuid.
func (s *Simulator) identityID(email string) string {
	if email != "" {
		if id, err := hashid.NewUUID(normalizeEmail(email)); err == nil {
			return id.String()
		}
	}
	return uuid.New().String()
}

func (s *Simulator) simulateRoundTrip(ctx context.Context) error {
	if s.roundTrip <= 0 {
		select {
		case <-ctx.Done():
			return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "provider call cancelled")
		default:
			return nil
		}
	}

	timer := time.NewTimer(s.roundTrip)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "provider call cancelled")
	case <-timer.C:
		return nil
	}
}

func (s *Simulator) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Error("activity sink record failed", "event", string(event.EventType), "error", err)
	}
}

func builtinLifecycleState(state LifecycleState) bool {
	switch state {
	case LifecycleActive, LifecycleSuspended, LifecycleTerminated:
		return true
	}
	return false
}

func nativeIdentity(attrs map[string]string, displayName string) string {
	if v := attrs[AttrNativeIdentity]; v != "" {
		return v
	}
	if mail := attrs[AttrMail]; mail != "" {
		return mail
	}
	return displayName
}

func sourceName(attrs map[string]string, sourceID string) string {
	if v := attrs[AttrSourceName]; v != "" {
		return v
	}
	return "source:" + sourceID
}
