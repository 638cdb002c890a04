package audit

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	govern "github.com/goliatone/go-govern"
)

// Record is a persisted activity event.
type Record struct {
	bun.BaseModel `bun:"table:audit_records,alias:aud"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	EventType     string         `bun:"event_type,notnull" json:"event_type"`
	ActorID       string         `bun:"actor_id" json:"actor_id,omitempty"`
	ActorType     string         `bun:"actor_type" json:"actor_type,omitempty"`
	IdentityID    string         `bun:"identity_id" json:"identity_id,omitempty"`
	AccountID     string         `bun:"account_id" json:"account_id,omitempty"`
	TaskID        string         `bun:"task_id" json:"task_id,omitempty"`
	FromState     string         `bun:"from_state" json:"from_state,omitempty"`
	ToState       string         `bun:"to_state" json:"to_state,omitempty"`
	Metadata      map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	OccurredAt    *time.Time     `bun:"occurred_at,nullzero" json:"occurred_at,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Store persists activity events and implements govern.ActivitySink.
type Store struct {
	repo   repository.Repository[*Record]
	db     *bun.DB
	logger govern.Logger
}

var _ govern.ActivitySink = (*Store)(nil)

type StoreOption func(*Store)

func WithStoreLogger(logger govern.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(db *bun.DB, opts ...StoreOption) *Store {
	repo := repository.NewRepository[*Record](db, repository.ModelHandlers[*Record]{
		NewRecord: func() *Record { return &Record{} },
		GetID: func(r *Record) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Record, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	store := &Store{
		repo: repo,
		db:   db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store
}

// CreateTables creates the backing table. Meant for tests and embedded
// sqlite setups, production schemas come from migrations.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Record)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Record implements govern.ActivitySink.
func (s *Store) Record(ctx context.Context, event govern.ActivityEvent) error {
	record := recordFromEvent(event)
	_, err := s.repo.Create(ctx, record)
	return err
}

// ByIdentity returns all persisted events for an identity, oldest first.
func (s *Store) ByIdentity(ctx context.Context, identityID string) ([]*Record, error) {
	return s.list(ctx, "?TableAlias.identity_id = ?", identityID)
}

// ByTask returns all persisted events referencing a task, oldest first.
func (s *Store) ByTask(ctx context.Context, taskID string) ([]*Record, error) {
	return s.list(ctx, "?TableAlias.task_id = ?", taskID)
}

func (s *Store) list(ctx context.Context, where string, arg any) ([]*Record, error) {
	var records []*Record
	err := s.db.NewSelect().
		Model(&records).
		Where(where, arg).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func recordFromEvent(event govern.ActivityEvent) *Record {
	record := &Record{
		EventType:  string(event.EventType),
		ActorID:    event.Actor.ID,
		ActorType:  event.Actor.Type,
		IdentityID: event.IdentityID,
		AccountID:  event.AccountID,
		TaskID:     event.TaskID,
		FromState:  event.FromState,
		ToState:    event.ToState,
		Metadata:   event.Metadata,
	}
	if !event.OccurredAt.IsZero() {
		occurredAt := event.OccurredAt
		record.OccurredAt = &occurredAt
	}
	return record
}
