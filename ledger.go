package govern

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger owns every Task the sandbox ever created. Records live for the
// duration of the process and are never deleted.
//
// Each task advances through QUEUED, PROCESSING, COMPLETED one stage per
// Advance call, monotonic, idempotent once terminal. Peek never mutates;
// the provider-compatible "a status query ticks the machine" behavior
// lives in Simulator.GetTaskStatus, which calls Advance.
type Ledger struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	pending map[string]TaskResult
	order   []string
	now     Clock
}

// LedgerOption customizes ledger construction.
type LedgerOption func(*Ledger)

// WithLedgerClock injects a custom clock (useful for tests).
func WithLedgerClock(clock Clock) LedgerOption {
	return func(l *Ledger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// NewLedger returns an empty task ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		tasks:   make(map[string]*Task),
		pending: make(map[string]TaskResult),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Peek returns a snapshot of the task without advancing it.
func (l *Ledger) Peek(taskID string) (*Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound.WithMetadata(map[string]any{"task_id": taskID})
	}
	return task.Clone(), nil
}

// Advance moves the task forward by exactly one stage when it is not yet
// terminal, then returns a snapshot of the possibly just-advanced state.
// Reaching COMPLETED publishes the pending result; further calls are
// idempotent.
func (l *Ledger) Advance(taskID string) (*Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound.WithMetadata(map[string]any{"task_id": taskID})
	}

	switch task.Status {
	case TaskQueued:
		task.Status = TaskProcessing
	case TaskProcessing:
		task.Status = TaskCompleted
		now := l.now()
		task.CompletedAt = &now

		result := l.pending[taskID]
		result.Status = TaskResultSuccess
		task.Result = &result
		delete(l.pending, taskID)
	}

	return task.Clone(), nil
}

// Tasks returns snapshots of every task in creation order.
func (l *Ledger) Tasks() []*Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Task, 0, len(l.order))
	for _, id := range l.order {
		if task, ok := l.tasks[id]; ok {
			out = append(out, task.Clone())
		}
	}
	return out
}

// Len reports how many tasks the ledger holds.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// add enqueues a QUEUED task. pending is the result published when the
// task completes; Task.Result stays nil until then.
func (l *Ledger) add(kind TaskKind, payload map[string]any, pending TaskResult) *Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	task := &Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    TaskQueued,
		Payload:   payload,
		CreatedAt: &now,
	}

	l.tasks[task.ID] = task
	l.pending[task.ID] = pending
	l.order = append(l.order, task.ID)

	return task.Clone()
}
