package govern

import "time"

// TaskKind is the operation category an async task tracks
type TaskKind = string

const (
	// TaskKindAccountCreate account provisioning on a source
	TaskKindAccountCreate TaskKind = "account-create"
	// TaskKindAccountDisable account disable on a source
	TaskKindAccountDisable TaskKind = "account-disable"
	// TaskKindLifecycleChange identity lifecycle transition
	TaskKindLifecycleChange TaskKind = "lifecycle-change"
	// TaskKindGeneric any other tracked operation
	TaskKindGeneric TaskKind = "generic"
)

// TaskStatus is the staged status of an async provider task
type TaskStatus = string

const (
	// TaskQueued accepted, not yet picked up
	TaskQueued TaskStatus = "QUEUED"
	// TaskProcessing the provider is working on it
	TaskProcessing TaskStatus = "PROCESSING"
	// TaskCompleted terminal, result is populated
	TaskCompleted TaskStatus = "COMPLETED"
)

// TaskResult is populated once a task reaches TaskCompleted. Account
// oriented tasks carry the correlated record ids, generic tasks carry a
// human readable message.
type TaskResult struct {
	Status     string `json:"status,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
	SourceName string `json:"source_name,omitempty"`
	Message    string `json:"message,omitempty"`
}

// TaskResultSuccess is the status value a completed task reports.
const TaskResultSuccess = "success"

// Task is a handle to one in-flight asynchronous provider operation.
// Tasks live for the duration of the process and are never deleted.
type Task struct {
	ID          string         `json:"id,omitempty"`
	Kind        TaskKind       `json:"kind,omitempty"`
	Status      TaskStatus     `json:"status,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Result      *TaskResult    `json:"result,omitempty"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the task reached its final status.
func (t *Task) IsTerminal() bool {
	return t != nil && t.Status == TaskCompleted
}

// Clone returns a defensive snapshot of the task; callers of the ledger
// never see the live record.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	out := *t
	if t.Payload != nil {
		out.Payload = make(map[string]any, len(t.Payload))
		for k, v := range t.Payload {
			out.Payload[k] = v
		}
	}
	if t.Result != nil {
		result := *t.Result
		out.Result = &result
	}
	return &out
}
