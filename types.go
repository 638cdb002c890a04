package govern

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Provisioner is the operation surface the orchestrator and the HTTP
// layer consume. Simulator is the in-process implementation; tests swap
// in mocks.
type Provisioner interface {
	CreateAccount(ctx context.Context, sourceID string, attributes map[string]string) (string, error)
	DisableAccount(ctx context.Context, accountID string) (string, error)
	SetLifecycleState(ctx context.Context, identityID string, state LifecycleState) (string, error)
	RequestAccess(ctx context.Context, identityID string, req AccessRequest) (string, error)
	GetTaskStatus(ctx context.Context, taskID string) (*Task, error)
	SearchIdentity(ctx context.Context, filter SearchFilter) ([]*Identity, error)
	ListAccountsByIdentity(ctx context.Context, identityID string) ([]Account, error)
	GetUserDetails(ctx context.Context, identityID string) (*Identity, error)
	GetUserEntitlements(ctx context.Context, identityID string) ([]AccessItem, error)
}

// SearchFilter selects exactly one correlation discriminator.
type SearchFilter struct {
	Email      string `json:"email,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
}

// AccessRequest asks the provider to grant one access item.
type AccessRequest struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// UnmarshalJSON accepts either a bare item id string or an {id, type}
// object; a bare id's type defaults to access profile downstream.
func (r *AccessRequest) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		r.ID = id
		r.Type = ""
		return nil
	}

	type alias AccessRequest
	var out alias
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*r = AccessRequest(out)
	return nil
}

// TaskAwaiter waits for a task to reach its terminal status.
type TaskAwaiter interface {
	Await(ctx context.Context, taskID string) (*Task, error)
}

// Clock lets tests control time
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] GOVERN " + newline(logline(format, args)))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] GOVERN " + newline(logline(format, args)))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] GOVERN " + newline(logline(format, args)))
}

// logline renders a message and its arguments. Call sites pass
// slog-style key/value pairs, so format verbs only apply when the
// message actually carries them.
func logline(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}

	if strings.Contains(msg, "%") {
		return fmt.Sprintf(msg, args...)
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}

func newline(format string) string {
	if !strings.HasSuffix(format, "\n") {
		format = format + "\n"
	}
	return format
}
