package govern

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TaskQuerier is the slice of the provisioning surface the poller needs.
type TaskQuerier interface {
	GetTaskStatus(ctx context.Context, taskID string) (*Task, error)
}

// Poller waits for a task to reach its terminal status with a bounded
// retry budget: up to MaxAttempts queries separated by a fixed Interval.
// Individual query failures are logged and burn an attempt, they never
// abort the wait early; context cancellation does.
type Poller struct {
	querier     TaskQuerier
	maxAttempts int
	interval    time.Duration
	logger      Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ TaskAwaiter = (*Poller)(nil)

// PollerOption customizes poller construction.
type PollerOption func(*Poller)

// WithPollerMaxAttempts bounds the retry budget.
func WithPollerMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithPollerInterval sets the fixed delay between attempts.
func WithPollerInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithPollerLogger overrides the default logger.
func WithPollerLogger(logger Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPollerSleep injects the inter-attempt wait (useful for tests).
func WithPollerSleep(sleep func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// NewPoller builds a poller over the given task status querier.
func NewPoller(querier TaskQuerier, opts ...PollerOption) *Poller {
	p := &Poller{
		querier:     querier,
		maxAttempts: 10,
		interval:    500 * time.Millisecond,
		logger:      defLogger{},
		sleep:       sleepContext,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Await resolves as soon as the task reports COMPLETED. When the attempt
// budget runs out first it fails with a task timeout error carrying the
// task id, the attempts spent, and the last status observed.
func (p *Poller) Await(ctx context.Context, taskID string) (*Task, error) {
	var lastStatus TaskStatus

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		task, err := p.querier.GetTaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "polling cancelled").
					WithMetadata(map[string]any{"task_id": taskID, "attempts": attempt})
			}
			p.logger.Error("task status query failed", "task_id", taskID, "attempt", attempt, "error", err)
		} else {
			lastStatus = task.Status
			if task.IsTerminal() {
				return task, nil
			}
		}

		if attempt < p.maxAttempts {
			if err := p.sleep(ctx, p.interval); err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "polling cancelled").
					WithMetadata(map[string]any{"task_id": taskID, "attempts": attempt})
			}
		}
	}

	return nil, taskTimeoutError(taskID, p.maxAttempts, lastStatus)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
