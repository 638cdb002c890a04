package govern

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeIdentityNotFound = "IDENTITY_NOT_FOUND"
	textCodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	textCodeTaskNotFound     = "TASK_NOT_FOUND"
	textCodeTaskTimeout      = "TASK_TIMEOUT"
	textCodeFatal            = "PROVISIONING_FATAL"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountNotFound is returned when an account id is unknown to the directory
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTaskNotFound is returned when a task id is unknown to the ledger
var ErrTaskNotFound = goerrors.New("task not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeTaskNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTaskTimeout is returned when the polling budget is exhausted before
// a task reached its terminal status. Callers get the task id, attempt
// count, and last observed status as metadata.
var ErrTaskTimeout = goerrors.New("task did not complete within polling budget", goerrors.CategoryOperation).
	WithTextCode(textCodeTaskTimeout)

// ErrFatalProvisioning aborts a workflow when a critical step fails. The
// wrapped cause plus workflow/step metadata travel with it to the caller.
var ErrFatalProvisioning = goerrors.New("provisioning workflow failed", goerrors.CategoryOperation).
	WithTextCode(textCodeFatal)

// IsNotFound will check for directory and ledger miss errors
func IsNotFound(err error) bool {
	return goerrors.IsNotFound(err)
}

// ValidationError wraps caller-correctable input errors (ozzo validation
// results included) with the validation category and a bad request code.
func ValidationError(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, msg).
		WithCode(goerrors.CodeBadRequest)
}

// IsValidation reports whether err carries the validation category.
func IsValidation(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryValidation
	}
	return false
}

// IsTaskTimeout reports whether err is a polling budget exhaustion.
func IsTaskTimeout(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeTaskTimeout
	}
	return false
}

// IsFatalProvisioning reports whether err aborted a workflow.
func IsFatalProvisioning(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeFatal
	}
	return false
}

func taskTimeoutError(taskID string, attempts int, lastStatus TaskStatus) error {
	return ErrTaskTimeout.WithMetadata(map[string]any{
		"task_id":     taskID,
		"attempts":    attempts,
		"last_status": lastStatus,
	})
}

func fatalProvisioningError(cause error, workflow, step, taskID string, lastStatus TaskStatus) error {
	meta := map[string]any{
		"workflow": workflow,
		"step":     step,
	}
	if taskID != "" {
		meta["task_id"] = taskID
	}
	if lastStatus != "" {
		meta["last_status"] = lastStatus
	}

	if cause == nil {
		return ErrFatalProvisioning.WithMetadata(meta)
	}

	return goerrors.Wrap(cause, goerrors.CategoryOperation, "provisioning workflow failed").
		WithTextCode(textCodeFatal).
		WithMetadata(meta)
}
