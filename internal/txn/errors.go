package txn

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes coordinated-operation failures.
type ErrorCode string

const (
	// ErrCodeRegistryUnavailable indicates no registry could be resolved from
	// the context. Nothing was captured or mutated.
	ErrCodeRegistryUnavailable ErrorCode = "REGISTRY_UNAVAILABLE"

	// ErrCodeStoreNotFound indicates a coordinated store name is not
	// registered. Nothing was captured or mutated.
	ErrCodeStoreNotFound ErrorCode = "STORE_NOT_FOUND"

	// ErrCodeHandlerFailed indicates the handler returned an error or
	// panicked. Captured stores were restored.
	ErrCodeHandlerFailed ErrorCode = "HANDLER_FAILED"

	// ErrCodeAborted indicates the handler called Controller.Abort.
	// Captured stores were restored.
	ErrCodeAborted ErrorCode = "ABORTED"

	// ErrCodeMisuse indicates a transaction state-machine violation: double
	// Begin, Commit without Begin, or returning with an open transaction.
	ErrCodeMisuse ErrorCode = "TX_MISUSE"
)

// Error is returned by the coordinator and by Transaction methods.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// OpID identifies the coordinated operation, when one was started.
	OpID string

	// Stores lists the coordinated store names.
	Stores []string

	// Cause is the underlying error (handler error, restore failure).
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.OpID != "" {
		fmt.Fprintf(&b, " (op=%s)", e.OpID)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

func hasCode(err error, code ErrorCode) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsMisuse returns true if err is a transaction misuse error.
// Uses errors.As to handle wrapped errors.
func IsMisuse(err error) bool {
	return hasCode(err, ErrCodeMisuse)
}

// IsAborted returns true if the operation was aborted through its controller.
func IsAborted(err error) bool {
	return hasCode(err, ErrCodeAborted)
}

// IsRegistryUnavailable returns true if no registry could be resolved.
func IsRegistryUnavailable(err error) bool {
	return hasCode(err, ErrCodeRegistryUnavailable)
}

// IsStoreNotFound returns true if a coordinated store name was missing.
func IsStoreNotFound(err error) bool {
	return hasCode(err, ErrCodeStoreNotFound)
}

// IsHandlerFailure returns true if the handler failed or panicked.
func IsHandlerFailure(err error) bool {
	return hasCode(err, ErrCodeHandlerFailed)
}

// IsSetupError returns true for failures raised before any store was
// captured.
func IsSetupError(err error) bool {
	return IsRegistryUnavailable(err) || IsStoreNotFound(err)
}
