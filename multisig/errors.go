package multisig

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by errors raised before anything is sent to the network.
	ErrValidation = errors.New("validation failed")
	// ErrRejected is matched by errors carrying a contract's refusal.
	ErrRejected = errors.New("rejected by contract")
	// ErrNotFound is matched when a multisig or proposal does not exist remotely.
	ErrNotFound = errors.New("not found")
	// ErrTimeout is matched when a remote call did not answer within its deadline.
	ErrTimeout = errors.New("timed out")
	// ErrDirectoryUnavailable is matched when the off-chain directory failed.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	// ErrPartialAggregate is matched when some multisigs could not be resolved.
	ErrPartialAggregate = errors.New("partial aggregate")
)

// ValidationError is a failed client-side precondition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is shorthand for building a ValidationError.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RejectedError is a contract refusing a call. Code is the contract's reason code.
type RejectedError struct {
	Function string
	Code     ContractErrorCode
	Message  string
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("%s rejected: %s (code %d)", e.Function, e.Code, uint32(e.Code))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// NotFoundError reports a missing multisig or proposal.
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.What, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TimeoutError reports a remote call that exceeded its deadline. When
// Submitted is set, a signed transaction reached the node and its effect is
// unknown: re-query the proposal before deciding to retry.
type TimeoutError struct {
	Function  string
	Submitted bool
	Err       error
}

func (e *TimeoutError) Error() string {
	if e.Submitted {
		return fmt.Sprintf("%s: submitted but not confirmed in time, outcome unknown: %v", e.Function, e.Err)
	}
	return fmt.Sprintf("%s: timed out: %v", e.Function, e.Err)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// DirectoryError wraps a failure of the off-chain directory.
type DirectoryError struct {
	// Note: .error is the implementation of .Error. Use
	// NewDirectoryError(fmt.Errorf("...: %w", err)) to keep err in the chain.
	error
}

func NewDirectoryError(err error) error {
	return DirectoryError{err}
}

func (err DirectoryError) Is(target error) bool {
	return target == ErrDirectoryUnavailable
}

func (err DirectoryError) Unwrap() error {
	return err.error
}

// ErrorKind is the taxonomy bucket of an error.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindValidation           ErrorKind = "validation"
	KindRejected             ErrorKind = "rejected"
	KindNotFound             ErrorKind = "not_found"
	KindTimeout              ErrorKind = "timeout"
	KindDirectoryUnavailable ErrorKind = "directory_unavailable"
	KindPartialAggregate     ErrorKind = "partial_aggregate"
	KindTransport            ErrorKind = "transport"
)

// KindOf classifies err. Errors outside the taxonomy are reported as transport failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrRejected):
		return KindRejected
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrDirectoryUnavailable):
		return KindDirectoryUnavailable
	case errors.Is(err, ErrPartialAggregate):
		return KindPartialAggregate
	default:
		return KindTransport
	}
}
