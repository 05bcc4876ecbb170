package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure so callers can map it without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidState
	KindValidation
	KindForbidden
	KindDependencyFailure
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation_error"
	case KindForbidden:
		return "forbidden"
	case KindDependencyFailure:
		return "dependency_failure"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is checks. An *Error matches the sentinel of its Kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrDependencyFailure = &Error{Kind: KindDependencyFailure}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

// Error is the typed result returned by every workflow operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Retryable is true for infrastructure failures the caller may retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...interface{}) *Error {
	return newError(KindNotFound, op, format, args...)
}

func Conflict(op, format string, args ...interface{}) *Error {
	return newError(KindConflict, op, format, args...)
}

func InvalidState(op, format string, args ...interface{}) *Error {
	return newError(KindInvalidState, op, format, args...)
}

func Validation(op, format string, args ...interface{}) *Error {
	return newError(KindValidation, op, format, args...)
}

func Forbidden(op, format string, args ...interface{}) *Error {
	return newError(KindForbidden, op, format, args...)
}

// DependencyFailure wraps an extraction or notification error.
func DependencyFailure(op string, err error) *Error {
	return &Error{Kind: KindDependencyFailure, Op: op, Msg: "dependency failure", Err: err}
}

// Unavailable wraps a storage-layer error as a retryable infrastructure failure.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Msg: "storage unavailable", Err: err}
}

// KindOf returns the Kind of err, KindInternal if it carries none.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindInternal
}

// AsWorkflowError returns err unchanged if it is already typed, otherwise wraps it as Unavailable.
func AsWorkflowError(op string, err error) error {
	if err == nil {
		return nil
	}
	var we *Error
	if errors.As(err, &we) {
		return err
	}
	return Unavailable(op, err)
}
