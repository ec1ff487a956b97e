package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
// Callers branch on Kind, never on Error() text.
type Kind string

const (
	KindAlreadyExists     Kind = "AlreadyExists"
	KindNotFound          Kind = "NotFound"
	KindUnauthorized      Kind = "Unauthorized"
	KindCorruptPayload    Kind = "CorruptPayload"
	KindLedgerUnavailable Kind = "LedgerUnavailable"
	KindInvalidArgument   Kind = "InvalidArgument"
	KindConflict          Kind = "Conflict"
)

// Error is the structured error returned by the record store and its collaborators.
type Error struct {
	Kind  Kind
	Op    string // e.g. "patient.create"
	Key   string // ledger key, never payload data
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Key != "" {
		msg += " (" + e.Key + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is makes errors.Is(err, &Error{Kind: k}) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Op == "" && t.Key == "" && t.Cause == nil && t.Kind == e.Kind
}

// New builds an *Error without a cause.
func New(kind Kind, op, key string) error {
	return &Error{Kind: kind, Op: op, Key: key}
}

// Wrap builds an *Error carrying cause.
func Wrap(kind Kind, op, key string, cause error) error {
	return &Error{Kind: kind, Op: op, Key: key, Cause: cause}
}

// Newf builds an *Error whose cause is a formatted message.
func Newf(kind Kind, op, key, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Key: key, Cause: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may retry. Only ledger unavailability
// qualifies, and non-idempotent operations must re-read state first.
func Retryable(err error) bool {
	return IsKind(err, KindLedgerUnavailable)
}
