package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure so callers can decide whether the
// operation is retryable or a caller mistake.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindInvalidState        Kind = "invalid_state"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindAlreadyDistributed  Kind = "already_distributed"
)

// Error is a domain failure carrying its kind and the entity involved.
type Error struct {
	Kind   Kind
	Entity string
	ID     string
	Msg    string
}

func (e *Error) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.ID == "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Entity, e.Msg)
	}
	return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Entity, e.ID, e.Msg)
}

func newError(kind Kind, entity, id, format string, args ...any) *Error {
	return &Error{Kind: kind, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// Validation marks malformed or out-of-range input. Not retryable.
func Validation(entity, id, format string, args ...any) *Error {
	return newError(KindValidation, entity, id, format, args...)
}

// InvalidState marks an operation that is illegal for the entity's current
// state. Not retryable.
func InvalidState(entity, id, format string, args ...any) *Error {
	return newError(KindInvalidState, entity, id, format, args...)
}

// InsufficientFunds marks a withdrawal or payment exceeding what is available.
func InsufficientFunds(entity, id, format string, args ...any) *Error {
	return newError(KindInsufficientFunds, entity, id, format, args...)
}

// Conflict marks an optimistic-lock failure. The whole operation is safe to
// retry.
func Conflict(entity, id, format string, args ...any) *Error {
	return newError(KindConcurrencyConflict, entity, id, format, args...)
}

// AlreadyDistributed marks an attempt to recalculate a finalised
// distribution.
func AlreadyDistributed(entity, id, format string, args ...any) *Error {
	return newError(KindAlreadyDistributed, entity, id, format, args...)
}

// KindOf reports the kind of err, or the empty Kind for non-domain errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func hasKind(err error, kind Kind) bool { return KindOf(err) == kind }

func IsValidation(err error) bool         { return hasKind(err, KindValidation) }
func IsInvalidState(err error) bool       { return hasKind(err, KindInvalidState) }
func IsInsufficientFunds(err error) bool  { return hasKind(err, KindInsufficientFunds) }
func IsConflict(err error) bool           { return hasKind(err, KindConcurrencyConflict) }
func IsAlreadyDistributed(err error) bool { return hasKind(err, KindAlreadyDistributed) }
