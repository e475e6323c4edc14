// Package apperror defines the error taxonomy shared by the booking engine,
// the repositories and the HTTP handlers.  Every user-facing failure carries a
// Kind so that handlers can translate it into a status code without string
// matching, and callers can test for a category with errors.Is against the
// exported sentinels (for example errors.Is(err, apperror.ErrConflict)).
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindExpiredHold
	KindIneligibleDiscount
	KindAuthRequired
	KindPermission
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindExpiredHold:
		return "expired_hold"
	case KindIneligibleDiscount:
		return "ineligible_discount"
	case KindAuthRequired:
		return "auth_required"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified error.  Err optionally holds the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.  Sentinels carry
// no message, so any two errors of one kind match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the caller should re-derive availability and try
// again.  Conflicts and expired holds are the outcome of losing a race against
// another session, not of a malformed request.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict || e.Kind == KindExpiredHold
}

// Sentinels for errors.Is.
var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "slot already taken"}
	ErrExpiredHold        = &Error{Kind: KindExpiredHold, Message: "hold expired"}
	ErrIneligibleDiscount = &Error{Kind: KindIneligibleDiscount, Message: "discount not applicable"}
	ErrAuthRequired       = &Error{Kind: KindAuthRequired, Message: "authentication required"}
	ErrPermission         = &Error{Kind: KindPermission, Message: "permission denied"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func Conflict(format string, args ...any) *Error   { return newf(KindConflict, format, args...) }
func ExpiredHold(format string, args ...any) *Error {
	return newf(KindExpiredHold, format, args...)
}
func IneligibleDiscount(format string, args ...any) *Error {
	return newf(KindIneligibleDiscount, format, args...)
}
func AuthRequired(format string, args ...any) *Error { return newf(KindAuthRequired, format, args...) }
func Permission(format string, args ...any) *Error   { return newf(KindPermission, format, args...) }
func NotFound(format string, args ...any) *Error     { return newf(KindNotFound, format, args...) }

// Wrap classifies cause under kind with the given message.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err carries a retryable kind.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
