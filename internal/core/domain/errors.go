package domain

import "fmt"

// ErrorKind classifies every failure a service operation can surface.
// Callers branch on the kind with errors.Is against the sentinel values
// below; none of these are retried inside the core.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidState ErrorKind = "invalid_state"
	KindValidation   ErrorKind = "validation"
	KindInternal     ErrorKind = "internal"
)

// Error carries the taxonomy kind plus a human-readable reason.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so
// errors.Is(err, domain.ErrConflict) works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInternal     = &Error{Kind: KindInternal, Message: "internal error"}
)

// NotFoundf builds a NotFound error with a formatted reason.
func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a Conflict error with a formatted reason.
func Conflictf(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds an InvalidState error with a formatted reason.
func InvalidStatef(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a Validation error with a formatted reason.
func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Internalf wraps an unexpected storage or infrastructure failure.
func Internalf(format string, args ...interface{}) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}
