// Package poolerr defines the error-kind taxonomy shared by every layer of
// the pool/browser/session orchestration core. Only the HTTP facade
// translates a Kind into a status code; nothing else branches on status.
package poolerr

import "fmt"

// Kind enumerates the closed set of error categories the core can produce.
type Kind string

const (
	KindPoolInactive        Kind = "pool_inactive"
	KindPoolAlreadyExists   Kind = "pool_already_exists"
	KindPoolCapacityReached Kind = "pool_capacity_reached"
	KindNoAvailableBrowser  Kind = "no_available_browser"
	KindLaunchFailed        Kind = "launch_failed"
	KindActionFailure       Kind = "action_failure"
	KindTimeout             Kind = "timeout"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindInvalidSessionID    Kind = "invalid_session_id"
	KindPageSessionNotFound Kind = "page_session_not_found"
	KindBadParams           Kind = "bad_params"
)

// Error is the single error type used across the core. Cause, when set, is
// the underlying driver or system error being wrapped.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts a *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var pe *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			pe = e
			return pe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}
