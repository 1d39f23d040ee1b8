package poolerr

import (
	"errors"
	"testing"
)

func TestErrorMessageIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindLaunchFailed, "launch browser", cause)

	msg := err.Error()
	if msg != "launch_failed: launch browser: connection refused" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestErrorMessageOmitsCauseWhenAbsent(t *testing.T) {
	err := New(KindPoolInactive, "pool-123")

	msg := err.Error()
	if msg != "pool_inactive: pool-123" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindActionFailure, "click", cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected Unwrap to return the wrapped cause")
	}
}

func TestAsFindsWrappedPoolError(t *testing.T) {
	inner := New(KindTimeout, "navigate")
	outer := fmtWrapError(inner)

	found, ok := As(outer)
	if !ok {
		t.Fatalf("expected As to find the wrapped *Error")
	}
	if found.Kind != KindTimeout {
		t.Fatalf("expected kind %q, got %q", KindTimeout, found.Kind)
	}
}

func TestAsReturnsFalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	if ok {
		t.Fatalf("expected As to return false for a non-poolerr error")
	}
}

// fmtWrapError simulates a caller wrapping a *Error with fmt.Errorf's %w,
// which the real std library supports via an Unwrap() error method.
func fmtWrapError(inner error) error {
	return &unwrapper{inner: inner}
}

type unwrapper struct{ inner error }

func (u *unwrapper) Error() string { return "wrapped: " + u.inner.Error() }
func (u *unwrapper) Unwrap() error { return u.inner }
