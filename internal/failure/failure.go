// Package failure classifies the errors a user action can end with so the
// distinction between network, decode and recorder problems survives all the
// way to the caller.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the user-visible class of a failure.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindInvalid             Kind = "invalid_input"
	KindFetch               Kind = "fetch"
	KindDecode              Kind = "decode"
	KindRecorderUnavailable Kind = "recorder_unavailable"
	KindEncoding            Kind = "encoding"
	KindTimeout             Kind = "timeout"
	KindBusy                Kind = "busy"
	KindCanceled            Kind = "canceled"
	KindOverloaded          Kind = "overloaded"
)

// Sentinels usable with errors.Is.
var (
	ErrInvalid             = errors.New("invalid input")
	ErrFetch               = errors.New("image fetch failed")
	ErrDecode              = errors.New("image decode failed")
	ErrRecorderUnavailable = errors.New("recorder unavailable")
	ErrEncoding            = errors.New("encoding failed")
	ErrTimeout             = errors.New("recorder did not stop in time")
	ErrBusy                = errors.New("operation already in progress")
	ErrOverloaded          = errors.New("insufficient resources")
)

var sentinels = map[Kind]error{
	KindInvalid:             ErrInvalid,
	KindFetch:               ErrFetch,
	KindDecode:              ErrDecode,
	KindRecorderUnavailable: ErrRecorderUnavailable,
	KindEncoding:            ErrEncoding,
	KindTimeout:             ErrTimeout,
	KindBusy:                ErrBusy,
	KindCanceled:            context.Canceled,
	KindOverloaded:          ErrOverloaded,
}

// Error carries a Kind, the operation that failed and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New wraps err with kind and op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf formats a cause and wraps it with kind and op.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err. Context errors that were not wrapped are
// classified as canceled or timeout.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}

// Retryable reports whether the user can reasonably trigger the action again
// without changing the input.
func Retryable(k Kind) bool {
	switch k {
	case KindFetch, KindTimeout, KindBusy, KindCanceled, KindOverloaded, KindEncoding:
		return true
	}
	return false
}
