// Package errdefs defines the error taxonomy shared by the console core.
// Every failure carries the name of the operation that produced it so the
// UI can attribute it to the specific action the operator attempted.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput covers malformed documents, missing required
	// simulation fields and duplicate permission codes. Always detected
	// locally, before any gateway round trip.
	KindInvalidInput
	// KindInvalidParent covers role hierarchy edits that would violate
	// acyclicity or reference a role outside the service.
	KindInvalidParent
	// KindNotEditable covers mutations of non-draft policy versions.
	KindNotEditable
	// KindNotFound covers references to roles, permissions or versions
	// that do not belong to the given service or tenant.
	KindNotFound
	// KindConflict covers concurrent-edit collisions, e.g. publishing a
	// version that is already the active one.
	KindConflict
	// KindUnavailable covers gateway connection failures.
	KindUnavailable
	// KindTimeout covers gateway requests that exceeded their deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidParent:
		return "invalid_parent"
	case KindNotEditable:
		return "not_editable"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the concrete error type produced by the console core.
type Error struct {
	// Op names the operation that failed, e.g. "hierarchy.SetParent".
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(op string, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an operation name and kind to an underlying error. The
// underlying error remains reachable through errors.Unwrap.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithOp re-attributes err to op, preserving its kind. Used when a service
// surfaces a gateway error verbatim under the caller-facing operation name.
func WithOp(op string, err error) *Error {
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// KindOf extracts the Kind of err, or KindUnknown if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// OpOf extracts the operation name of err, if any.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsInvalidInput reports whether err is an invalid-input error.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsInvalidParent reports whether err is an invalid-parent error.
func IsInvalidParent(err error) bool { return KindOf(err) == KindInvalidParent }

// IsNotEditable reports whether err is a not-editable error.
func IsNotEditable(err error) bool { return KindOf(err) == KindNotEditable }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsUnavailable reports whether err is an unavailable error.
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }

// IsTimeout reports whether err is a timeout error.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }
