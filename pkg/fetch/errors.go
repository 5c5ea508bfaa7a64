package fetch

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a fetch Error.
type Kind string

const (
	// KindPluginRequestWillFetch is reported when a requestWillFetch hook
	// fails. Nothing was dispatched.
	KindPluginRequestWillFetch Kind = "plugin-error-request-will-fetch"

	// KindInvalidRequest is reported when the request cannot be built from
	// the caller's input. Nothing was dispatched.
	KindInvalidRequest Kind = "invalid-request"
)

// ErrNoTransport is returned by New when the config has no transport.
var ErrNoTransport = errors.New("transport is required")

// Details carries the structured context of an Error.
type Details struct {
	// ThrownError is the error raised by the plugin or request builder.
	ThrownError error

	// PluginName names the offending plugin, when it has a name.
	PluginName string
}

// Error is the structured error returned by Fetch for failures that happen
// before dispatch. Dispatch errors are returned as-is and never wrapped.
type Error struct {
	Kind    Kind
	Details Details
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Details.PluginName != "" && e.Details.ThrownError != nil:
		return fmt.Sprintf("%s (plugin %q): %v", e.Kind, e.Details.PluginName, e.Details.ThrownError)
	case e.Details.ThrownError != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Details.ThrownError)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the thrown error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Details.ThrownError
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// PanicError is the ThrownError recorded when a requestWillFetch hook panics.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
