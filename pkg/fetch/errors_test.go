package fetch

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "with plugin name",
			err: &Error{
				Kind:    KindPluginRequestWillFetch,
				Details: Details{ThrownError: errors.New("boom"), PluginName: "auth"},
			},
			expected: `plugin-error-request-will-fetch (plugin "auth"): boom`,
		},
		{
			name: "without plugin name",
			err: &Error{
				Kind:    KindPluginRequestWillFetch,
				Details: Details{ThrownError: errors.New("boom")},
			},
			expected: "plugin-error-request-will-fetch: boom",
		},
		{
			name:     "kind only",
			err:      &Error{Kind: KindInvalidRequest},
			expected: "invalid-request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := fmt.Errorf("outer: %w", &Error{
		Kind:    KindPluginRequestWillFetch,
		Details: Details{ThrownError: cause},
	})

	if !errors.Is(err, cause) {
		t.Error("errors.Is() = false, want true")
	}
	if !IsKind(err, KindPluginRequestWillFetch) {
		t.Error("IsKind() = false, want true")
	}
	if IsKind(err, KindInvalidRequest) {
		t.Error("IsKind() matched the wrong kind")
	}
	if IsKind(cause, KindPluginRequestWillFetch) {
		t.Error("IsKind() matched a plain error")
	}
}

func TestPanicError(t *testing.T) {
	err := &PanicError{Value: "boom"}
	if err.Error() != "panic: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
