package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"duplicate name", ErrDuplicateName, true},
		{"component not found", ErrComponentNotFound, true},
		{"dangling link", ErrDanglingLink, true},
		{"cyclic link", ErrCyclicLink, true},
		{"unknown type", ErrUnknownType, true},
		{"duplicate registration", ErrDuplicateRegistration, true},
		{"invalid type", ErrInvalidType, true},
		{"out of range", ErrOutOfRange, true},
		{"locked", ErrLocked, true},
		{"unknown signal", ErrUnknownSignal, true},
		{"argument mismatch", ErrArgumentMismatch, true},
		{"protocol error", ErrProtocolError, true},
		{"wrapped sentinel", fmt.Errorf("option store: %w", ErrOutOfRange), true},
		{"network disconnected", ErrNetworkDisconnected, false},
		{"plain error", fmt.Errorf("something else"), false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"network disconnected", ErrNetworkDisconnected, true},
		{"reply timeout", ErrReplyTimeout, true},
		{"store unavailable", ErrStoreUnavailable, true},
		{"revision conflict", ErrRevisionConflict, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"argument mismatch", ErrArgumentMismatch, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network unreachable"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"duplicate name", ErrDuplicateName, ErrorInvalid},
		{"unknown signal wrapped", fmt.Errorf("dispatch: %w", ErrUnknownSignal), ErrorInvalid},
		{"network disconnected", ErrNetworkDisconnected, ErrorTransient},
		{"fatal message", fmt.Errorf("data corrupted beyond repair"), ErrorFatal},
		{"unknown error defaults transient", fmt.Errorf("mystery"), ErrorTransient},
		{"classified wins", &ClassifiedError{Class: ErrorFatal, Err: ErrDuplicateName}, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify_InvalidWinsOverTransientPatterns(t *testing.T) {
	// Sentinel membership must beat message heuristics: this message contains
	// "connection" but the wrapped sentinel is a contract violation.
	err := fmt.Errorf("connection handler: %w", ErrArgumentMismatch)
	if got := Classify(err); got != ErrorInvalid {
		t.Errorf("expected invalid, got %v", got)
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(base, "optionStore", "Configure", "range check")

	expected := "optionStore.Configure: range check failed: boom"
	if wrapped.Error() != expected {
		t.Errorf("expected %q, got %q", expected, wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to base")
	}
	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name     string
		wrap     func(error, string, string, string) error
		expected ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.wrap(base, "gateway", "Dispatch", "frame decode")
			if err == nil {
				t.Fatal("expected non-nil error")
			}

			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatal("expected ClassifiedError")
			}
			if ce.Class != test.expected {
				t.Errorf("expected class %v, got %v", test.expected, ce.Class)
			}
			if ce.Component != "gateway" || ce.Operation != "Dispatch" {
				t.Errorf("context not preserved: %+v", ce)
			}
			if !errors.Is(err, base) {
				t.Error("classified error should unwrap to base")
			}
			if !strings.Contains(err.Error(), "frame decode failed") {
				t.Errorf("message missing action: %s", err.Error())
			}

			if test.wrap(nil, "a", "b", "c") != nil {
				t.Error("wrapping nil should return nil")
			}
		})
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	rc := DefaultRetryConfig()

	tests := []struct {
		name     string
		err      error
		attempt  int
		expected bool
	}{
		{"nil error", nil, 0, false},
		{"transient within budget", ErrNetworkDisconnected, 0, true},
		{"transient at limit", ErrNetworkDisconnected, 3, false},
		{"invalid never retries", ErrArgumentMismatch, 0, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := rc.ShouldRetry(test.err, test.attempt)
			if result != test.expected {
				t.Errorf("expected %v, got %v", test.expected, result)
			}
		})
	}
}

func TestRetryConfig_RetryableErrorsFilter(t *testing.T) {
	rc := DefaultRetryConfig()
	rc.RetryableErrors = []error{ErrReplyTimeout}

	if !rc.ShouldRetry(fmt.Errorf("call: %w", ErrReplyTimeout), 0) {
		t.Error("listed error should retry")
	}
	if rc.ShouldRetry(ErrNetworkDisconnected, 0) {
		t.Error("unlisted transient should not retry when filter is set")
	}
}

func TestRetryConfig_BackoffDelay(t *testing.T) {
	rc := RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second},
		{10, 1 * time.Second},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("attempt_%d", test.attempt), func(t *testing.T) {
			result := rc.BackoffDelay(test.attempt)
			if result != test.expected {
				t.Errorf("expected %v, got %v", test.expected, result)
			}
		})
	}
}

func TestRetryConfig_ToRetryConfig(t *testing.T) {
	rc := RetryConfig{
		MaxRetries:    4,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 3.0,
	}

	cfg := rc.ToRetryConfig()
	if cfg.MaxAttempts != 5 {
		t.Errorf("expected 5 total attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != rc.InitialDelay || cfg.MaxDelay != rc.MaxDelay {
		t.Errorf("delays not carried over: %+v", cfg)
	}
	if !cfg.AddJitter {
		t.Error("jitter should be enabled")
	}
}
