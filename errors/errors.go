// Package errors provides the error taxonomy and classification helpers used
// across the simkernel runtime. It defines one sentinel per contract violation
// the kernel can report, a three-class severity model, and wrapping helpers
// that attach component/operation context in a uniform format.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360/simkernel/pkg/retry"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or contract violations
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables. The first group is the runtime taxonomy: every
// contract violation the tree, registry, option store, signal dispatcher and
// wire transport can report maps to exactly one of these sentinels, so callers
// can branch with errors.Is regardless of how many times the error was wrapped
// on its way up.
var (
	// Component tree errors
	ErrDuplicateName     = errors.New("duplicate component name")
	ErrComponentNotFound = errors.New("component not found")
	ErrDanglingLink      = errors.New("link target does not resolve")
	ErrCyclicLink        = errors.New("link chain exceeds hop limit")

	// Registry errors
	ErrUnknownType           = errors.New("unknown component type")
	ErrDuplicateRegistration = errors.New("type already registered")

	// Option store errors
	ErrInvalidType     = errors.New("value type mismatch")
	ErrOutOfRange      = errors.New("value outside allowed range")
	ErrLocked          = errors.New("option locked after first set")
	ErrUnknownOption   = errors.New("unknown option")
	ErrUnknownProperty = errors.New("unknown property")

	// Signal dispatch errors
	ErrUnknownSignal    = errors.New("unknown signal")
	ErrArgumentMismatch = errors.New("signal argument mismatch")

	// Wire transport errors
	ErrProtocolError       = errors.New("malformed frame")
	ErrNetworkDisconnected = errors.New("connection lost")
	ErrReplyTimeout        = errors.New("reply timeout")
	ErrFrameTooLarge       = errors.New("frame exceeds size limit")
	ErrConnectionUnhealthy = errors.New("connection unhealthy")
	ErrSubscriptionFailed  = errors.New("subscription failed")

	// Tree store errors
	ErrStoreUnavailable = errors.New("tree store unavailable")
	ErrRevisionConflict = errors.New("snapshot revision conflict")
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// Lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// invalidSentinels are the contract-violation sentinels: the caller supplied
// something the runtime's contract rejects, so retrying the identical call
// cannot succeed.
var invalidSentinels = []error{
	ErrDuplicateName,
	ErrComponentNotFound,
	ErrDanglingLink,
	ErrCyclicLink,
	ErrUnknownType,
	ErrDuplicateRegistration,
	ErrInvalidType,
	ErrOutOfRange,
	ErrLocked,
	ErrUnknownOption,
	ErrUnknownProperty,
	ErrUnknownSignal,
	ErrArgumentMismatch,
	ErrProtocolError,
	ErrFrameTooLarge,
	ErrSnapshotNotFound,
	ErrInvalidConfig,
	ErrMissingConfig,
}

// IsTransient checks if an error is transient and may succeed on retry
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrNetworkDisconnected) ||
		errors.Is(err, ErrReplyTimeout) ||
		errors.Is(err, ErrConnectionUnhealthy) ||
		errors.Is(err, ErrSubscriptionFailed) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrRevisionConflict) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	// Fall back to message inspection for errors from third-party layers
	// (NATS, websocket, net) that carry no sentinel we know.
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"busy",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsInvalid checks if an error is a contract violation that must not be retried
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	for _, sentinel := range invalidSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	errStr := strings.ToLower(err.Error())
	fatalPatterns := []string{
		"fatal",
		"panic",
		"corrupted",
		"out of memory",
		"disk full",
	}

	for _, pattern := range fatalPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// Classify returns the error class for an error. Contract violations win over
// the transient heuristics so a wrapped ErrUnknownSignal whose message happens
// to contain "connection" still classifies as invalid.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	if IsInvalid(err) {
		return ErrorInvalid
	}
	if IsFatal(err) {
		return ErrorFatal
	}

	// Default to transient for unknown errors to allow retry
	return ErrorTransient
}

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// RetryConfig defines configuration for retry operations
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []error
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		RetryableErrors: nil, // Empty list means retry all transient errors
	}
}

// ShouldRetry determines if an error should be retried based on config
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}

	if !IsTransient(err) {
		return false
	}

	if len(rc.RetryableErrors) > 0 {
		for _, retryableErr := range rc.RetryableErrors {
			if errors.Is(err, retryableErr) {
				return true
			}
		}
		return false
	}

	return true
}

// ToRetryConfig converts RetryConfig to the retry package's Config type so
// callers can hand classification-aware policies straight to retry.Do.
//
// The conversion adds 1 to MaxRetries (converting "additional attempts" to
// "total attempts") and enables jitter by default.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}

// BackoffDelay calculates the delay for a retry attempt
func (rc RetryConfig) BackoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}

	delay := rc.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * rc.BackoffFactor)
		if delay > rc.MaxDelay {
			delay = rc.MaxDelay
			break
		}
	}

	return delay
}
