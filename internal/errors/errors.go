package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type for the knowledge service. It carries
// a stable code, a category for propagation decisions, and the underlying
// cause for error-chain support.
type Error struct {
	// Code is the unique error code (e.g., "ERR_401_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (NotFound, Backend, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new Error with a formatted message and no cause.
func Newf(code string, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an Error from an existing error, preserving its message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates a missing-entity error.
func NotFound(entity, id string) *Error {
	return Newf(CodeNotFound, "%s not found: %s", entity, id).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// InvalidInput creates a validation error.
func InvalidInput(message string) *Error {
	return Newf(CodeInvalidInput, "%s", message)
}

// InvalidTransition creates an error for an FSM transition not permitted
// from the current state.
func InvalidTransition(state, trigger string) *Error {
	return Newf(CodeInvalidTransition, "no transition from state %q on trigger %q", state, trigger).
		WithDetail("state", state).
		WithDetail("trigger", trigger)
}

// ConcurrencyConflict creates an optimistic-version-mismatch error.
func ConcurrencyConflict(entity, id string, expected uint32) *Error {
	return Newf(CodeConcurrencyConflict, "%s %s modified concurrently (expected version %d)", entity, id, expected).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// DataCorruption creates an error for persisted JSON that fails to parse.
// The field name identifies what was corrupt; it is never silently repaired.
func DataCorruption(field string, cause error) *Error {
	return New(CodeDataCorrupt, fmt.Sprintf("stored %s failed to parse: %v", field, cause), cause).
		WithDetail("field", field)
}

// Backend wraps a SQL, vector-store, or embedding failure.
func Backend(code string, op string, cause error) *Error {
	return New(code, fmt.Sprintf("%s: %v", op, cause), cause).
		WithDetail("op", op)
}

// Internal creates an invariant-violation error.
func Internal(message string, cause error) *Error {
	return New(CodeInternal, message, cause)
}

// CategoryOf extracts the category from an error chain.
// Returns CategoryInternal for non-structured errors.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}

// CodeOf extracts the error code from an error chain.
// Returns empty string for non-structured errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether the error is a missing-entity error.
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// IsConflict reports whether the error is an optimistic concurrency conflict.
func IsConflict(err error) bool {
	return CategoryOf(err) == CategoryConcurrencyConflict
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
