package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrInterrupted   ErrorCode = "INTERRUPTED"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Lock file errors
	ErrLockIO      ErrorCode = "LOCK_IO"
	ErrLockParse   ErrorCode = "LOCK_PARSE"
	ErrNoUndoPoint ErrorCode = "NO_UNDO_POINT"

	// Input selection errors
	ErrEmptySelection ErrorCode = "EMPTY_SELECTION"
	ErrUpdate         ErrorCode = "UPDATE"

	// Build and deploy errors
	ErrBuild       ErrorCode = "BUILD"
	ErrBuildOutput ErrorCode = "BUILD_OUTPUT"
	ErrDeploy      ErrorCode = "DEPLOY"

	// Version control errors
	ErrVCS ErrorCode = "VCS"

	// Safety analysis errors
	ErrSessions ErrorCode = "SESSIONS"
	ErrDiff     ErrorCode = "DIFF"

	// Strategy errors
	ErrStepNotFound   ErrorCode = "STEP_NOT_FOUND"
	ErrStrategyCycle  ErrorCode = "STRATEGY_CYCLE"
	ErrStrategyFailed ErrorCode = "STRATEGY_FAILED"
)

// fatalCodes stop a run immediately; every other code is a step failure the
// strategy engine may recover from.
var fatalCodes = map[ErrorCode]bool{
	ErrLockIO:      true,
	ErrNoUndoPoint: true,
	ErrInternal:    true,
}

// UpdateError represents a structured error with code and details
type UpdateError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *UpdateError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *UpdateError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *UpdateError) Is(target error) bool {
	var targetErr *UpdateError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new UpdateError with the given code and message
func New(code ErrorCode, message string) *UpdateError {
	return &UpdateError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new UpdateError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *UpdateError {
	return &UpdateError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an UpdateError
func Wrap(err error, code ErrorCode, message string) *UpdateError {
	if err == nil {
		return nil
	}
	return &UpdateError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *UpdateError {
	if err == nil {
		return nil
	}
	return &UpdateError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *UpdateError) WithDetail(key string, value interface{}) *UpdateError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var updErr *UpdateError
	if errors.As(err, &updErr) {
		return updErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not an UpdateError
func GetErrorCode(err error) ErrorCode {
	var updErr *UpdateError
	if errors.As(err, &updErr) {
		return updErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not an UpdateError
func GetErrorDetails(err error) map[string]interface{} {
	var updErr *UpdateError
	if errors.As(err, &updErr) {
		return updErr.Details
	}
	return nil
}

// IsFatal reports whether err carries a code that must stop the run without
// attempting recovery. Any wrapped UpdateError in the chain counts.
func IsFatal(err error) bool {
	for err != nil {
		var updErr *UpdateError
		if !errors.As(err, &updErr) {
			return false
		}
		if fatalCodes[updErr.Code] {
			return true
		}
		err = updErr.Wrapped
	}
	return false
}
