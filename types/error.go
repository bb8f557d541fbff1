package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the platform.
type ErrorCode string

// Workflow error codes
const (
	ErrTemplateNotFound   ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrWorkflowNotFound   ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrStepTimeout        ErrorCode = "STEP_TIMEOUT"
	ErrHandlerNotFound    ErrorCode = "HANDLER_NOT_FOUND"
	ErrUnknownTask        ErrorCode = "UNKNOWN_TASK"
	ErrUnknownMessage     ErrorCode = "UNKNOWN_MESSAGE"
)

// Process error codes
const (
	ErrProcessNotFound       ErrorCode = "PROCESS_NOT_FOUND"
	ErrResourceAllocation    ErrorCode = "RESOURCE_ALLOCATION"
	ErrRestartLimitExceeded  ErrorCode = "RESTART_LIMIT_EXCEEDED"
	ErrAllocationNotFound    ErrorCode = "ALLOCATION_NOT_FOUND"
	ErrManagerStopped        ErrorCode = "MANAGER_STOPPED"
	ErrInternalError         ErrorCode = "INTERNAL_ERROR"
	ErrInvalidConfig         ErrorCode = "INVALID_CONFIG"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
