package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Platform API failures
	ErrCodeAuth            ErrorCode = "AUTH_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeTransient       ErrorCode = "TRANSIENT"
	ErrCodePermanentClient ErrorCode = "PERMANENT_CLIENT_ERROR"

	// Session failures
	ErrCodeDeployRejected  ErrorCode = "DEPLOY_REJECTED"
	ErrCodeBranchExhausted ErrorCode = "BRANCH_CREATION_EXHAUSTED"
	ErrCodeRunNotFound     ErrorCode = "RUN_NOT_FOUND"
	ErrCodeRunTimedOut     ErrorCode = "RUN_TIMED_OUT"
	ErrCodeCleanupPartial  ErrorCode = "CLEANUP_PARTIAL_FAILURE"

	// Local failures
	ErrCodeConfigNotFound  ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid   ErrorCode = "CONFIG_INVALID"
	ErrCodeWorkflowInvalid ErrorCode = "WORKFLOW_INVALID"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// RascalError represents a structured error with context
type RascalError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *RascalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *RascalError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *RascalError) WithDetail(key string, value interface{}) *RascalError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *RascalError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new RascalError
func New(code ErrorCode, message string) *RascalError {
	return &RascalError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a RascalError
func Wrap(err error, code ErrorCode, message string) *RascalError {
	return &RascalError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific RascalError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	rascalErr, ok := err.(*RascalError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return rascalErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	rascalErr, ok := err.(*RascalError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return rascalErr.Code
}

// IsRetryable reports whether an error may succeed on a later attempt.
// Only rate limiting and transient platform failures qualify; all other
// codes propagate immediately.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrCodeRateLimited, ErrCodeTransient:
		return true
	}
	return false
}
