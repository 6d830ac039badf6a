package errors

import (
	"fmt"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *RascalError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *RascalError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// WorkflowInvalid creates an invalid workflow file error
func WorkflowInvalid(path string, err error) *RascalError {
	return Wrap(err, ErrCodeWorkflowInvalid,
		fmt.Sprintf("workflow file '%s' does not contain valid YAML", path)).
		WithDetail("path", path)
}

// AuthDenied creates an authentication/authorization error
func AuthDenied(reason string) *RascalError {
	return New(ErrCodeAuth, fmt.Sprintf("authentication rejected: %s", reason))
}

// MissingScope creates an error for a token missing a required scope
func MissingScope(scope string) *RascalError {
	return New(ErrCodeAuth, fmt.Sprintf("token is missing the '%s' scope", scope)).
		WithDetail("scope", scope)
}

// NotFound creates a resource not found error
func NotFound(resource string) *RascalError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource)
}

// RateLimited creates a rate limit error carrying the platform's retry hint
func RateLimited(retryAfter time.Duration) *RascalError {
	return New(ErrCodeRateLimited, "platform rate limit exceeded").
		WithDetail("retryAfter", retryAfter.String())
}

// Transient creates a retryable transport or server error
func Transient(err error) *RascalError {
	return Wrap(err, ErrCodeTransient, "transient platform failure")
}

// DeployRejected creates a non-retryable deployment rejection error
func DeployRejected(branch string, err error) *RascalError {
	return Wrap(err, ErrCodeDeployRejected,
		fmt.Sprintf("platform rejected the workflow commit to '%s'", branch)).
		WithDetail("branch", branch)
}

// BranchExhausted creates an error for exhausted branch name attempts
func BranchExhausted(attempts int) *RascalError {
	return New(ErrCodeBranchExhausted,
		fmt.Sprintf("could not create a unique branch after %d attempts", attempts)).
		WithDetail("attempts", attempts)
}

// RunNotFound creates an error for a run that never appeared
func RunNotFound(branch string, waited time.Duration) *RascalError {
	return New(ErrCodeRunNotFound,
		fmt.Sprintf("no workflow run appeared for branch '%s' within %s", branch, waited)).
		WithDetail("branch", branch).
		WithDetail("waited", waited.String())
}

// RunTimedOut creates an error for a run still live after the wait budget
func RunTimedOut(runID int64, lastStatus string, waited time.Duration) *RascalError {
	return New(ErrCodeRunTimedOut,
		fmt.Sprintf("run %d still '%s' after %s", runID, lastStatus, waited)).
		WithDetail("runId", runID).
		WithDetail("lastStatus", lastStatus).
		WithDetail("waited", waited.String())
}

// CleanupPartial creates an error listing obligations that could not be removed
func CleanupPartial(remaining []string) *RascalError {
	return New(ErrCodeCleanupPartial,
		fmt.Sprintf("%d cleanup obligation(s) could not be removed - manual intervention required", len(remaining))).
		WithDetail("remaining", remaining)
}
