package cli

import (
	"fmt"
	"os"

	"github.com/nopcorn/rascalrunner/errors"
)

// ErrorHandler turns coded errors into actionable messages on stderr.
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle prints a message appropriate to the error's code and returns the
// error unchanged so the caller still controls the exit signal.
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeAuth:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "The token was rejected or lacks required scopes. Run 'rascalrunner recon' to inspect it.\n")

	case errors.ErrCodeCleanupPartial:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if rascalErr, ok := err.(*errors.RascalError); ok {
			if remaining, ok := rascalErr.Details["remaining"].([]string); ok {
				fmt.Fprintf(os.Stderr, "Remove these manually before the engagement window closes:\n")
				for _, desc := range remaining {
					fmt.Fprintf(os.Stderr, "  - %s\n", desc)
				}
			}
		}

	case errors.ErrCodeRunNotFound:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "The workflow never triggered. Check that its 'on:' block fires on push.\n")

	case errors.ErrCodeWorkflowInvalid:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Fix the workflow file before deploying; nothing was sent to the platform.\n")

	case errors.ErrCodeConfigNotFound, errors.ErrCodeConfigInvalid:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}

	if h.Verbose {
		if rascalErr, ok := err.(*errors.RascalError); ok {
			fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", rascalErr.ToJSON())
		}
	}
	return err
}
