package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"

	"github.com/abgdnv/pos/internal/cart"
	"github.com/abgdnv/pos/internal/checkout"
	"github.com/abgdnv/pos/internal/ledgerclient"
	"github.com/abgdnv/pos/internal/reconcile"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The ledger or a validation rule rejected the action
	ExitCommandError = 2 // Command error (bad config, local store unusable, ledger unreachable)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric      = "E000"
	ErrCodeRejected     = "E001"
	ErrCodeUnavailable  = "E002"
	ErrCodeInvalidInput = "E003"
	ErrCodeNotFound     = "E004"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	text(f.Writer)
	return nil
}

// Message outputs a one-line confirmation.
func (f *OutputFormatter) Message(msg string) error {
	return f.Success(map[string]string{"message": msg}, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, msg)
	})
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	_, _ = fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if fields, ok := details.(map[string]string); ok {
		for _, field := range slices.Sorted(maps.Keys(fields)) {
			_, _ = fmt.Fprintf(f.Writer, "  %s: %s\n", field, fields[field])
		}
	} else if f.Verbose && details != nil {
		_, _ = fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should end with.
func (f *OutputFormatter) Fail(err error) error {
	code, message, details, exit := classify(err)
	if outErr := f.Error(code, message, details); outErr != nil {
		return outErr
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return WrapExitError(exit, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

// classify maps err to an error code, a message for the operator and an exit code.
func classify(err error) (code, message string, details any, exit int) {
	var (
		apiErr  *ledgerclient.APIError
		vErr    *cart.ValidationError
		formErr *checkout.FormError
		exitErr *ExitError
	)
	switch {
	case errors.As(err, &formErr):
		return ErrCodeInvalidInput, "Please correct the checkout form.", formErr.Fields, ExitFailure
	case errors.As(err, &vErr):
		return ErrCodeInvalidInput, vErr.Error(), nil, ExitFailure
	case errors.Is(err, checkout.ErrEmptyCart):
		return ErrCodeInvalidInput, checkout.MsgEmptyCart, nil, ExitFailure
	case errors.Is(err, reconcile.ErrInvalidAmount):
		return ErrCodeInvalidInput, reconcile.MsgInvalidAmount, nil, ExitFailure
	case errors.Is(err, reconcile.ErrNotFound):
		return ErrCodeNotFound, reconcile.MsgNotFound, nil, ExitFailure
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Status == http.StatusNotFound:
			return ErrCodeNotFound, apiErr.Message, nil, ExitFailure
		case apiErr.Status >= http.StatusInternalServerError:
			return ErrCodeUnavailable, apiErr.Message, nil, ExitCommandError
		default:
			return ErrCodeRejected, apiErr.Message, nil, ExitFailure
		}
	case errors.Is(err, ledgerclient.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeUnavailable, reconcile.Describe(err), nil, ExitCommandError
	case errors.As(err, &exitErr):
		return ErrCodeGeneric, exitErr.Error(), nil, exitErr.Code
	default:
		return ErrCodeUnavailable, err.Error(), nil, ExitCommandError
	}
}
