package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/auth"
	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/checkout"
	"github.com/roach88/shrimpzone/internal/config"
	"github.com/roach88/shrimpzone/internal/session"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran and failed (rejected by the server, invalid form, empty cart)
	ExitCommandError = 2 // The command could not run (bad flags, unreadable config, database unavailable)
)

// ExitError carries an exit code alongside an error.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported marks errors whose details were already written as the
	// command's output; only the exit code remains to be applied.
	Reported bool
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

// reportedExitError returns an ExitFailure that is not printed again.
func reportedExitError(message string) *ExitError {
	return &ExitError{Code: ExitFailure, Message: message, Reported: true}
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

// Error codes reported in JSON output for failures that are not API errors.
const (
	CodeValidation = "VALIDATION"
	CodeEmptyCart  = "EMPTY_CART"
	CodeNotInCart  = "NOT_IN_CART"
	CodeNoSession  = "NO_SESSION"
	CodeLoginStep  = "LOGIN_STEP"
	CodeCancelled  = "CANCELLED"
	CodeError      = "ERROR"
)

// ErrorCode classifies err for machine-readable output.
func ErrorCode(err error) string {
	if code := api.CodeOf(err); code != "" {
		return string(code)
	}
	var verr *checkout.ValidationError
	var lerr *config.LoadError
	switch {
	case errors.As(err, &verr):
		return CodeValidation
	case errors.As(err, &lerr):
		return string(lerr.Code)
	case errors.Is(err, checkout.ErrEmptyCart):
		return CodeEmptyCart
	case errors.Is(err, cart.ErrNotInCart):
		return CodeNotInCart
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrExpired):
		return CodeNoSession
	case errors.Is(err, auth.ErrWrongStep):
		return CodeLoginStep
	case api.IsContextError(err):
		return CodeCancelled
	}
	return CodeError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // API error code or one of the Code* constants
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Render writes data as JSON, or calls text to write the human-readable form.
func (f *OutputFormatter) Render(data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	return text(f.Writer)
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

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
