package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/objgate/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (not found, denied, invalid input, backend error)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, driver setup)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// reported is set once the error has been written to the output.
	reported bool
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

// Reported reports whether the error was already written to the output.
func (e *ExitError) Reported() bool {
	return e.reported
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
	Code    string `json:"code"`              // error kind, e.g. "NOT_FOUND"
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
	return writeText(f.Writer, data)
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

// Fail reports err and returns the ExitError the command should return.
// Operation errors carry the structured {error, message, code} body.
func (f *OutputFormatter) Fail(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if !exitErr.reported {
			f.Error("command", exitErr.Error(), nil)
			exitErr.reported = true
		}
		return exitErr
	}

	body := ir.Body(err)
	if writeErr := f.Error(body.Error, body.Message, body); writeErr != nil {
		return WrapExitError(ExitCommandError, "writing output", writeErr)
	}
	return &ExitError{Code: ExitFailure, Message: body.Message, Err: err, reported: true}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// writeText renders results for humans: objects as canonical JSON, one per
// line; log entries as aligned columns.
func writeText(w io.Writer, data any) error {
	switch v := data.(type) {
	case ir.Object:
		return writeObject(w, v)
	case []ir.Object:
		for _, obj := range v {
			if err := writeObject(w, obj); err != nil {
				return err
			}
		}
		return nil
	case []ir.LogEntry:
		for _, e := range v {
			fmt.Fprintf(w, "%6d  %-6s  %s/%s  %s  %s",
				e.Seq, e.Action, e.Type, e.ObjectID, userOrDash(e.Meta.User),
				e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
			if e.Error != "" {
				fmt.Fprintf(w, "  error=%q", e.Error)
			}
			fmt.Fprintln(w)
		}
		return nil
	default:
		_, err := fmt.Fprintln(w, data)
		return err
	}
}

func writeObject(w io.Writer, obj ir.Object) error {
	if obj == nil {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func userOrDash(user string) string {
	if user == "" {
		return "-"
	}
	return user
}
