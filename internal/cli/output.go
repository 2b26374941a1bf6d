package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/waypoint/internal/authguard"
	"github.com/roach88/waypoint/internal/engine"
	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/syncclient"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Refused action, invalid story, failed scenario
	ExitCommandError = 2 // Command error (invalid paths, authority unreachable, etc.)
)

// Error codes reported in CLIError.Code for failures that are not a
// domain refusal.
const (
	ErrCodeGeneric     = "E_ERROR"
	ErrCodeNotFound    = "E_NOT_FOUND"
	ErrCodeInvalid     = "E_INVALID_STORY"
	ErrCodeNoProfile   = "E_NO_PROFILE"
	ErrCodeUnavailable = "E_UNAVAILABLE"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
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

// errorCode maps a refused action to the code shown to the player.
func errorCode(err error) string {
	var remote *syncclient.RemoteError
	switch {
	case engine.CodeOf(err) != "":
		return string(engine.CodeOf(err))
	case minigame.IsRejection(err):
		return string(minigame.RejectionCodeOf(err))
	case authguard.IsLocked(err):
		return "LOCKED"
	case errors.Is(err, minigame.ErrNotActive):
		return "NOT_ACTIVE"
	case errors.Is(err, syncclient.ErrNotAuthenticated):
		return "NOT_AUTHENTICATED"
	case errors.Is(err, syncclient.ErrBusy):
		return "BUSY"
	case errors.Is(err, syncclient.ErrInvalidPIN):
		return "INVALID_PIN"
	case errors.As(err, &remote) && remote.Code != "":
		return remote.Code
	case errors.As(err, &remote):
		return ErrCodeUnavailable
	default:
		return ErrCodeGeneric
	}
}

// missingFlags extracts the flags an act gate still needs, if any.
func missingFlags(err error) []string {
	var re *engine.RuntimeError
	if errors.As(err, &re) && len(re.Missing) > 0 {
		return re.Missing
	}
	return syncclient.MissingFlags(err)
}

// refuse reports a refused action and returns the matching exit error.
func refuse(f *OutputFormatter, err error) error {
	code := errorCode(err)
	var details any
	if missing := missingFlags(err); len(missing) > 0 {
		details = map[string]any{"missing": missing}
	}
	if outErr := f.Error(code, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, code, err)
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
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "WRONG_CODE", "E_NOT_FOUND", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Render outputs data as a JSON response, or hands the writer to text for
// human-readable output.
func (f *OutputFormatter) Render(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	text(f.Writer)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
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

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
