package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is a refused event. It never changes the session.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Missing lists the flags an act advance still needs.
	Missing []string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeContentUpdated means the session points at content that no
	// longer exists; the player was moved to the first scene.
	ErrCodeContentUpdated RuntimeErrorCode = "CONTENT_UPDATED"

	// ErrCodeNoMinigame means the current scene has no challenge, or no
	// timed game is running.
	ErrCodeNoMinigame RuntimeErrorCode = "NO_MINIGAME"

	// ErrCodeActLocked means the next act's required flags are missing.
	ErrCodeActLocked RuntimeErrorCode = "ACT_LOCKED"

	// ErrCodeStaleTimer means a timer fired for a game that is no longer
	// active.
	ErrCodeStaleTimer RuntimeErrorCode = "STALE_TIMER"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s (missing %v)", e.Code, e.Message, e.Missing)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// CodeOf returns the runtime error code of err, or "".
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsActLocked reports a client-side gate refusal.
func IsActLocked(err error) bool {
	return CodeOf(err) == ErrCodeActLocked
}

// IsStaleTimer reports a timer from an abandoned game.
func IsStaleTimer(err error) bool {
	return CodeOf(err) == ErrCodeStaleTimer
}

func newRuntimeError(code RuntimeErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}
