package syncclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBusy is returned when a session-mutating request is already in flight.
	ErrBusy = errors.New("sync: request in flight")
	// ErrNotAuthenticated is returned when no profile or credential is active.
	ErrNotAuthenticated = errors.New("sync: not authenticated")
	// ErrInvalidPIN is returned for a PIN that is not four digits. It does
	// not consume a guard attempt.
	ErrInvalidPIN = errors.New("sync: PIN must be four digits")
)

// RemoteError is a failed round trip to the authority. Status is 0 for
// network failures.
type RemoteError struct {
	Status  int
	Code    string
	Message string
	Missing []string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("authority unreachable: %v", e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("authority %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("authority %d %s", e.Status, e.Code)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteStatus(err error) (int, bool) {
	var re *RemoteError
	if !errors.As(err, &re) {
		return 0, false
	}
	return re.Status, true
}

// IsCredentialRejected reports a 401.
func IsCredentialRejected(err error) bool {
	s, ok := remoteStatus(err)
	return ok && s == http.StatusUnauthorized
}

// IsNotFound reports a 404 (unknown trainer).
func IsNotFound(err error) bool {
	s, ok := remoteStatus(err)
	return ok && s == http.StatusNotFound
}

// IsPrecondition reports a 409 (required flags missing).
func IsPrecondition(err error) bool {
	s, ok := remoteStatus(err)
	return ok && s == http.StatusConflict
}

// IsRejected reports a 422 (the authority refused a challenge result).
func IsRejected(err error) bool {
	s, ok := remoteStatus(err)
	return ok && s == http.StatusUnprocessableEntity
}

// IsTransient reports a network failure or 5xx. The caller may retry.
func IsTransient(err error) bool {
	s, ok := remoteStatus(err)
	return ok && (s == 0 || s >= 500)
}

// MissingFlags returns the flags named by a 409, or nil.
func MissingFlags(err error) []string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Missing
	}
	return nil
}
