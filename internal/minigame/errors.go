package minigame

import (
	"errors"
	"fmt"

	"github.com/roach88/waypoint/internal/story"
)

// RejectionCode categorizes a failed challenge attempt.
type RejectionCode string

const (
	CodeEmptyInput      RejectionCode = "EMPTY_INPUT"
	CodeWrongCode       RejectionCode = "WRONG_CODE"
	CodeOutOfRange      RejectionCode = "OUT_OF_RANGE"
	CodeNoFix           RejectionCode = "NO_FIX"
	CodeWrongChoice     RejectionCode = "WRONG_CHOICE"
	CodeIncomplete      RejectionCode = "INCOMPLETE"
	CodeNotFinished     RejectionCode = "NOT_FINISHED"
	CodeUnknownOption   RejectionCode = "UNKNOWN_OPTION"
	CodeUnsupportedKind RejectionCode = "UNSUPPORTED_KIND"
)

// Rejection is a local validation failure. It carries no state change.
type Rejection struct {
	Kind    story.Kind
	Code    RejectionCode
	Message string
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
}

func reject(kind story.Kind, code RejectionCode, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a local validation failure.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// RejectionCodeOf returns the rejection code of err, or "".
func RejectionCodeOf(err error) RejectionCode {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Code
	}
	return ""
}

// ErrNotActive is returned when input arrives for a game that is not
// waiting for it.
var ErrNotActive = errors.New("minigame: no round active")
