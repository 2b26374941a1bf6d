// Package api holds the JSON bodies exchanged between the sync client and
// the remote authority.
package api

import (
	"github.com/roach88/waypoint/internal/geo"
	"github.com/roach88/waypoint/internal/session"
)

// Paths served by the authority.
const (
	PathStatus   = "/status"
	PathStory    = "/story"
	PathProfile  = "/profile"
	PathSession  = "/session"
	PathMinigame = "/minigame/{kind}"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeBadPIN       = "BAD_PIN"
	CodeUnknown      = "UNKNOWN_TRAINER"
	CodeMissingFlags = "MISSING_FLAGS"
	CodeRejected     = "REJECTED"
	CodeDisabled     = "DISABLED"
	CodeInternal     = "INTERNAL"
	CodeKindMismatch = "KIND_MISMATCH"
	CodeUnknownScene = "UNKNOWN_SCENE"
	CodeInvalidAct   = "INVALID_ACT"
	CodeServerOwned  = "SERVER_OWNED"
	CodeEnded        = "ENDED"
)

// StatusResponse is the feature flag gate.
type StatusResponse struct {
	Enabled bool `json:"enabled"`
}

// ProfileRequest establishes or resumes a profile.
type ProfileRequest struct {
	TrainerName     string         `json:"trainer_name"`
	PIN             string         `json:"pin"`
	CreateIfMissing bool           `json:"create_if_missing"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Event is the optional record sent alongside a state patch.
type Event struct {
	ID   string         `json:"id"`
	Seq  int64          `json:"seq"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// SessionRequest patches the session. Reset replaces the stored session
// with the default one before State is applied.
type SessionRequest struct {
	ProfileID string          `json:"profile_id"`
	PIN       string          `json:"pin"`
	State     *session.Update `json:"state,omitempty"`
	Event     *Event          `json:"event,omitempty"`
	Reset     bool            `json:"reset,omitempty"`
}

// MinigameRequest submits a challenge result for re-validation. Only the
// fields for the scene's kind are read. Record carries the client's flag
// record for timed games the authority cannot replay.
type MinigameRequest struct {
	ProfileID string             `json:"profile_id"`
	PIN       string             `json:"pin"`
	SceneID   string             `json:"scene_id"`
	Code      string             `json:"code,omitempty"`
	Position  *geo.Point         `json:"position,omitempty"`
	ChoiceID  string             `json:"choice_id,omitempty"`
	Answers   map[string]string  `json:"answers,omitempty"`
	Record    session.FlagRecord `json:"record,omitempty"`
	Event     *Event             `json:"event,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string   `json:"code"`
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}
