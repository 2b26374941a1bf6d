package minigame

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/waypoint/internal/geo"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// Input is what the player produced for a challenge. Only the fields
// relevant to the descriptor's kind are read.
type Input struct {
	Code     string            `json:"code,omitempty"`
	Position *geo.Point        `json:"position,omitempty"`
	ChoiceID string            `json:"choice_id,omitempty"`
	Answers  map[string]string `json:"answers,omitempty"`

	// Game is the finished reflex or pattern game being submitted.
	Game Game `json:"-"`
}

// Outcome is a successful validation.
type Outcome struct {
	Kind   story.Kind
	Flag   string
	Record session.FlagRecord

	// Ending is set by ending_choice.
	Ending string
	// Answers is set by quiz and recorded under Choices[Flag].
	Answers map[string]string
	At      time.Time
}

// Update returns the state delta that records the outcome.
func (o Outcome) Update() session.Update {
	u := session.Update{
		ProgressFlags: map[string]session.FlagRecord{o.Flag: o.Record},
	}
	if o.Ending != "" {
		at := o.At.UTC()
		u.EndingChoice = session.String(o.Ending)
		u.EndedAt = &at
	}
	if len(o.Answers) > 0 {
		answers := make(map[string]any, len(o.Answers))
		for k, v := range o.Answers {
			answers[k] = v
		}
		u.Choices = map[string]any{o.Flag: answers}
	}
	return u
}

// Validator checks one kind of challenge.
type Validator interface {
	Kind() story.Kind
	Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error)
}

// TokenSource produces audit tokens for client-confirmed challenges.
type TokenSource func() string

// UUIDTokens returns time-sortable UUIDv7 tokens.
func UUIDTokens() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Registry maps kinds to validators.
type Registry struct {
	validators map[story.Kind]Validator
}

// NewRegistry returns a registry holding every built-in validator. tokens
// may be nil, in which case UUIDTokens is used.
func NewRegistry(tokens TokenSource) *Registry {
	if tokens == nil {
		tokens = UUIDTokens
	}
	r := &Registry{validators: make(map[story.Kind]Validator)}
	for _, v := range []Validator{
		artifactCode{},
		mosaic{tokens: tokens},
		location{},
		reflexValidator{},
		patternValidator{},
		quiz{},
		riddle{},
		endingChoice{},
	} {
		r.Register(v)
	}
	return r
}

// Register adds or replaces the validator for v.Kind().
func (r *Registry) Register(v Validator) {
	r.validators[v.Kind()] = v
}

// Validate dispatches to the validator for desc.Kind.
func (r *Registry) Validate(desc story.Minigame, in Input, now time.Time) (Outcome, error) {
	v, ok := r.validators[desc.Kind]
	if !ok {
		return Outcome{}, reject(desc.Kind, CodeUnsupportedKind, "no validator for kind %q", desc.Kind)
	}
	return v.Validate(desc, in, now)
}

// newRecord starts a flag record with status and validated_at set.
func newRecord(status string, now time.Time) session.FlagRecord {
	return session.FlagRecord{
		"status":       status,
		"validated_at": now.UTC().Format(time.RFC3339Nano),
	}
}

func outcome(desc story.Minigame, rec session.FlagRecord, now time.Time) Outcome {
	return Outcome{Kind: desc.Kind, Flag: desc.SuccessFlag, Record: rec, At: now}
}
