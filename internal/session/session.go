package session

import (
	"time"
)

// Flag record statuses written by the minigame validators.
const (
	StatusValidated = "validated"
	StatusCompleted = "completed"
	StatusWon       = "won"
	StatusChosen    = "chosen"
)

// FlagRecord is the immutable record stored under a progress flag key.
// Besides status and validated_at it carries kind-specific fields such as
// hits, choice_id, sequence or lat/lng.
type FlagRecord map[string]any

// Status returns the record's status field, or "" if absent.
func (r FlagRecord) Status() string {
	s, _ := r["status"].(string)
	return s
}

// ValidatedAt returns the parsed validated_at timestamp.
func (r FlagRecord) ValidatedAt() (time.Time, bool) {
	switch v := r["validated_at"].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// Session is one player's progress through the story graph.
type Session struct {
	CurrentAct    int                   `json:"current_act"`
	LastScene     *string               `json:"last_scene"`
	Branch        *string               `json:"branch,omitempty"`
	ProgressFlags map[string]FlagRecord `json:"progress_flags"`
	Choices       map[string]any        `json:"choices"`
	Inventory     map[string]any        `json:"inventory"`
	EndingChoice  *string               `json:"ending_choice"`
	EndedAt       *time.Time            `json:"ended_at"`
}

// New returns the all-default session created alongside a new profile.
func New() Session {
	return Session{
		CurrentAct:    1,
		ProgressFlags: map[string]FlagRecord{},
		Choices:       map[string]any{},
		Inventory:     map[string]any{},
	}
}

// HasFlag reports whether key is present in the progress flags.
func (s Session) HasFlag(key string) bool {
	_, ok := s.ProgressFlags[key]
	return ok
}

// FlagKeys returns the set of progress flag keys.
func (s Session) FlagKeys() map[string]bool {
	keys := make(map[string]bool, len(s.ProgressFlags))
	for k := range s.ProgressFlags {
		keys[k] = true
	}
	return keys
}

// Ended reports whether an ending has been chosen.
func (s Session) Ended() bool {
	return s.EndingChoice != nil
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := Session{
		CurrentAct:    s.CurrentAct,
		LastScene:     cloneString(s.LastScene),
		Branch:        cloneString(s.Branch),
		ProgressFlags: make(map[string]FlagRecord, len(s.ProgressFlags)),
		Choices:       cloneMap(s.Choices),
		Inventory:     cloneMap(s.Inventory),
		EndingChoice:  cloneString(s.EndingChoice),
	}
	for k, rec := range s.ProgressFlags {
		out.ProgressFlags[k] = FlagRecord(cloneMap(rec))
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	if out.CurrentAct < 1 {
		out.CurrentAct = 1
	}
	return out
}

// AsUpdate converts a full session, as returned by the authority, into an
// update. Nil scalars are treated as absent.
func (s Session) AsUpdate() Update {
	c := s.Clone()
	act := c.CurrentAct
	return Update{
		CurrentAct:    &act,
		LastScene:     c.LastScene,
		Branch:        c.Branch,
		ProgressFlags: c.ProgressFlags,
		Choices:       c.Choices,
		Inventory:     c.Inventory,
		EndingChoice:  c.EndingChoice,
		EndedAt:       c.EndedAt,
	}
}

// Update is a state delta. Nil pointer fields are absent; mapping fields are
// merged key by key.
type Update struct {
	CurrentAct    *int                  `json:"current_act,omitempty"`
	LastScene     *string               `json:"last_scene,omitempty"`
	Branch        *string               `json:"branch,omitempty"`
	ProgressFlags map[string]FlagRecord `json:"progress_flags,omitempty"`
	Choices       map[string]any        `json:"choices,omitempty"`
	Inventory     map[string]any        `json:"inventory,omitempty"`
	EndingChoice  *string               `json:"ending_choice,omitempty"`
	EndedAt       *time.Time            `json:"ended_at,omitempty"`
}

// String and Int build pointer values for Update literals.
func String(s string) *string { return &s }

// Int returns a pointer to n.
func Int(n int) *int { return &n }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
