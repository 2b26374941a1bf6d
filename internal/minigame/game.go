package minigame

import (
	"time"

	"github.com/roach88/waypoint/internal/session"
)

// Phase is the state of a timed game.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRoundActive
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRoundActive:
		return "round_active"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// EventType describes a transition reported by a timed game.
type EventType string

const (
	EventSpawned   EventType = "spawned"
	EventHit       EventType = "hit"
	EventTimeout   EventType = "timeout"
	EventMismatch  EventType = "mismatch"
	EventCompleted EventType = "completed"
)

// Event is reported to a game's listener on every transition.
type Event struct {
	Type     EventType
	Attempt  int
	Round    int
	Deadline time.Time
}

// Listener receives game events. It is called without the game's lock held.
type Listener func(Event)

// Game is a stateful, timed challenge instance scoped to one scene visit.
type Game interface {
	// Start begins a new attempt, cancelling any pending timer.
	Start()
	// Cancel abandons the game. No partial credit persists.
	Cancel()
	Phase() Phase
	Done() bool
	Record(now time.Time) session.FlagRecord
}
