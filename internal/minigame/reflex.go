package minigame

import (
	"sync"
	"time"

	"github.com/roach88/waypoint/internal/clock"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// Reflex defaults.
const (
	DefaultReflexRounds = 5
	DefaultReflexWindow = 3500 * time.Millisecond
)

// Reflex is the focus challenge: N targets in a row, each hit before its
// countdown window elapses. A timeout sends the game back to Idle with the
// round counter reset; the player must start again.
type Reflex struct {
	mu       sync.Mutex
	clock    clock.Clock
	listener Listener
	rounds   int
	window   time.Duration

	phase    Phase
	hits     int
	attempt  int
	timer    clock.Timer
	deadline time.Time
}

// NewReflex builds a reflex game from a descriptor. Zero rounds or window
// fall back to the defaults.
func NewReflex(desc story.Minigame, clk clock.Clock, listener Listener) *Reflex {
	rounds := desc.Rounds
	if rounds <= 0 {
		rounds = DefaultReflexRounds
	}
	window := time.Duration(desc.WindowMS) * time.Millisecond
	if window <= 0 {
		window = DefaultReflexWindow
	}
	return &Reflex{clock: clk, listener: listener, rounds: rounds, window: window}
}

// Start begins a new attempt at round 0.
func (r *Reflex) Start() {
	r.mu.Lock()
	r.stopTimerLocked()
	r.attempt++
	r.hits = 0
	ev := r.spawnLocked()
	r.mu.Unlock()
	r.emit(ev)
}

// Hit registers a tap on the current target.
func (r *Reflex) Hit() (Event, error) {
	r.mu.Lock()
	if r.phase != PhaseRoundActive {
		r.mu.Unlock()
		return Event{}, ErrNotActive
	}
	if !r.clock.Now().Before(r.deadline) {
		// The timer has not been delivered yet but the window is gone. The
		// deadline itself is outside the window.
		ev := r.timeoutLocked()
		r.mu.Unlock()
		r.emit(ev)
		return ev, nil
	}

	r.stopTimerLocked()
	r.hits++
	hit := Event{Type: EventHit, Attempt: r.attempt, Round: r.hits}
	var next Event
	if r.hits >= r.rounds {
		r.phase = PhaseDone
		next = Event{Type: EventCompleted, Attempt: r.attempt, Round: r.hits}
	} else {
		next = r.spawnLocked()
	}
	r.mu.Unlock()

	r.emit(hit)
	r.emit(next)
	return next, nil
}

// Cancel abandons the game and its timer.
func (r *Reflex) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
	r.attempt++
	if r.phase != PhaseDone {
		r.phase = PhaseIdle
		r.hits = 0
	}
}

// Phase returns the current state.
func (r *Reflex) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Done reports whether every round was hit.
func (r *Reflex) Done() bool {
	return r.Phase() == PhaseDone
}

// Hits returns the consecutive hits of the current attempt.
func (r *Reflex) Hits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits
}

// Record returns the flag record for a finished game.
func (r *Reflex) Record(now time.Time) session.FlagRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := newRecord(session.StatusCompleted, now)
	rec["hits"] = r.hits
	return rec
}

func (r *Reflex) spawnLocked() Event {
	r.phase = PhaseRoundActive
	r.deadline = r.clock.Now().Add(r.window)
	attempt, round := r.attempt, r.hits
	r.timer = r.clock.AfterFunc(r.window, func() { r.expire(attempt, round) })
	return Event{Type: EventSpawned, Attempt: attempt, Round: round, Deadline: r.deadline}
}

// expire handles a round timer. Timers from an earlier attempt or round are
// stale and ignored.
func (r *Reflex) expire(attempt, round int) {
	r.mu.Lock()
	if attempt != r.attempt || round != r.hits || r.phase != PhaseRoundActive {
		r.mu.Unlock()
		return
	}
	ev := r.timeoutLocked()
	r.mu.Unlock()
	r.emit(ev)
}

func (r *Reflex) timeoutLocked() Event {
	r.stopTimerLocked()
	ev := Event{Type: EventTimeout, Attempt: r.attempt, Round: r.hits}
	r.phase = PhaseIdle
	r.hits = 0
	return ev
}

func (r *Reflex) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Reflex) emit(ev Event) {
	if r.listener != nil {
		r.listener(ev)
	}
}
