package minigame

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/roach88/waypoint/internal/clock"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// Pattern defaults.
const DefaultPatternRounds = 4

// DefaultSymbols is the signal alphabet used when a descriptor sets none.
var DefaultSymbols = []string{"north", "east", "south", "west"}

// Pattern is the combat challenge: reproduce a locally generated sequence
// symbol by symbol. Any mismatch, or a per-symbol timeout when a window is
// configured, throws away the attempt's progress and the sequence must be
// replayed from the first symbol.
type Pattern struct {
	mu       sync.Mutex
	clock    clock.Clock
	rng      *rand.Rand
	listener Listener
	symbols  []string
	rounds   int
	window   time.Duration

	sequence []string
	pos      int
	phase    Phase
	attempt  int
	timer    clock.Timer
}

// NewPattern builds a pattern game. src seeds the sequence; nil uses a
// clock-derived seed.
func NewPattern(desc story.Minigame, clk clock.Clock, src rand.Source, listener Listener) *Pattern {
	rounds := desc.Rounds
	if rounds <= 0 {
		rounds = DefaultPatternRounds
	}
	symbols := desc.Symbols
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	if src == nil {
		seed := uint64(clk.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>7|1)
	}
	return &Pattern{
		clock:    clk,
		rng:      rand.New(src),
		listener: listener,
		symbols:  append([]string(nil), symbols...),
		rounds:   rounds,
		window:   time.Duration(desc.WindowMS) * time.Millisecond,
	}
}

// Start generates a fresh sequence and waits for the first symbol.
func (p *Pattern) Start() {
	p.mu.Lock()
	p.stopTimerLocked()
	p.attempt++
	p.sequence = make([]string, p.rounds)
	for i := range p.sequence {
		p.sequence[i] = p.symbols[p.rng.IntN(len(p.symbols))]
	}
	p.pos = 0
	p.phase = PhaseRoundActive
	ev := p.armLocked()
	p.mu.Unlock()
	p.emit(ev)
}

// Sequence returns a copy of the current target sequence.
func (p *Pattern) Sequence() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sequence...)
}

// Position returns how many symbols of the sequence have been matched.
func (p *Pattern) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Input submits the next symbol.
func (p *Pattern) Input(symbol string) (Event, error) {
	p.mu.Lock()
	if p.phase != PhaseRoundActive {
		p.mu.Unlock()
		return Event{}, ErrNotActive
	}
	p.stopTimerLocked()

	if p.sequence[p.pos] != symbol {
		ev := Event{Type: EventMismatch, Attempt: p.attempt, Round: p.pos}
		p.pos = 0
		rearm := p.armLocked()
		p.mu.Unlock()
		p.emit(ev)
		p.emit(rearm)
		return ev, nil
	}

	p.pos++
	hit := Event{Type: EventHit, Attempt: p.attempt, Round: p.pos}
	var next Event
	if p.pos >= len(p.sequence) {
		p.phase = PhaseDone
		next = Event{Type: EventCompleted, Attempt: p.attempt, Round: p.pos}
	} else {
		next = p.armLocked()
	}
	p.mu.Unlock()
	p.emit(hit)
	p.emit(next)
	return next, nil
}

// Cancel abandons the game and its timer.
func (p *Pattern) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	p.attempt++
	if p.phase != PhaseDone {
		p.phase = PhaseIdle
		p.pos = 0
	}
}

// Phase returns the current state.
func (p *Pattern) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Done reports whether the full sequence was reproduced.
func (p *Pattern) Done() bool {
	return p.Phase() == PhaseDone
}

// Record returns the flag record for a finished game.
func (p *Pattern) Record(now time.Time) session.FlagRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := newRecord(session.StatusWon, now)
	seq := make([]any, len(p.sequence))
	for i, s := range p.sequence {
		seq[i] = s
	}
	rec["sequence"] = seq
	rec["rounds"] = len(p.sequence)
	return rec
}

// armLocked reports the symbol now awaited and, with a window configured,
// schedules its timeout.
func (p *Pattern) armLocked() Event {
	ev := Event{Type: EventSpawned, Attempt: p.attempt, Round: p.pos}
	if p.window > 0 {
		attempt, pos := p.attempt, p.pos
		ev.Deadline = p.clock.Now().Add(p.window)
		p.timer = p.clock.AfterFunc(p.window, func() { p.expire(attempt, pos) })
	}
	return ev
}

func (p *Pattern) expire(attempt, pos int) {
	p.mu.Lock()
	if attempt != p.attempt || pos != p.pos || p.phase != PhaseRoundActive {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	ev := Event{Type: EventTimeout, Attempt: p.attempt, Round: p.pos}
	p.pos = 0
	p.phase = PhaseIdle
	p.mu.Unlock()
	p.emit(ev)
}

func (p *Pattern) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Pattern) emit(ev Event) {
	if p.listener != nil {
		p.listener(ev)
	}
}
