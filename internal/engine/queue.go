package engine

import (
	"sync"

	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/nav"
)

// EventType distinguishes player and timer events.
type EventType int

const (
	// EventNavigate moves to the previous or next scene.
	EventNavigate EventType = iota + 1
	// EventAdvance enters the next act.
	EventAdvance
	// EventStartMinigame starts (or restarts) the scene's challenge.
	EventStartMinigame
	// EventSubmit submits an answer for the scene's challenge.
	EventSubmit
	// EventHit is a tap in a reflex game or a symbol in a pattern game.
	EventHit
	// EventTimerExpired is enqueued by a timed game's round timer.
	EventTimerExpired
)

func (t EventType) String() string {
	switch t {
	case EventNavigate:
		return "navigate"
	case EventAdvance:
		return "advance"
	case EventStartMinigame:
		return "start_minigame"
	case EventSubmit:
		return "submit"
	case EventHit:
		return "hit"
	case EventTimerExpired:
		return "timer_expired"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the Run loop.
type Event struct {
	Type EventType

	// Direction is read by EventNavigate.
	Direction nav.Direction
	// Input is read by EventSubmit.
	Input minigame.Input
	// Symbol is read by EventHit for pattern games.
	Symbol string

	// game and timeout identify the game a timer belongs to.
	game    int
	timeout minigame.Event

	reply chan Result
}

// eventQueue is a thread-safe, unbounded FIFO.
//
// Timer callbacks and callers enqueue from any goroutine while the Run loop
// dequeues. A buffered signal channel lets Run wait on the queue and its
// context together.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds e to the back of the queue. Returns false once closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Non-blocking; the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	// Clear the slot so the backing array does not pin reply channels.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that is signalled when events may be available,
// and closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Drained reports whether the queue is closed and empty.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.events) == 0
}

// Close stops further enqueues and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
