package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/clock"
	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/nav"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
	"github.com/roach88/waypoint/internal/syncclient"
)

// Syncer is the part of the sync client the engine drives.
// Implemented by *syncclient.Client.
type Syncer interface {
	Session() (session.Session, bool)
	PostUpdate(ctx context.Context, delta session.Update, opts syncclient.Options) (session.Session, error)
	SubmitMinigame(ctx context.Context, kind story.Kind, req api.MinigameRequest, local session.Update) (session.Session, error)
}

var _ Syncer = (*syncclient.Client)(nil)

// Result answers one processed event.
type Result struct {
	Seq    int64           `json:"seq"`
	Event  string          `json:"event"`
	Render nav.RenderModel `json:"render"`
	Game   *GameStatus     `json:"game,omitempty"`
	Err    error           `json:"-"`
}

// GameStatus describes the active timed game after an event.
type GameStatus struct {
	Kind     story.Kind         `json:"kind"`
	Phase    string             `json:"phase"`
	Last     minigame.EventType `json:"last,omitempty"`
	Round    int                `json:"round"`
	Rounds   int                `json:"rounds"`
	Sequence []string           `json:"sequence,omitempty"`
}

// activeGame is the timed game of the current scene. Only the Run
// goroutine touches it.
type activeGame struct {
	id      int
	sceneID string
	desc    story.Minigame
	reflex  *minigame.Reflex
	pattern *minigame.Pattern
}

func (g *activeGame) game() minigame.Game {
	if g.reflex != nil {
		return g.reflex
	}
	return g.pattern
}

// Engine is the single-writer quest loop.
//
// Thread-safety model:
//   - Enqueue(), Do(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	nav        *nav.Controller
	sync       Syncer
	validators *minigame.Registry
	clock      clock.Clock
	seq        *Clock
	rng        rand.Source
	queue      *eventQueue
	observer   func(Result)
	logger     *slog.Logger

	active *activeGame
	games  int
	last   minigame.EventType
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock that drives game timers.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRandSource seeds pattern sequences.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) { e.rng = src }
}

// WithIDs sets the audit token generator used by confirmed challenges.
func WithIDs(gen IDGenerator) Option {
	return func(e *Engine) { e.validators = minigame.NewRegistry(gen.Generate) }
}

// WithObserver receives every result, including those of timer events
// that have no caller waiting.
func WithObserver(fn func(Result)) Option {
	return func(e *Engine) { e.observer = fn }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSeqStart resumes the logical clock after start.
func WithSeqStart(start int64) Option {
	return func(e *Engine) { e.seq = NewClockAt(start) }
}

// New creates an engine over a story graph and a sync client.
func New(graph *story.Graph, sync Syncer, opts ...Option) *Engine {
	now := uint64(time.Now().UnixNano())
	e := &Engine{
		nav:        nav.NewController(graph),
		sync:       sync,
		validators: minigame.NewRegistry(UUIDv7Generator{}.Generate),
		clock:      clock.System{},
		seq:        NewClock(),
		rng:        rand.NewPCG(now, now>>1),
		queue:      newEventQueue(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue submits an event without waiting for its result.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Do submits an event and waits for its result.
func (e *Engine) Do(ctx context.Context, ev Event) (Result, error) {
	ev.reply = make(chan Result, 1)
	if !e.queue.Enqueue(ev) {
		return Result{}, errors.New("engine stopped")
	}
	select {
	case r := <-ev.reply:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Run processes events until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
//
// A failed event is answered with an error and processing continues; the
// session is left as it was.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Debug("engine starting")

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			res := e.process(ctx, ev)
			if res.Err != nil {
				e.logger.Debug("event refused", "seq", res.Seq, "event", res.Event, "error", res.Err)
			}
			if ev.reply != nil {
				ev.reply <- res
			}
			if e.observer != nil {
				e.observer(res)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Debug("engine stopping: context cancelled")
			e.shutdown()
			return ctx.Err()
		case <-e.queue.Wait():
			// A stale signal can outlive the event it announced, so only a
			// closed and drained queue stops the loop.
			if e.queue.Drained() {
				e.logger.Debug("engine stopping: queue closed")
				e.shutdown()
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) shutdown() {
	e.queue.Close()
	e.cancelGame()
}

func (e *Engine) process(ctx context.Context, ev Event) Result {
	res := Result{Seq: e.seq.Next(), Event: ev.Type.String()}
	e.last = ""

	switch ev.Type {
	case EventNavigate:
		res.Err = e.navigate(ctx, ev.Direction)
	case EventAdvance:
		res.Err = e.advance(ctx)
	case EventStartMinigame:
		res.Err = e.startGame()
	case EventSubmit:
		res.Err = e.submit(ctx, ev.Input)
	case EventHit:
		res.Err = e.hit(ctx, ev.Symbol)
	case EventTimerExpired:
		res.Err = e.timerExpired(ev)
	default:
		res.Err = fmt.Errorf("unknown event type: %d", ev.Type)
	}

	if s, ok := e.sync.Session(); ok {
		m, err := e.nav.Render(s)
		if err != nil && res.Err == nil {
			res.Err = err
		}
		res.Render = m
	} else if res.Err == nil {
		res.Err = syncclient.ErrNotAuthenticated
	}
	res.Game = e.status()
	return res
}

func (e *Engine) current() (session.Session, nav.Position, error) {
	s, ok := e.sync.Session()
	if !ok {
		return session.Session{}, nav.Position{}, syncclient.ErrNotAuthenticated
	}
	pos, err := e.nav.Locate(s)
	if err != nil {
		return session.Session{}, nav.Position{}, err
	}
	return s, pos, nil
}

func (e *Engine) navigate(ctx context.Context, dir nav.Direction) error {
	s, ok := e.sync.Session()
	if !ok {
		return syncclient.ErrNotAuthenticated
	}
	e.cancelGame()

	delta, moved, err := e.nav.Step(s, dir)
	if err != nil || !moved {
		return err
	}
	_, err = e.sync.PostUpdate(ctx, delta, syncclient.Options{
		Event: "navigate",
		Data:  map[string]any{"to": *delta.LastScene},
	})
	return err
}

func (e *Engine) advance(ctx context.Context) error {
	s, ok := e.sync.Session()
	if !ok {
		return syncclient.ErrNotAuthenticated
	}

	delta, err := e.nav.Advance(s)
	if err != nil {
		var gate *nav.GateError
		if errors.As(err, &gate) {
			return &RuntimeError{
				Code:    ErrCodeActLocked,
				Message: fmt.Sprintf("act %d is locked", gate.Target),
				Missing: gate.Missing,
				Err:     err,
			}
		}
		return err
	}

	e.cancelGame()
	_, err = e.sync.PostUpdate(ctx, delta, syncclient.Options{
		Event: "advance",
		Data:  map[string]any{"act": *delta.CurrentAct},
	})
	return err
}

// challenge returns the current scene's descriptor.
func (e *Engine) challenge() (story.Scene, story.Minigame, error) {
	_, pos, err := e.current()
	if err != nil {
		return story.Scene{}, story.Minigame{}, err
	}
	if pos.ContentUpdated {
		return story.Scene{}, story.Minigame{}, newRuntimeError(ErrCodeContentUpdated, "the story changed; continue from %q", pos.Scene.ID)
	}
	if pos.Scene.Minigame == nil {
		return story.Scene{}, story.Minigame{}, newRuntimeError(ErrCodeNoMinigame, "scene %q has no challenge", pos.Scene.ID)
	}
	return pos.Scene, *pos.Scene.Minigame, nil
}
