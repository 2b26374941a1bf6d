package engine

import (
	"context"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/story"
)

// startGame starts the scene's timed game. A running game is cancelled
// first, so its pending timers go stale. Untimed challenges need no start.
func (e *Engine) startGame() error {
	scene, desc, err := e.challenge()
	if err != nil {
		return err
	}
	e.cancelGame()

	e.games++
	g := &activeGame{id: e.games, sceneID: scene.ID, desc: desc}
	listener := e.timerListener(g.id)
	switch desc.Kind {
	case story.KindReflex:
		g.reflex = minigame.NewReflex(desc, e.clock, listener)
	case story.KindPattern:
		g.pattern = minigame.NewPattern(desc, e.clock, e.rng, listener)
	default:
		return nil
	}
	e.active = g
	e.logger.Debug("minigame started", "kind", desc.Kind, "scene", scene.ID)
	g.game().Start()
	e.last = minigame.EventSpawned
	return nil
}

// timerListener forwards timeouts into the queue. It runs on timer
// goroutines and must not touch engine state.
func (e *Engine) timerListener(id int) minigame.Listener {
	return func(ev minigame.Event) {
		if ev.Type != minigame.EventTimeout {
			return
		}
		e.queue.Enqueue(Event{Type: EventTimerExpired, game: id, timeout: ev})
	}
}

func (e *Engine) cancelGame() {
	if e.active == nil {
		return
	}
	e.active.game().Cancel()
	e.active = nil
}

func (e *Engine) timerExpired(ev Event) error {
	if e.active == nil || e.active.id != ev.game {
		return newRuntimeError(ErrCodeStaleTimer, "timer for an abandoned game")
	}
	e.last = minigame.EventTimeout
	e.logger.Debug("round timed out", "kind", e.active.desc.Kind, "round", ev.timeout.Round)
	return nil
}

// hit feeds a tap or symbol to the active game and submits it once done.
func (e *Engine) hit(ctx context.Context, symbol string) error {
	g := e.active
	if g == nil {
		return newRuntimeError(ErrCodeNoMinigame, "no timed game is running")
	}

	var (
		ev  minigame.Event
		err error
	)
	if g.reflex != nil {
		ev, err = g.reflex.Hit()
	} else {
		ev, err = g.pattern.Input(symbol)
	}
	if err != nil {
		return err
	}
	e.last = ev.Type
	if !g.game().Done() {
		return nil
	}
	return e.submit(ctx, minigame.Input{})
}

// submit validates locally and, on success, posts the result. A local
// rejection never reaches the network.
func (e *Engine) submit(ctx context.Context, in minigame.Input) error {
	scene, desc, err := e.challenge()
	if err != nil {
		return err
	}
	if g := e.active; g != nil && g.sceneID == scene.ID {
		in.Game = g.game()
	}

	out, err := e.validators.Validate(desc, in, e.clock.Now())
	if err != nil {
		return err
	}

	req := api.MinigameRequest{
		SceneID:  scene.ID,
		Code:     in.Code,
		Position: in.Position,
		ChoiceID: in.ChoiceID,
		Answers:  in.Answers,
	}
	if desc.Kind == story.KindReflex || desc.Kind == story.KindPattern {
		req.Record = out.Record
	}
	if _, err := e.sync.SubmitMinigame(ctx, desc.Kind, req, out.Update()); err != nil {
		return err
	}
	if e.active != nil && e.active.sceneID == scene.ID {
		e.active = nil
	}
	return nil
}

// status snapshots the active game.
func (e *Engine) status() *GameStatus {
	g := e.active
	if g == nil {
		return nil
	}
	st := &GameStatus{Kind: g.desc.Kind, Phase: g.game().Phase().String(), Last: e.last}
	if g.reflex != nil {
		st.Round = g.reflex.Hits()
		st.Rounds = g.desc.Rounds
		if st.Rounds <= 0 {
			st.Rounds = minigame.DefaultReflexRounds
		}
		return st
	}
	st.Round = g.pattern.Position()
	st.Sequence = g.pattern.Sequence()
	st.Rounds = len(st.Sequence)
	return st
}
