package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/waypoint/internal/authguard"
	"github.com/roach88/waypoint/internal/authority"
	"github.com/roach88/waypoint/internal/engine"
	"github.com/roach88/waypoint/internal/geo"
	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/nav"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/store"
	"github.com/roach88/waypoint/internal/story"
	"github.com/roach88/waypoint/internal/syncclient"
	"github.com/roach88/waypoint/internal/testutil"
)

// Epoch is the fake wall-clock time every scenario starts at.
var Epoch = time.Date(2025, 6, 21, 9, 0, 0, 0, time.UTC)

// timerWait bounds how long a wait step listens for a fired game timer.
const timerWait = time.Second

// Harness runs one scenario against a fresh authority and device.
type Harness struct {
	scenario *Scenario
	nav      *nav.Controller
	client   *syncclient.Client
	engine   *engine.Engine
	store    *store.Store
	clock    *testutil.FakeClock
	seq      *engine.Clock
	timers   chan engine.Result
	game     *engine.GameStatus
}

// Run executes a scenario and returns the result.
//
// Each scenario gets its own authority, served over httptest, and its own
// device store in a temporary directory. Wall time, ids and pattern
// sequences are all deterministic.
//
// Execution flow:
// 1. Load and validate the story
// 2. Start the authority and build the device stack
// 3. Create the scenario's profile
// 4. Execute steps, checking each step's expect clause
// 5. Collect the final session and journal, then evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	graph, err := story.Load(scenario.Story)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	if errs := story.Validate(graph); len(errs) > 0 {
		return nil, fmt.Errorf("invalid story: %w", errs[0])
	}

	dir, err := os.MkdirTemp("", "waypoint-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create device directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "device.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}
	defer st.Close()

	clk := testutil.NewFakeClock(Epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios

	auth := authority.New(graph,
		authority.WithClock(clk),
		authority.WithBcryptCost(bcrypt.MinCost),
		authority.WithIDs(testutil.NewSequenceIDs("profile").Generate),
		authority.WithLogger(logger),
	)
	srv := httptest.NewServer(auth.Handler())
	defer srv.Close()

	client := syncclient.New(
		syncclient.NewHTTPRemote(srv.URL, 5*time.Second), st,
		authguard.New(st, clk),
		syncclient.WithClock(clk),
		syncclient.WithIDs(testutil.NewSequenceIDs("evt").Generate),
		syncclient.WithLogger(logger),
	)

	seed := scenario.Seed
	if len(seed) != 2 {
		seed = []uint64{1, 2}
	}
	h := &Harness{
		scenario: scenario,
		nav:      nav.NewController(graph),
		client:   client,
		store:    st,
		clock:    clk,
		seq:      engine.NewClock(),
		timers:   make(chan engine.Result, 16),
	}
	h.engine = engine.New(graph, client,
		engine.WithClock(clk),
		engine.WithRandSource(rand.NewPCG(seed[0], seed[1])),
		engine.WithIDs(testutil.NewSequenceIDs("token")),
		engine.WithLogger(logger),
		engine.WithObserver(func(r engine.Result) {
			if r.Event == engine.EventTimerExpired.String() {
				h.timers <- r
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.engine.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	result := NewResult()
	if _, err := client.Authenticate(ctx, scenario.Trainer, scenario.PIN, true); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	for i, step := range scenario.Steps {
		ev := h.execute(ctx, step)
		result.AddTrace(ev)
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, ev) {
				result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Do, msg))
			}
		}
	}

	if snap, ok := client.Committed(); ok {
		result.State = stateOf(snap.Session)
	}
	entries, err := st.Journal(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	for _, e := range entries {
		result.Journal = append(result.Journal, JournalRow{Kind: e.Kind, Outcome: e.Outcome})
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step and describes what the player sees afterwards.
func (h *Harness) execute(ctx context.Context, st Step) TraceEvent {
	switch st.Do {
	case StepLogin:
		pin := st.PIN
		if pin == "" {
			pin = h.scenario.PIN
		}
		_, err := h.client.Authenticate(ctx, h.scenario.Trainer, pin, false)
		return h.sessionEvent(StepLogin, err)

	case StepNext:
		return h.do(ctx, StepNext, engine.Event{Type: engine.EventNavigate, Direction: nav.Next})
	case StepPrev:
		return h.do(ctx, StepPrev, engine.Event{Type: engine.EventNavigate, Direction: nav.Prev})
	case StepAdvance:
		return h.do(ctx, StepAdvance, engine.Event{Type: engine.EventAdvance})
	case StepStart:
		return h.do(ctx, StepStart, engine.Event{Type: engine.EventStartMinigame})

	case StepSubmit:
		in := minigame.Input{Code: st.Code, ChoiceID: st.Choice, Answers: st.Answers}
		if st.Lat != nil {
			in.Position = &geo.Point{Lat: *st.Lat, Lng: *st.Lng}
		}
		return h.do(ctx, StepSubmit, engine.Event{Type: engine.EventSubmit, Input: in})

	case StepHit:
		times := st.Times
		if times == 0 {
			times = 1
		}
		var ev TraceEvent
		for range times {
			ev = h.do(ctx, StepHit, engine.Event{Type: engine.EventHit, Symbol: st.Symbol})
			if ev.Outcome != OutcomeOK {
				break
			}
		}
		return ev

	case StepReplay:
		if h.game == nil || len(h.game.Sequence) == 0 {
			return h.do(ctx, StepReplay, engine.Event{Type: engine.EventHit})
		}
		var ev TraceEvent
		for _, sym := range h.game.Sequence {
			ev = h.do(ctx, StepReplay, engine.Event{Type: engine.EventHit, Symbol: sym})
			if ev.Outcome != OutcomeOK {
				break
			}
		}
		return ev

	case StepWait:
		d, _ := time.ParseDuration(st.For)
		h.clock.Advance(d)
		select {
		case r := <-h.timers:
			h.game = r.Game
			ev := h.resultEvent(StepWait, r)
			if r.Err == nil {
				ev.Outcome = OutcomeTimeout
			}
			return ev
		case <-time.After(timerWait):
			return h.sessionEvent(StepWait, nil)
		}
	}
	return TraceEvent{Seq: h.seq.Next(), Step: st.Do, Outcome: "UNKNOWN_STEP"}
}

func (h *Harness) do(ctx context.Context, step string, ev engine.Event) TraceEvent {
	r, _ := h.engine.Do(ctx, ev)
	h.game = r.Game
	return h.resultEvent(step, r)
}

func (h *Harness) resultEvent(step string, r engine.Result) TraceEvent {
	ev := TraceEvent{
		Seq:     h.seq.Next(),
		Step:    step,
		Outcome: outcomeOf(r.Err),
		Act:     r.Render.ActID,
		Scene:   r.Render.SceneID,
		Flags:   sortedFlags(r.Render.Flags),
		Missing: missingOf(r.Err),
	}
	if r.Game != nil {
		ev.Game = r.Game.Phase
	}
	return ev
}

// sessionEvent describes a step that did not go through the engine.
func (h *Harness) sessionEvent(step string, err error) TraceEvent {
	ev := TraceEvent{Seq: h.seq.Next(), Step: step, Outcome: outcomeOf(err)}
	s, ok := h.client.Session()
	if !ok {
		return ev
	}
	if m, rerr := h.nav.Render(s); rerr == nil {
		ev.Act = m.ActID
		ev.Scene = m.SceneID
		ev.Flags = sortedFlags(m.Flags)
	}
	if h.game != nil {
		ev.Game = h.game.Phase
	}
	return ev
}

// outcomeOf names an error by its code.
func outcomeOf(err error) string {
	var remote *syncclient.RemoteError
	switch {
	case err == nil:
		return OutcomeOK
	case engine.CodeOf(err) != "":
		return string(engine.CodeOf(err))
	case minigame.IsRejection(err):
		return string(minigame.RejectionCodeOf(err))
	case authguard.IsLocked(err):
		return "LOCKED"
	case errors.Is(err, minigame.ErrNotActive):
		return "NOT_ACTIVE"
	case errors.Is(err, syncclient.ErrNotAuthenticated):
		return "NOT_AUTHENTICATED"
	case errors.Is(err, syncclient.ErrBusy):
		return "BUSY"
	case errors.Is(err, syncclient.ErrInvalidPIN):
		return "INVALID_PIN"
	case errors.As(err, &remote):
		return remote.Code
	default:
		return "ERROR"
	}
}

func missingOf(err error) []string {
	var re *engine.RuntimeError
	if errors.As(err, &re) && len(re.Missing) > 0 {
		return re.Missing
	}
	return syncclient.MissingFlags(err)
}

func sortedFlags(flags map[string]bool) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, 0, len(flags))
	for k, on := range flags {
		if on {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func stateOf(s session.Session) map[string]any {
	state := map[string]any{
		"current_act": s.CurrentAct,
		"flags":       sortedFlags(s.FlagKeys()),
	}
	if s.LastScene != nil {
		state["last_scene"] = *s.LastScene
	}
	if s.EndingChoice != nil {
		state["ending_choice"] = *s.EndingChoice
	}
	return state
}

func checkExpect(exp *Expect, ev TraceEvent) []string {
	var msgs []string
	if exp.Outcome != "" && exp.Outcome != ev.Outcome {
		msgs = append(msgs, fmt.Sprintf("expected outcome %s, got %s", exp.Outcome, ev.Outcome))
	}
	if exp.Scene != "" && exp.Scene != ev.Scene {
		msgs = append(msgs, fmt.Sprintf("expected scene %s, got %s", exp.Scene, ev.Scene))
	}
	if exp.Act != 0 && exp.Act != ev.Act {
		msgs = append(msgs, fmt.Sprintf("expected act %d, got %d", exp.Act, ev.Act))
	}
	return msgs
}
