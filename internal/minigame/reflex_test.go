package minigame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypoint/internal/story"
	"github.com/roach88/waypoint/internal/testutil"
)

type eventLog struct {
	events []Event
}

func (l *eventLog) listen(ev Event) { l.events = append(l.events, ev) }

func (l *eventLog) types() []EventType {
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func newReflex(t *testing.T) (*Reflex, *testutil.FakeClock, *eventLog) {
	t.Helper()
	clk := testutil.NewFakeClock(now)
	log := &eventLog{}
	return NewReflex(descriptor(t, "a2_reflex"), clk, log.listen), clk, log
}

func TestReflex_Defaults(t *testing.T) {
	r := NewReflex(story.Minigame{Kind: story.KindReflex}, testutil.NewFakeClock(now), nil)
	assert.Equal(t, DefaultReflexRounds, r.rounds)
	assert.Equal(t, DefaultReflexWindow, r.window)
	assert.Equal(t, PhaseIdle, r.Phase())
}

func TestReflex_FiveHitsCompletes(t *testing.T) {
	r, clk, log := newReflex(t)
	r.Start()

	for i := 0; i < 5; i++ {
		clk.Advance(3 * time.Second)
		_, err := r.Hit()
		require.NoError(t, err)
	}

	assert.True(t, r.Done())
	assert.Equal(t, 5, r.Hits())
	assert.Equal(t, 0, clk.Pending(), "no timer left after completion")
	assert.Equal(t, EventCompleted, log.events[len(log.events)-1].Type)

	out, err := newTestRegistry().Validate(descriptor(t, "a2_reflex"), Input{Game: r}, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, out.Record["hits"])
	assert.Equal(t, "focus_completed", out.Flag)
}

func TestReflex_TimeoutResetsToIdle(t *testing.T) {
	r, clk, log := newReflex(t)
	r.Start()

	clk.Advance(time.Second)
	_, err := r.Hit()
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = r.Hit()
	require.NoError(t, err)
	assert.Equal(t, 2, r.Hits())

	clk.Advance(3500 * time.Millisecond)

	assert.Equal(t, PhaseIdle, r.Phase())
	assert.Equal(t, 0, r.Hits())
	assert.Equal(t, EventTimeout, log.events[len(log.events)-1].Type)

	_, err = r.Hit()
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = newTestRegistry().Validate(descriptor(t, "a2_reflex"), Input{Game: r}, clk.Now())
	assert.Equal(t, CodeNotFinished, RejectionCodeOf(err))
}

func TestReflex_RestartCancelsStaleTimer(t *testing.T) {
	r, clk, log := newReflex(t)
	r.Start()
	clk.Advance(3 * time.Second)

	r.Start()
	assert.Equal(t, 1, clk.Pending(), "previous attempt's timer was stopped")

	clk.Advance(time.Second)
	_, err := r.Hit()
	require.NoError(t, err)

	for _, ev := range log.events {
		assert.NotEqual(t, EventTimeout, ev.Type, "stale timer must not fire after restart")
	}
	assert.Equal(t, 1, r.Hits())
}

func TestReflex_StaleExpireIgnored(t *testing.T) {
	r, _, log := newReflex(t)
	r.Start()
	before := len(log.events)

	r.expire(r.attempt-1, 0)

	assert.Equal(t, PhaseRoundActive, r.Phase())
	assert.Len(t, log.events, before)
}

func TestReflex_LateHitCountsAsTimeout(t *testing.T) {
	r, clk, _ := newReflex(t)
	r.Start()

	clk.Set(now.Add(10 * time.Second))
	ev, err := r.Hit()

	require.NoError(t, err)
	assert.Equal(t, EventTimeout, ev.Type)
	assert.Equal(t, PhaseIdle, r.Phase())
}

func TestReflex_HitAtDeadlineIsLate(t *testing.T) {
	r, clk, log := newReflex(t)
	r.Start()
	deadline := log.events[len(log.events)-1].Deadline

	clk.Set(deadline.Add(-time.Millisecond))
	ev, err := r.Hit()
	require.NoError(t, err)
	require.Equal(t, EventSpawned, ev.Type)
	assert.Equal(t, 1, r.Hits())

	deadline = ev.Deadline
	clk.Set(deadline)
	ev, err = r.Hit()
	require.NoError(t, err)
	assert.Equal(t, EventTimeout, ev.Type)
	assert.Equal(t, PhaseIdle, r.Phase())
	assert.Equal(t, 0, r.Hits())
}

func TestReflex_CancelAbandons(t *testing.T) {
	r, clk, log := newReflex(t)
	r.Start()
	clk.Advance(time.Second)
	_, _ = r.Hit()

	r.Cancel()
	clk.Advance(time.Minute)

	assert.Equal(t, PhaseIdle, r.Phase())
	assert.Equal(t, 0, r.Hits())
	assert.Equal(t, []EventType{EventSpawned, EventHit, EventSpawned}, log.types())
}
