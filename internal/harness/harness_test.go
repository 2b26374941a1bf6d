package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lanternStory(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs("../../stories/lantern.yaml")
	require.NoError(t, err)
	return p
}

func minimal(t *testing.T, steps ...Step) *Scenario {
	return &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Story:       lanternStory(t),
		Trainer:     "Brock",
		PIN:         "2468",
		Steps:       steps,
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(minimal(t, Step{Do: StepNext}))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, TraceEvent{Seq: 1, Step: StepNext, Outcome: OutcomeOK, Act: 1, Scene: "a1_code"}, result.Trace[0])
	assert.Equal(t, []JournalRow{
		{Kind: "profile", Outcome: "ok"},
		{Kind: "navigate", Outcome: "ok"},
	}, result.Journal)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	result, err := Run(minimal(t,
		Step{Do: StepSubmit, Expect: &Expect{Outcome: OutcomeOK}},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected outcome ok, got NO_MINIGAME")
}

func TestRun_AdvanceReportsMissingFlags(t *testing.T) {
	result, err := Run(minimal(t, Step{Do: StepAdvance}))
	require.NoError(t, err)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, "ACT_LOCKED", result.Trace[0].Outcome)
	assert.Equal(t, []string{"compass_found", "compass_repaired"}, result.Trace[0].Missing)
	assert.Len(t, result.Journal, 1, "a locked advance never reaches the authority")
}

func TestRun_HitWithoutGame(t *testing.T) {
	result, err := Run(minimal(t, Step{Do: StepHit, Times: 3}))
	require.NoError(t, err)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, "NO_MINIGAME", result.Trace[0].Outcome)
}

func TestRun_InvalidPINFormat(t *testing.T) {
	result, err := Run(minimal(t, Step{Do: StepLogin, PIN: "12"}))
	require.NoError(t, err)

	assert.Equal(t, "INVALID_PIN", result.Trace[0].Outcome)
	assert.Len(t, result.Journal, 1, "a malformed PIN is refused before any request")
}

func TestRun_WaitWithoutTimer(t *testing.T) {
	result, err := Run(minimal(t, Step{Do: StepWait, For: "1h"}))
	require.NoError(t, err)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, OutcomeOK, result.Trace[0].Outcome)
	assert.Equal(t, "a1_intro", result.Trace[0].Scene)
}

func TestRun_MissingStory(t *testing.T) {
	s := minimal(t, Step{Do: StepNext})
	s.Story = "/nonexistent/story.yaml"

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load story")
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeOK, outcomeOf(nil))
	assert.Equal(t, "ERROR", outcomeOf(assert.AnError))
}
