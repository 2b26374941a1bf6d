package minigame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypoint/internal/geo"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
	"github.com/roach88/waypoint/internal/testutil"
)

var now = time.Date(2026, 10, 18, 14, 30, 0, 0, time.UTC)

func descriptor(t *testing.T, sceneID string) story.Minigame {
	t.Helper()
	g := testutil.LanternGraph(t)
	sc, ok := g.Scene(sceneID)
	require.True(t, ok, sceneID)
	require.NotNil(t, sc.Minigame)
	return *sc.Minigame
}

func newTestRegistry() *Registry {
	return NewRegistry(testutil.NewSequenceIDs("tok").Generate)
}

func TestArtifactCode(t *testing.T) {
	reg := newTestRegistry()
	desc := descriptor(t, "a1_code")

	tests := []struct {
		name  string
		input string
		code  RejectionCode
	}{
		{"exact match", "N0RTH", ""},
		{"trimmed", "  N0RTH\n", ""},
		{"case sensitive", "n0rth", CodeWrongCode},
		{"wrong", "SOUTH", CodeWrongCode},
		{"empty", "   ", CodeEmptyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := reg.Validate(desc, Input{Code: tt.input}, now)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, IsRejection(err))
				assert.Equal(t, tt.code, RejectionCodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "compass_found", out.Flag)
			assert.Equal(t, session.StatusValidated, out.Record.Status())
			assert.Equal(t, "N0RTH", out.Record["code"])
			at, ok := out.Record.ValidatedAt()
			require.True(t, ok)
			assert.True(t, at.Equal(now))
		})
	}
}

func TestArtifactCode_AnyNonEmptyWhenUnconfigured(t *testing.T) {
	desc := story.Minigame{Kind: story.KindArtifactCode, SuccessFlag: "any"}
	out, err := newTestRegistry().Validate(desc, Input{Code: "whatever"}, now)
	require.NoError(t, err)
	assert.Equal(t, "whatever", out.Record["code"])
}

func TestMosaic_AlwaysSucceedsWithToken(t *testing.T) {
	reg := newTestRegistry()
	desc := descriptor(t, "a1_mosaic")

	out, err := reg.Validate(desc, Input{}, now)
	require.NoError(t, err)
	assert.Equal(t, "compass_repaired", out.Flag)
	assert.Equal(t, session.StatusCompleted, out.Record.Status())
	assert.Equal(t, "tok-0001", out.Record["token"])
}

func TestMosaic_DefaultTokensAreUUIDs(t *testing.T) {
	out, err := NewRegistry(nil).Validate(story.Minigame{Kind: story.KindMosaic, SuccessFlag: "m"}, Input{}, now)
	require.NoError(t, err)
	assert.Len(t, out.Record["token"], 36)
}

func TestLocation(t *testing.T) {
	reg := newTestRegistry()
	desc := descriptor(t, "a2_checkin")

	out, err := reg.Validate(desc, Input{Position: &geo.Point{Lat: 53.522, Lng: -1.131}}, now)
	require.NoError(t, err)
	assert.Equal(t, "beacon_reached", out.Flag)
	assert.Equal(t, 0.0, out.Record["distance"])

	_, err = reg.Validate(desc, Input{Position: &geo.Point{Lat: 53.53, Lng: -1.131}}, now)
	assert.Equal(t, CodeOutOfRange, RejectionCodeOf(err))

	_, err = reg.Validate(desc, Input{}, now)
	assert.Equal(t, CodeNoFix, RejectionCodeOf(err))
}

func TestLocation_MissingTargetNeverSucceeds(t *testing.T) {
	desc := story.Minigame{Kind: story.KindLocation, SuccessFlag: "x", Radius: 1e9}
	_, err := newTestRegistry().Validate(desc, Input{Position: &geo.Point{}}, now)
	assert.Equal(t, CodeOutOfRange, RejectionCodeOf(err))
}

func TestRiddle(t *testing.T) {
	reg := newTestRegistry()
	desc := descriptor(t, "a3_riddle")

	_, err := reg.Validate(desc, Input{ChoiceID: "statue"}, now)
	assert.Equal(t, CodeWrongChoice, RejectionCodeOf(err))

	_, err = reg.Validate(desc, Input{ChoiceID: "moon"}, now)
	assert.Equal(t, CodeUnknownOption, RejectionCodeOf(err))

	_, err = reg.Validate(desc, Input{}, now)
	assert.Equal(t, CodeEmptyInput, RejectionCodeOf(err))

	out, err := reg.Validate(desc, Input{ChoiceID: "clock"}, now)
	require.NoError(t, err)
	assert.Equal(t, "clock", out.Record["choice_id"])
}

func TestQuiz_RequiresEveryAnswer(t *testing.T) {
	reg := newTestRegistry()
	desc := descriptor(t, "a3_quiz")

	_, err := reg.Validate(desc, Input{Answers: map[string]string{"q1": "q1a", "q2": "q2a"}}, now)
	assert.Equal(t, CodeIncomplete, RejectionCodeOf(err))

	_, err = reg.Validate(desc, Input{Answers: map[string]string{"q1": "q1a", "q2": "q2a", "q3": "zzz"}}, now)
	assert.Equal(t, CodeUnknownOption, RejectionCodeOf(err))
}

func TestQuiz_RecordsDominantCategory(t *testing.T) {
	reg := newTestRegistry()
	desc := descriptor(t, "a3_quiz")

	out, err := reg.Validate(desc, Input{Answers: map[string]string{"q1": "q1a", "q2": "q2b", "q3": "q3b"}}, now)
	require.NoError(t, err)
	assert.Equal(t, "seeker", out.Record["result"])
	assert.Equal(t, map[string]any{"seeker": 2, "guardian": 1}, out.Record["tally"])

	u := out.Update()
	require.Contains(t, u.Choices, "quiz_completed")
	assert.Equal(t, map[string]any{"q1": "q1a", "q2": "q2b", "q3": "q3b"}, u.Choices["quiz_completed"])
}

func TestQuiz_TieBrokenByFirstSeen(t *testing.T) {
	reg := newTestRegistry()
	desc := descriptor(t, "a3_quiz")

	out, err := reg.Validate(desc, Input{Answers: map[string]string{"q1": "q1b", "q2": "q2a", "q3": "q3a"}}, now)
	require.NoError(t, err)
	assert.Equal(t, "wanderer", out.Record["result"], "three-way tie goes to the first category seen")
}

func TestDominant(t *testing.T) {
	best, tally := Dominant([]string{"b", "a", "a", "b", "c"})
	assert.Equal(t, "b", best)
	assert.Equal(t, map[string]int{"a": 2, "b": 2, "c": 1}, tally)

	best, _ = Dominant(nil)
	assert.Equal(t, "", best)
}

func TestEndingChoice(t *testing.T) {
	reg := newTestRegistry()
	desc := descriptor(t, "a4_ending")

	_, err := reg.Validate(desc, Input{ChoiceID: "flee"}, now)
	assert.Equal(t, CodeUnknownOption, RejectionCodeOf(err))

	out, err := reg.Validate(desc, Input{ChoiceID: "release"}, now)
	require.NoError(t, err)
	assert.Equal(t, "release", out.Ending)

	u := out.Update()
	require.NotNil(t, u.EndingChoice)
	assert.Equal(t, "release", *u.EndingChoice)
	require.NotNil(t, u.EndedAt)
	assert.True(t, u.EndedAt.Equal(now))
	assert.Equal(t, session.StatusChosen, u.ProgressFlags["ending_chosen"].Status())
}

func TestRegistry_UnsupportedKind(t *testing.T) {
	_, err := newTestRegistry().Validate(story.Minigame{Kind: "juggling"}, Input{}, now)
	assert.Equal(t, CodeUnsupportedKind, RejectionCodeOf(err))

	reg := newTestRegistry()
	for _, k := range story.Kinds {
		_, ok := reg.validators[k]
		assert.True(t, ok, "no validator for %s", k)
	}
}

func TestRejection_LeavesSessionUntouched(t *testing.T) {
	reg := newTestRegistry()
	s := session.New()
	_, err := reg.Validate(descriptor(t, "a1_code"), Input{Code: "nope"}, now)
	require.Error(t, err)
	assert.Empty(t, s.ProgressFlags)
	assert.Contains(t, err.Error(), string(CodeWrongCode))
}
