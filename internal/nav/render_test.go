package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
	"github.com/roach88/waypoint/internal/testutil"
)

func TestRender_IntroScene(t *testing.T) {
	c := NewController(testutil.LanternGraph(t))

	m, err := c.Render(session.New())
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActID)
	assert.Equal(t, "The Broken Compass", m.ActTitle)
	assert.Len(t, m.Objectives, 2)
	assert.Equal(t, "a1_intro", m.SceneID)
	assert.Nil(t, m.Minigame)
	assert.False(t, m.CanPrev)
	assert.True(t, m.CanNext)
	require.NotNil(t, m.Advance)
	assert.False(t, m.Advance.Enabled)
	assert.Equal(t, []string{"compass_found", "compass_repaired"}, m.Advance.Missing)
	assert.Empty(t, m.Notice)
}

func TestRender_MinigameCompletion(t *testing.T) {
	c := NewController(testutil.LanternGraph(t))
	s := session.New()
	s.LastScene = session.String("a1_code")

	m, err := c.Render(s)
	require.NoError(t, err)
	require.NotNil(t, m.Minigame)
	assert.Equal(t, story.KindArtifactCode, m.Minigame.Kind)
	assert.False(t, m.Minigame.Completed)

	s = withFlags(s, "compass_found", "compass_repaired")
	m, err = c.Render(s)
	require.NoError(t, err)
	assert.True(t, m.Minigame.Completed)
	assert.True(t, m.Advance.Enabled)
	assert.Empty(t, m.Advance.Missing)
}

func TestRender_HidesRiddleAnswers(t *testing.T) {
	c := NewController(testutil.LanternGraph(t))
	s := session.New()
	s.CurrentAct = 3
	s.LastScene = session.String("a3_riddle")

	m, err := c.Render(s)
	require.NoError(t, err)
	require.NotNil(t, m.Minigame)
	require.Len(t, m.Minigame.Options, 3)
	for _, o := range m.Minigame.Options {
		assert.False(t, o.Correct)
	}
}

func TestRender_EndingAndLastAct(t *testing.T) {
	c := NewController(testutil.LanternGraph(t))
	s := session.New()
	s.CurrentAct = 4
	s.EndingChoice = session.String("keep")

	m, err := c.Render(s)
	require.NoError(t, err)
	assert.Nil(t, m.Advance)
	assert.Equal(t, "keep", m.Ending)
}

func TestRender_ContentUpdatedNotice(t *testing.T) {
	c := NewController(testutil.LanternGraph(t))
	s := session.New()
	s.LastScene = session.String("removed")

	m, err := c.Render(s)
	require.NoError(t, err)
	assert.Equal(t, NoticeContentUpdated, m.Notice)
	assert.Equal(t, "a1_intro", m.SceneID)
}

func TestRender_QuizHidesCategories(t *testing.T) {
	c := NewController(testutil.LanternGraph(t))
	s := session.New()
	s.CurrentAct = 3
	s.LastScene = session.String("a3_quiz")

	m, err := c.Render(s)
	require.NoError(t, err)
	require.NotNil(t, m.Minigame)
	require.Len(t, m.Minigame.Questions, 3)
	q1 := m.Minigame.Questions[0]
	assert.Equal(t, "q1", q1.ID)
	require.NotEmpty(t, q1.Choices)
	for _, ch := range q1.Choices {
		assert.Empty(t, ch.Category)
		assert.False(t, ch.Correct)
	}
}
