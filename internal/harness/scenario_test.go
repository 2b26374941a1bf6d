package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario that points at the lantern story.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	story, err := filepath.Abs("../../stories/lantern.yaml")
	require.NoError(t, err)
	content := "story: " + story + "\n" + body
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: walk
description: walk one scene
trainer: Ash
pin: "1234"
steps:
  - do: next
    expect: { outcome: ok, scene: a1_code }
  - do: submit
    lat: 53.5
    lng: -1.1
  - do: wait
    for: 2s
assertions:
  - type: trace_count
    step: next
    count: 1
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "walk", s.Name)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, StepNext, s.Steps[0].Do)
	assert.Equal(t, "a1_code", s.Steps[0].Expect.Scene)
	require.NotNil(t, s.Steps[1].Lat)
	assert.Equal(t, 53.5, *s.Steps[1].Lat)
	assert.Equal(t, "2s", s.Steps[2].For)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertTraceCount, s.Assertions[0].Type)
}

func TestLoadScenario_RelativeStory(t *testing.T) {
	s, err := LoadScenario(scenarioPath("lantern_walk"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(s.Story))
	assert.Equal(t, "lantern.yaml", filepath.Base(s.Story))
	assert.Equal(t, []uint64{1, 2}, s.Seed)
}

func TestLoadScenario_NotFound(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: typo
trainer: Ash
pin: "1234"
step:
  - do: next
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\ntrainer: Ash\npin: \"1234\"\nsteps: [{do: next}]\n",
			want: "name is required",
		},
		{
			name: "missing trainer",
			body: "name: n\ndescription: d\nsteps: [{do: next}]\n",
			want: "trainer and pin are required",
		},
		{
			name: "no steps",
			body: "name: n\ndescription: d\ntrainer: Ash\npin: \"1234\"\n",
			want: "steps list is required",
		},
		{
			name: "unknown step",
			body: "name: n\ndescription: d\ntrainer: Ash\npin: \"1234\"\nsteps: [{do: fly}]\n",
			want: `unknown step "fly"`,
		},
		{
			name: "half a position",
			body: "name: n\ndescription: d\ntrainer: Ash\npin: \"1234\"\nsteps: [{do: submit, lat: 1}]\n",
			want: "lat and lng must be given together",
		},
		{
			name: "wait without duration",
			body: "name: n\ndescription: d\ntrainer: Ash\npin: \"1234\"\nsteps: [{do: wait}]\n",
			want: "wait needs a positive duration",
		},
		{
			name: "bad seed",
			body: "name: n\ndescription: d\ntrainer: Ash\npin: \"1234\"\nseed: [1]\nsteps: [{do: next}]\n",
			want: "seed must have two values",
		},
		{
			name: "unknown assertion",
			body: "name: n\ndescription: d\ntrainer: Ash\npin: \"1234\"\nsteps: [{do: next}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "journal without kind",
			body: "name: n\ndescription: d\ntrainer: Ash\npin: \"1234\"\nsteps: [{do: next}]\nassertions: [{type: journal, count: 1}]\n",
			want: "kind is required for journal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingStoryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	body := "name: n\ndescription: d\nstory: missing.yaml\ntrainer: Ash\npin: \"1234\"\nsteps: [{do: next}]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "story file not found")
}
