package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioPath returns a scenario under the repository testdata.
func scenarioPath(name string) string {
	p, _ := filepath.Abs(filepath.Join("..", "..", "testdata", "scenarios", name+".yaml"))
	return p
}

// TestDemoScenarios runs the checked-in playthroughs end to end and
// compares them with their golden traces.
func TestDemoScenarios(t *testing.T) {
	for _, name := range []string{"lantern_walk", "gates_and_lockout"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(scenarioPath(name))
			require.NoError(t, err, "failed to load scenario %s", name)
			assert.Equal(t, name, scenario.Name)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err, "scenario execution failed")
			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.NotEmpty(t, result.Trace)
		})
	}
}

// TestDemoScenariosReplay validates deterministic replay.
// Running the same scenario twice should produce identical traces.
func TestDemoScenariosReplay(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("lantern_walk"))
	require.NoError(t, err)

	result1, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result1.Pass, "errors=%v", result1.Errors)

	result2, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result2.Pass, "errors=%v", result2.Errors)

	assert.Equal(t, result1.Trace, result2.Trace)
	assert.Equal(t, result1.Journal, result2.Journal)
	assert.Equal(t, result1.State, result2.State)
}

func TestDemoScenario_FinalState(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("lantern_walk"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, 4, result.State["current_act"])
	assert.Equal(t, "keep", result.State["ending_choice"])
	assert.Equal(t, []string{
		"beacon_reached", "combat_won", "compass_found", "compass_repaired",
		"ending_chosen", "focus_completed", "quiz_completed", "riddle_solved",
	}, result.State["flags"])
}
