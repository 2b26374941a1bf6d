package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/harness"
)

// ReplayScenarioResult holds the replay result for a single scenario.
type ReplayScenarioResult struct {
	Name          string `json:"name"`
	Steps         int    `json:"steps"`
	Journal       int    `json:"journal"`
	Pass          bool   `json:"pass"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scenarios        []ReplayScenarioResult `json:"scenarios"`
	Total            int                    `json:"total"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>...",
		Short: "Run scenarios twice and verify determinism",
		Long: `Run each scenario twice against fresh authorities and devices and
compare the traces and journals byte for byte.

Exit codes:
  0 - All scenarios are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (scenario not found, etc.)

Examples:
  waypoint replay testdata/scenarios/lantern_walk.yaml
  waypoint replay testdata/scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	result := ReplayResult{
		Scenarios:        make([]ReplayScenarioResult, 0, len(paths)),
		Total:            len(paths),
		AllDeterministic: true,
	}

	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load scenario %s", path), err)
		}
		sr, err := replayScenario(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay scenario %s", scenario.Name), err)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result)
}

// replayScenario runs a scenario twice and compares the canonical snapshots.
func replayScenario(scenario *harness.Scenario) (ReplayScenarioResult, error) {
	first, err := harness.Run(scenario)
	if err != nil {
		return ReplayScenarioResult{}, fmt.Errorf("first run failed: %w", err)
	}
	second, err := harness.Run(scenario)
	if err != nil {
		return ReplayScenarioResult{}, fmt.Errorf("second run failed: %w", err)
	}

	a, err := harness.Snapshot(scenario.Name, first)
	if err != nil {
		return ReplayScenarioResult{}, err
	}
	b, err := harness.Snapshot(scenario.Name, second)
	if err != nil {
		return ReplayScenarioResult{}, err
	}

	return ReplayScenarioResult{
		Name:          scenario.Name,
		Steps:         len(first.Trace),
		Journal:       len(first.Journal),
		Pass:          first.Pass && second.Pass,
		Deterministic: bytes.Equal(a, b),
	}, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_NONDETERMINISTIC",
			Message: "replay produced different traces",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	for _, s := range result.Scenarios {
		mark := "✓"
		if !s.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d steps, %d journal entries\n", mark, s.Name, s.Steps, s.Journal)
	}
	fmt.Fprintln(w)

	if !result.AllDeterministic {
		fmt.Fprintln(w, "✗ Determinism verification failed")
		return NewExitError(ExitFailure, "determinism verification failed")
	}

	fmt.Fprintf(w, "✓ All %d scenario(s) deterministic\n", result.Total)
	return nil
}
