package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/story"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Stats  *StoryStats              `json:"stats,omitempty"`
	Errors []story.ValidationError `json:"errors,omitempty"`
}

// StoryStats summarizes a story graph.
type StoryStats struct {
	Acts       int                `json:"acts"`
	Scenes     int                `json:"scenes"`
	Challenges map[story.Kind]int `json:"challenges"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <story-file>",
		Short: "Validate a story file",
		Long: `Validate a story file (YAML or JSON) without serving it.

Checks the graph against the story schema, then checks that every act
lists existing scenes, next_act points at an existing act, and every
gate flag is awarded by some challenge.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	g, err := loadStory(path)
	if err != nil {
		return outputValidateError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d act(s) and %d scene(s) from %s", len(g.Acts), len(g.Scenes), path)

	if errs := story.Validate(g); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	// Output success
	return outputValidateSuccess(formatter, statsOf(g))
}

// loadStory reads a story file, reporting a missing file distinctly.
func loadStory(path string) (*story.Graph, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("story file not found: %s", path))
	}
	g, err := story.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load story", err)
	}
	return g, nil
}

func statsOf(g *story.Graph) StoryStats {
	stats := StoryStats{
		Acts:       len(g.Acts),
		Scenes:     len(g.Scenes),
		Challenges: map[story.Kind]int{},
	}
	for _, s := range g.Scenes {
		if s.Minigame != nil {
			stats.Challenges[s.Minigame.Kind]++
		}
	}
	return stats
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, stats StoryStats) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Stats: &stats}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Story valid: %d act(s), %d scene(s)\n", stats.Acts, stats.Scenes)
	kinds := make([]string, 0, len(stats.Challenges))
	for k := range stats.Challenges {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(formatter.Writer, "  %-14s %d\n", k, stats.Challenges[story.Kind(k)])
	}
	return nil
}

// outputValidateError outputs a load failure.
func outputValidateError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		code = ErrCodeNotFound
	}
	_ = formatter.Error(code, err.Error(), nil)
	// Load errors are command-level errors (exit code 2)
	return err
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []story.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeInvalid,
				Message: errs[0].Error(),
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Path != "" {
			fmt.Fprintf(formatter.Writer, "%s\n", err.Path)
		}
		fmt.Fprintf(formatter.Writer, "  %s\n\n", err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
