package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult describes a compiled story.
type CompilationResult struct {
	Stats  StoryStats   `json:"stats"`
	Digest string       `json:"digest"`
	Output string       `json:"output,omitempty"`
	Story  *story.Graph `json:"story,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <story-file>",
		Short: "Compile a story to canonical JSON",
		Long: `Validate a story and write it as canonical JSON, the form the
authority serves from /story.

Canonical JSON has sorted keys and no insignificant whitespace, so the
printed digest identifies the story content.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	g, err := loadStory(path)
	if err != nil {
		return outputValidateError(formatter, err)
	}
	if errs := story.Validate(g); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	data, err := session.MarshalCanonical(g)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode story", err)
	}
	sum := sha256.Sum256(data)
	result := CompilationResult{
		Stats:  statsOf(g),
		Digest: hex.EncodeToString(sum[:]),
		Output: opts.Output,
	}

	// Write to file if --output specified
	if opts.Output != "" {
		formatter.VerboseLog("Writing %d bytes to %s", len(data), opts.Output)
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	} else {
		result.Story = g
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d act(s), %d scene(s)\n", result.Stats.Acts, result.Stats.Scenes)
	fmt.Fprintf(formatter.Writer, "Digest: %s\n", result.Digest)
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical JSON to %s\n", opts.Output)
	} else {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintln(formatter.Writer, string(data))
	}
	return nil
}
