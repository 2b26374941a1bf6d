package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/engine"
	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/nav"
)

// newFormatter builds the formatter every command writes through.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// printScene writes the human-readable form of a render model.
func printScene(w io.Writer, m nav.RenderModel) {
	if m.Notice != "" {
		fmt.Fprintf(w, "! %s\n", m.Notice)
	}
	fmt.Fprintf(w, "Act %d: %s\n", m.ActID, m.ActTitle)
	for _, o := range m.Objectives {
		fmt.Fprintf(w, "  - %s\n", o)
	}
	fmt.Fprintf(w, "\n[%s]\n", m.SceneID)
	for _, line := range m.Text {
		fmt.Fprintf(w, "  %s\n", line)
	}

	if mg := m.Minigame; mg != nil {
		state := "open"
		if mg.Completed {
			state = "done"
		}
		fmt.Fprintf(w, "\nChallenge: %s (%s)\n", mg.Kind, state)
		if mg.Prompt != "" {
			fmt.Fprintf(w, "  %s\n", mg.Prompt)
		}
		for _, o := range mg.Options {
			fmt.Fprintf(w, "  %s) %s\n", o.ID, o.Text)
		}
		for _, q := range mg.Questions {
			fmt.Fprintf(w, "  %s: %s\n", q.ID, q.Prompt)
			for _, c := range q.Choices {
				fmt.Fprintf(w, "    %s) %s\n", c.ID, c.Text)
			}
		}
	}

	if m.Ending != "" {
		fmt.Fprintf(w, "\nEnding: %s\n", m.Ending)
	}

	var moves []string
	if m.CanPrev {
		moves = append(moves, "prev")
	}
	if m.CanNext {
		moves = append(moves, "next")
	}
	if a := m.Advance; a != nil {
		if a.Enabled {
			moves = append(moves, fmt.Sprintf("advance (act %d)", a.Target))
		} else {
			fmt.Fprintf(w, "\nAct %d is locked; still needed: %s\n", a.Target, strings.Join(a.Missing, ", "))
		}
	}
	if len(moves) > 0 {
		fmt.Fprintf(w, "\nMoves: %s\n", strings.Join(moves, ", "))
	}
}

// printResult writes an engine result, with the game status when a timed
// game is running.
func printResult(w io.Writer, res engine.Result) {
	if g := res.Game; g != nil {
		switch g.Last {
		case minigame.EventTimeout:
			fmt.Fprintln(w, "Too slow! Type start to try again.")
		case minigame.EventMismatch:
			fmt.Fprintln(w, "Wrong symbol. The sequence starts over.")
		default:
			fmt.Fprintf(w, "%s %s: %d/%d\n", g.Kind, g.Phase, g.Round, g.Rounds)
		}
		if len(g.Sequence) > 0 && g.Round == 0 {
			fmt.Fprintf(w, "Sequence: %s\n", strings.Join(g.Sequence, " "))
		}
		return
	}
	printScene(w, res.Render)
}
