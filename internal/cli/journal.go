package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Kind  string // optional - filter by entry kind prefix
	Limit int
}

// JournalStats summarizes the listed entries.
type JournalStats struct {
	Total    int            `json:"total"`
	Outcomes map[string]int `json:"outcomes"`
}

// JournalResult holds the journal command output.
type JournalResult struct {
	Entries []store.JournalEntry `json:"entries"`
	Stats   JournalStats         `json:"stats"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List the device's sync journal",
		Long: `List every round trip this device made to the authority, in order.

Each entry records the request kind (profile, session, navigate,
advance, minigame.<kind>), its outcome and, for successful round
trips, the digest of the session the device committed.

Examples:
  waypoint journal
  waypoint journal --kind minigame
  waypoint journal --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only entries whose kind starts with this prefix")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 for all)")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	st, err := store.Open(cfg.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open device database", err)
	}
	defer st.Close()

	entries, err := st.JournalByKind(cmd.Context(), opts.Kind, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	res := JournalResult{
		Entries: entries,
		Stats:   JournalStats{Outcomes: map[string]int{}},
	}
	for _, e := range entries {
		res.Stats.Outcomes[e.Outcome]++
	}
	res.Stats.Total = len(res.Entries)

	return f.Render(res, func(w io.Writer) { printJournal(w, res) })
}

func printJournal(w io.Writer, res JournalResult) {
	if len(res.Entries) == 0 {
		fmt.Fprintln(w, "Journal is empty.")
		return
	}
	for _, e := range res.Entries {
		digest := e.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(w, "[%d] %s %-16s %-20s %s\n",
			e.Seq, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Outcome, digest)
	}
	fmt.Fprintf(w, "\n%d entries\n", res.Stats.Total)
}
